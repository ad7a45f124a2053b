package marc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ParseXML decodes the first MARCXML record found in r. Matching is by
// local element name, so it accepts records with the MARC21/slim
// namespace, a prefixed namespace, or none at all — SRU envelopes wrap
// records in their own namespaces and this decoder must not care.
func ParseXML(r io.Reader) (Record, error) {
	records, err := ParseXMLAll(r)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("no MARC record element found")
	}
	return records[0], nil
}

// ParseXMLAll decodes every MARCXML record found in r, in document order.
func ParseXMLAll(r io.Reader) ([]Record, error) {
	dec := xml.NewDecoder(r)

	var records []Record
	var cur *Record
	var curField *Field
	var curSubfield *Subfield

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse MARCXML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "record":
				records = append(records, Record{})
				cur = &records[len(records)-1]
			case "datafield":
				if cur == nil {
					continue
				}
				cur.Fields = append(cur.Fields, Field{
					Tag:  attr(t, "tag"),
					Ind1: attr(t, "ind1"),
					Ind2: attr(t, "ind2"),
				})
				curField = &cur.Fields[len(cur.Fields)-1]
			case "subfield":
				if curField == nil {
					continue
				}
				curField.Subfields = append(curField.Subfields, Subfield{
					Code: attr(t, "code"),
				})
				curSubfield = &curField.Subfields[len(curField.Subfields)-1]
			}
		case xml.CharData:
			if curSubfield != nil {
				curSubfield.Value += string(t)
			}
		case xml.EndElement:
			switch localName(t.Name) {
			case "record":
				cur = nil
				curField = nil
				curSubfield = nil
			case "datafield":
				curField = nil
				curSubfield = nil
			case "subfield":
				curSubfield = nil
			}
		}
	}

	return records, nil
}

// localName matches namespaced and plain element names alike.
func localName(n xml.Name) string {
	return strings.ToLower(n.Local)
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}
