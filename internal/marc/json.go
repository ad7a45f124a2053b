package marc

import (
	"encoding/json"
	"fmt"
)

// jsonRecord mirrors the MARC-in-JSON layout: a "fields" array whose
// entries are single-key objects keyed by tag. Control fields are bare
// strings, data fields are objects; both appear in the same array, so the
// values stay raw until the shape is known.
type jsonRecord struct {
	Fields []map[string]json.RawMessage `json:"fields"`
}

type jsonField struct {
	Subfields []map[string]string `json:"subfields"`
	Ind1      string              `json:"ind1"`
	Ind2      string              `json:"ind2"`
}

// ParseJSON decodes a MARC-in-JSON record:
//
//	{"fields": [{"050": {"subfields": [{"a": "QA76.73"}, {"b": "P38"}]}}]}
//
// Control fields (bare string values) are skipped; they carry no
// subfields and no call numbers.
func ParseJSON(data []byte) (Record, error) {
	var raw jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("failed to parse MARC-in-JSON record: %w", err)
	}

	var rec Record
	for _, entry := range raw.Fields {
		for tag, rawField := range entry {
			var jf jsonField
			if err := json.Unmarshal(rawField, &jf); err != nil {
				continue
			}
			field := Field{Tag: tag, Ind1: jf.Ind1, Ind2: jf.Ind2}
			for _, sf := range jf.Subfields {
				for code, value := range sf {
					field.Subfields = append(field.Subfields, Subfield{
						Code:  code,
						Value: value,
					})
				}
			}
			rec.Fields = append(rec.Fields, field)
		}
	}
	return rec, nil
}
