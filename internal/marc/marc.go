// Package marc decodes MARC21 bibliographic records from MARCXML,
// MARC-in-JSON, and binary ISO 2709, and extracts the 050 (LC) and 060
// (NLM) call-number fields. Nothing outside those two tags is modeled
// beyond what transport needs.
package marc

import "strings"

// Tags this pipeline cares about.
const (
	TagLCCallNumber  = "050"
	TagNLMCallNumber = "060"
)

// Subfield is one coded value inside a data field.
type Subfield struct {
	Code  string
	Value string
}

// Field is one MARC data field with its tag, indicators and subfields.
type Field struct {
	Tag       string
	Ind1      string
	Ind2      string
	Subfields []Subfield
}

// Record is a decoded MARC record, shape-agnostic with respect to the wire
// format it arrived in.
type Record struct {
	Fields []Field
}

// fields returns all fields carrying the given tag, in document order.
func (r Record) fields(tag string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// ExtractCallNumbers pulls the LC (050) and NLM (060) call numbers from a
// record. Subfields $a, $b and $c are joined in that order with single
// spaces. When a tag repeats, the last $a seen wins while every $b and $c
// is accumulated; this mirrors the behavior of the harvest pipeline this
// decoder replaces and is pinned by tests. An absent tag or an empty join
// yields "".
func ExtractCallNumbers(r Record) (lccn, nlmcn string) {
	return joinCallNumber(r.fields(TagLCCallNumber)),
		joinCallNumber(r.fields(TagNLMCallNumber))
}

func joinCallNumber(fields []Field) string {
	var a string
	var bs, cs []string

	for _, f := range fields {
		for _, sf := range f.Subfields {
			v := strings.TrimSpace(sf.Value)
			if v == "" {
				continue
			}
			switch sf.Code {
			case "a":
				a = v
			case "b":
				bs = append(bs, v)
			case "c":
				cs = append(cs, v)
			}
		}
	}

	var parts []string
	if a != "" {
		parts = append(parts, a)
	}
	parts = append(parts, bs...)
	parts = append(parts, cs...)
	return strings.Join(parts, " ")
}
