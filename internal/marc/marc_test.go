package marc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marcxmlWithNamespace = `<?xml version="1.0"?>
<zs:searchRetrieveResponse xmlns:zs="http://www.loc.gov/zing/srw/">
  <zs:records>
    <zs:record>
      <zs:recordData>
        <record xmlns="http://www.loc.gov/MARC21/slim">
          <leader>00000cam a2200000 a 4500</leader>
          <controlfield tag="001">12345</controlfield>
          <datafield tag="050" ind1="0" ind2="0">
            <subfield code="a">QA76.73</subfield>
            <subfield code="b">P38</subfield>
          </datafield>
          <datafield tag="245" ind1="1" ind2="0">
            <subfield code="a">Some title</subfield>
          </datafield>
        </record>
      </zs:recordData>
    </zs:record>
  </zs:records>
</zs:searchRetrieveResponse>`

func TestParseXMLNamespaceAgnostic(t *testing.T) {
	rec, err := ParseXML(strings.NewReader(marcxmlWithNamespace))
	require.NoError(t, err)

	lccn, nlmcn := ExtractCallNumbers(rec)
	assert.Equal(t, "QA76.73 P38", lccn)
	assert.Equal(t, "", nlmcn, "record has no 060")
}

func TestParseXMLPrefixedMarcNamespace(t *testing.T) {
	const doc = `<marc:record xmlns:marc="http://www.loc.gov/MARC21/slim">
  <marc:datafield tag="060" ind1=" " ind2=" ">
    <marc:subfield code="a">WG 120.5</marc:subfield>
  </marc:datafield>
</marc:record>`

	rec, err := ParseXML(strings.NewReader(doc))
	require.NoError(t, err)

	lccn, nlmcn := ExtractCallNumbers(rec)
	assert.Equal(t, "", lccn)
	assert.Equal(t, "WG 120.5", nlmcn)
}

func TestParseXMLNoRecord(t *testing.T) {
	_, err := ParseXML(strings.NewReader("<empty/>"))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"leader": "00000cam a2200000 a 4500",
		"fields": [
			{"001": "12345"},
			{"050": {"ind1": "0", "ind2": "0", "subfields": [{"a": "QA76.73"}, {"b": "P38"}]}},
			{"060": {"subfields": [{"a": "WG 120"}]}}
		]
	}`)

	rec, err := ParseJSON(data)
	require.NoError(t, err)

	lccn, nlmcn := ExtractCallNumbers(rec)
	assert.Equal(t, "QA76.73 P38", lccn)
	assert.Equal(t, "WG 120", nlmcn)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON([]byte(`{"fields": "nope"}`))
	assert.Error(t, err)
}

func TestExtractCallNumbersRepeatedFields(t *testing.T) {
	// When 050 repeats, the last $a wins while every $b accumulates.
	rec := Record{Fields: []Field{
		{Tag: "050", Subfields: []Subfield{
			{Code: "a", Value: "QA76.73"},
			{Code: "b", Value: "P38"},
		}},
		{Tag: "050", Subfields: []Subfield{
			{Code: "a", Value: "QA76.9"},
			{Code: "b", Value: "C65"},
		}},
	}}

	lccn, _ := ExtractCallNumbers(rec)
	assert.Equal(t, "QA76.9 P38 C65", lccn)
}

func TestExtractCallNumbersSubfieldOrder(t *testing.T) {
	// $a, $b, $c join in that order regardless of document order.
	rec := Record{Fields: []Field{
		{Tag: "060", Subfields: []Subfield{
			{Code: "c", Value: "2008"},
			{Code: "b", Value: "B123"},
			{Code: "a", Value: "WG 120"},
		}},
	}}

	_, nlmcn := ExtractCallNumbers(rec)
	assert.Equal(t, "WG 120 B123 2008", nlmcn)
}

func TestExtractCallNumbersEmpty(t *testing.T) {
	lccn, nlmcn := ExtractCallNumbers(Record{})
	assert.Equal(t, "", lccn)
	assert.Equal(t, "", nlmcn)

	// Whitespace-only subfields do not produce a call number.
	rec := Record{Fields: []Field{
		{Tag: "050", Subfields: []Subfield{{Code: "a", Value: "   "}}},
	}}
	lccn, _ = ExtractCallNumbers(rec)
	assert.Equal(t, "", lccn)
}

// buildBinaryRecord assembles a well-formed ISO 2709 record for tests.
func buildBinaryRecord(t *testing.T, fields []Field) []byte {
	t.Helper()

	var dir, body []byte
	for _, f := range fields {
		var fieldBody []byte
		ind1, ind2 := f.Ind1, f.Ind2
		if ind1 == "" {
			ind1 = " "
		}
		if ind2 == "" {
			ind2 = " "
		}
		fieldBody = append(fieldBody, ind1[0], ind2[0])
		for _, sf := range f.Subfields {
			fieldBody = append(fieldBody, subfieldDelimiter)
			fieldBody = append(fieldBody, sf.Code...)
			fieldBody = append(fieldBody, sf.Value...)
		}
		fieldBody = append(fieldBody, fieldTerminator)

		entry := f.Tag + pad(len(fieldBody), 4) + pad(len(body), 5)
		dir = append(dir, entry...)
		body = append(body, fieldBody...)
	}
	dir = append(dir, fieldTerminator)
	body = append(body, recordTerminator)

	baseAddress := leaderSize + len(dir)
	recordLen := baseAddress + len(body)

	leader := pad(recordLen, 5) + "cam a22" + pad(baseAddress, 5) + " a 4500"
	require.Len(t, leader, leaderSize)

	out := append([]byte(leader), dir...)
	return append(out, body...)
}

func pad(n, width int) string {
	s := strings.Repeat("0", width) + itoa(n)
	return s[len(s)-width:]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestParseBinary(t *testing.T) {
	data := buildBinaryRecord(t, []Field{
		{Tag: "050", Ind1: "0", Ind2: "0", Subfields: []Subfield{
			{Code: "a", Value: "QA76.76"},
			{Code: "b", Value: ".C65 2008"},
		}},
		{Tag: "060", Subfields: []Subfield{
			{Code: "a", Value: "W 26.5"},
		}},
	})

	rec, err := ParseBinary(data)
	require.NoError(t, err)
	require.Len(t, rec.Fields, 2)
	assert.Equal(t, "050", rec.Fields[0].Tag)
	assert.Equal(t, "0", rec.Fields[0].Ind1)

	lccn, nlmcn := ExtractCallNumbers(rec)
	assert.Equal(t, "QA76.76 .C65 2008", lccn)
	assert.Equal(t, "W 26.5", nlmcn)
}

func TestParseBinaryAll(t *testing.T) {
	first := buildBinaryRecord(t, []Field{
		{Tag: "050", Subfields: []Subfield{{Code: "a", Value: "Z695"}}},
	})
	second := buildBinaryRecord(t, []Field{
		{Tag: "060", Subfields: []Subfield{{Code: "a", Value: "WG 120.5"}}},
	})

	records, err := ParseBinaryAll(append(first, second...))
	require.NoError(t, err)
	require.Len(t, records, 2)

	lccn, _ := ExtractCallNumbers(records[0])
	assert.Equal(t, "Z695", lccn)
	_, nlmcn := ExtractCallNumbers(records[1])
	assert.Equal(t, "WG 120.5", nlmcn)
}

func TestParseBinaryTruncated(t *testing.T) {
	_, err := ParseBinary([]byte("too short"))
	assert.Error(t, err)

	_, err = ParseBinaryAll([]byte("not marc at all, definitely not"))
	assert.Error(t, err)
}
