package z3950

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute is one bib-1 attribute pair, e.g. use attribute 7 (ISBN)
// is {Type: 1, Value: 7}.
type Attribute struct {
	Type  int
	Value int
}

// Query is a parsed single-term PQF query.
type Query struct {
	Attributes []Attribute
	Term       string
}

// ParsePQF parses the prefix query subset used for harvest lookups:
// zero or more "@attr T=V" clauses followed by a bare term, e.g.
// "@attr 1=7 9780131103627". Boolean operators are not supported.
func ParsePQF(s string) (Query, error) {
	var q Query

	tokens := strings.Fields(s)
	i := 0
	for i < len(tokens) {
		if tokens[i] != "@attr" {
			break
		}
		if i+1 >= len(tokens) {
			return Query{}, fmt.Errorf("pqf: @attr without type=value")
		}
		attr, err := parseAttrPair(tokens[i+1])
		if err != nil {
			return Query{}, err
		}
		q.Attributes = append(q.Attributes, attr)
		i += 2
	}

	if i >= len(tokens) {
		return Query{}, fmt.Errorf("pqf: missing search term in %q", s)
	}
	if strings.HasPrefix(tokens[i], "@") {
		return Query{}, fmt.Errorf("pqf: unsupported operator %q", tokens[i])
	}
	q.Term = strings.Join(tokens[i:], " ")
	return q, nil
}

func parseAttrPair(s string) (Attribute, error) {
	typ, val, ok := strings.Cut(s, "=")
	if !ok {
		return Attribute{}, fmt.Errorf("pqf: malformed attribute %q", s)
	}
	t, err := strconv.Atoi(typ)
	if err != nil {
		return Attribute{}, fmt.Errorf("pqf: attribute type in %q: %w", s, err)
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return Attribute{}, fmt.Errorf("pqf: attribute value in %q: %w", s, err)
	}
	return Attribute{Type: t, Value: v}, nil
}

// ISBNQuery builds the standard ISBN use-attribute query.
func ISBNQuery(isbn string) Query {
	return Query{
		Attributes: []Attribute{{Type: 1, Value: 7}},
		Term:       isbn,
	}
}
