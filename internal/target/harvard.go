package target

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/HashemBader/lccn-harvester/internal/callnum"
)

const (
	defaultHarvardBaseURL = "https://api.lib.harvard.edu/v2/items.json"
	harvardRatePerSecond  = 4
	candidateWalkDepth    = 6
)

// modsCallNumberKeys are the MODS element names that may carry a call
// number, in either the JSON rendering or embedded MODS XML.
var modsCallNumberKeys = map[string]bool{
	"classification": true,
	"shelfLocator":   true,
	"callNumber":     true,
}

// Harvard queries the LibraryCloud items API, which returns MODS
// records rendered as JSON with occasional embedded XML fragments.
type Harvard struct {
	name string
	restClient
}

// NewHarvard builds the Harvard LibraryCloud target.
func NewHarvard(timeout time.Duration, opts ...Option) *Harvard {
	return &Harvard{
		name:       "harvard",
		restClient: newRESTClient("Harvard", defaultHarvardBaseURL, harvardRatePerSecond, timeout, opts),
	}
}

func (t *Harvard) Name() string { return t.name }

// Lookup searches by identifier first and falls back to a keyword
// query, since LibraryCloud indexes some ISBNs only in the full record.
func (t *Harvard) Lookup(ctx context.Context, isbn string) (LookupResult, error) {
	for _, param := range []string{"identifier", "q"} {
		found, candidates, err := t.search(ctx, param, isbn)
		if err != nil {
			return LookupResult{}, err
		}
		if !found {
			continue
		}

		res := LookupResult{ISBN: isbn, Source: t.name, Status: StatusNoCallNumber}
		for _, cand := range candidates {
			cand = strings.TrimSpace(cand)
			if cand == "" {
				continue
			}
			if res.NLMCN == "" && callnum.ValidateNLMCN(cand) {
				res.NLMCN = cand
				continue
			}
			if res.LCCN == "" && callnum.ValidateLCCN(cand) {
				res.LCCN = cand
			}
		}
		if res.LCCN != "" || res.NLMCN != "" {
			res.Status = StatusSuccess
			slog.Debug("Harvard hit", "isbn", isbn, "lccn", res.LCCN, "nlmcn", res.NLMCN)
		}
		return res, nil
	}

	return LookupResult{ISBN: isbn, Source: t.name, Status: StatusNotFound}, nil
}

func (t *Harvard) search(ctx context.Context, param, isbn string) (bool, []string, error) {
	params := url.Values{}
	params.Set(param, isbn)
	params.Set("limit", "5")

	body, status, err := t.get(ctx, t.baseURL+"?"+params.Encode())
	if err != nil {
		return false, nil, err
	}
	if status < 200 || status >= 300 {
		return false, nil, fmt.Errorf("librarycloud: unexpected status %d", status)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, nil, fmt.Errorf("librarycloud: %w", err)
	}

	if numFound(payload) == 0 {
		return false, nil, nil
	}

	var candidates []string
	for _, item := range modsItems(payload) {
		collectCandidates(item, "", 0, &candidates)
	}
	return true, candidates, nil
}

func numFound(payload map[string]any) int {
	pagination, ok := payload["pagination"].(map[string]any)
	if !ok {
		return 0
	}
	if n, ok := pagination["numFound"].(float64); ok {
		return int(n)
	}
	return 0
}

// modsItems normalizes the items.mods shape, which is an object for a
// single hit and an array for several.
func modsItems(payload map[string]any) []any {
	items, ok := payload["items"].(map[string]any)
	if !ok {
		return nil
	}
	switch mods := items["mods"].(type) {
	case []any:
		return mods
	case map[string]any:
		return []any{mods}
	default:
		return nil
	}
}

// collectCandidates walks the JSON tree gathering string values that
// sit under a call-number element name, plus strings parsed out of any
// embedded MODS XML fragment.
func collectCandidates(v any, key string, depth int, out *[]string) {
	if depth > candidateWalkDepth {
		return
	}
	switch val := v.(type) {
	case string:
		if strings.Contains(val, "<mods") {
			*out = append(*out, xmlCandidates(val)...)
			return
		}
		if modsCallNumberKeys[key] {
			*out = append(*out, val)
		}
	case map[string]any:
		for k, child := range val {
			next := k
			// "#text" carries the value of the enclosing element.
			if k == "#text" {
				next = key
			}
			collectCandidates(child, next, depth+1, out)
		}
	case []any:
		for _, child := range val {
			collectCandidates(child, key, depth+1, out)
		}
	}
}

func xmlCandidates(fragment string) []string {
	var out []string
	dec := xml.NewDecoder(strings.NewReader(fragment))
	capture := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.StartElement:
			capture = modsCallNumberKeys[t.Name.Local]
		case xml.CharData:
			if capture {
				if s := strings.TrimSpace(string(t)); s != "" {
					out = append(out, s)
				}
			}
		case xml.EndElement:
			capture = false
		}
	}
}
