package target

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/HashemBader/lccn-harvester/internal/callnum"
)

const (
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	openLibraryRatePerSecond  = 3
)

// OpenLibrary queries the edition endpoint, which exposes LC
// classifications directly without a MARC round trip.
type OpenLibrary struct {
	name string
	restClient
}

// NewOpenLibrary builds the OpenLibrary target.
func NewOpenLibrary(timeout time.Duration, opts ...Option) *OpenLibrary {
	return &OpenLibrary{
		name:       "openlibrary",
		restClient: newRESTClient("OpenLibrary", defaultOpenLibraryBaseURL, openLibraryRatePerSecond, timeout, opts),
	}
}

func (t *OpenLibrary) Name() string { return t.name }

type openLibraryEdition struct {
	LCClassifications []string `json:"lc_classifications"`
}

// Lookup fetches /isbn/{isbn}.json. A 404 is a definitive miss, not an
// error.
func (t *OpenLibrary) Lookup(ctx context.Context, isbn string) (LookupResult, error) {
	body, status, err := t.get(ctx, fmt.Sprintf("%s/isbn/%s.json", t.baseURL, isbn))
	if err != nil {
		return LookupResult{}, err
	}

	res := LookupResult{ISBN: isbn, Source: t.name}

	switch {
	case status == http.StatusNotFound:
		res.Status = StatusNotFound
		return res, nil
	case status < 200 || status >= 300:
		return LookupResult{}, fmt.Errorf("openlibrary: unexpected status %d", status)
	}

	var edition openLibraryEdition
	if err := json.Unmarshal(body, &edition); err != nil {
		return LookupResult{}, fmt.Errorf("openlibrary: %w", err)
	}

	for _, cand := range edition.LCClassifications {
		cand = strings.TrimSpace(cand)
		if cand != "" && callnum.ValidateLCCN(cand) {
			res.Status = StatusSuccess
			res.LCCN = cand
			slog.Debug("OpenLibrary hit", "isbn", isbn, "lccn", cand)
			return res, nil
		}
	}

	res.Status = StatusNoCallNumber
	return res, nil
}
