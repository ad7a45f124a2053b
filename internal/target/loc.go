package target

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HashemBader/lccn-harvester/internal/callnum"
	"github.com/HashemBader/lccn-harvester/internal/marc"
)

const (
	defaultLoCBaseURL = "http://lx2.loc.gov:210/LCDB"
	locRatePerSecond  = 2 // LoC asks for restraint on the public SRU endpoint
	sruMaxRecords     = 3
)

// LoC queries the Library of Congress SRU endpoint for MARCXML records.
type LoC struct {
	name string
	restClient
}

// NewLoC builds the Library of Congress target.
func NewLoC(timeout time.Duration, opts ...Option) *LoC {
	return &LoC{
		name:       "loc",
		restClient: newRESTClient("LoC", defaultLoCBaseURL, locRatePerSecond, timeout, opts),
	}
}

func (t *LoC) Name() string { return t.name }

// Lookup runs a bath.isbn searchRetrieve and extracts call numbers from
// the returned MARCXML.
func (t *LoC) Lookup(ctx context.Context, isbn string) (LookupResult, error) {
	params := url.Values{}
	params.Set("version", "1.1")
	params.Set("operation", "searchRetrieve")
	params.Set("query", "bath.isbn="+isbn)
	params.Set("maximumRecords", strconv.Itoa(sruMaxRecords))
	params.Set("recordSchema", "marcxml")

	body, status, err := t.get(ctx, t.baseURL+"?"+params.Encode())
	if err != nil {
		return LookupResult{}, err
	}
	if status < 200 || status >= 300 {
		return LookupResult{}, fmt.Errorf("loc sru: unexpected status %d", status)
	}

	res := LookupResult{ISBN: isbn, Source: t.name}

	if n, ok := sruNumberOfRecords(body); ok && n == 0 {
		res.Status = StatusNotFound
		return res, nil
	}

	records, err := marc.ParseXMLAll(bytes.NewReader(body))
	if err != nil {
		return LookupResult{}, fmt.Errorf("loc sru: %w", err)
	}

	lccn, nlmcn := pickCallNumbers(records)
	if lccn == "" && nlmcn == "" {
		if len(nonEmpty(records)) == 0 {
			res.Status = StatusNotFound
		} else {
			res.Status = StatusNoCallNumber
		}
		return res, nil
	}

	res.Status = StatusSuccess
	res.LCCN = lccn
	res.NLMCN = nlmcn
	slog.Debug("LoC hit", "isbn", isbn, "lccn", lccn, "nlmcn", nlmcn)
	return res, nil
}

// sruNumberOfRecords scans the SRU envelope for the hit count without
// binding to a namespace prefix.
func sruNumberOfRecords(body []byte) (int, bool) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	inCount := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inCount = t.Name.Local == "numberOfRecords"
		case xml.CharData:
			if inCount {
				n, err := strconv.Atoi(strings.TrimSpace(string(t)))
				if err != nil {
					return 0, false
				}
				return n, true
			}
		case xml.EndElement:
			inCount = false
		}
	}
}

// nonEmpty drops envelope artifacts: SRU wrapper elements named
// "record" decode as records with no fields.
func nonEmpty(records []marc.Record) []marc.Record {
	var out []marc.Record
	for _, r := range records {
		if len(r.Fields) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// pickCallNumbers returns the first validated LC and NLM call numbers
// found across the records, in record order.
func pickCallNumbers(records []marc.Record) (lccn, nlmcn string) {
	for _, rec := range records {
		l, n := marc.ExtractCallNumbers(rec)
		if lccn == "" && l != "" && callnum.ValidateLCCN(l) {
			lccn = l
		}
		if nlmcn == "" && n != "" && callnum.ValidateNLMCN(n) {
			nlmcn = n
		}
		if lccn != "" && nlmcn != "" {
			break
		}
	}
	return lccn, nlmcn
}
