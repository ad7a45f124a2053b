package target

import (
	"context"
	"log/slog"
	"time"

	"github.com/HashemBader/lccn-harvester/internal/marc"
	"github.com/HashemBader/lccn-harvester/internal/ratelimit"
	"github.com/HashemBader/lccn-harvester/internal/z3950"
)

const (
	z3950RatePerSecond = 1 // library catalogs throttle aggressively
	z3950MaxRecords    = 3
)

// Z3950 wraps one Z39.50 catalog as a lookup target. Each lookup opens
// a fresh association; catalog servers drop idle connections quickly
// enough that pooling is not worth the bookkeeping.
type Z3950 struct {
	name    string
	opts    z3950.Options
	limiter *ratelimit.Limiter
}

// NewZ3950 builds a target for one configured catalog.
func NewZ3950(name string, opts z3950.Options) *Z3950 {
	return &Z3950{
		name:    name,
		opts:    opts,
		limiter: ratelimit.New(name, z3950RatePerSecond),
	}
}

func (t *Z3950) Name() string { return t.name }

// Lookup searches by ISBN use attribute and decodes the presented
// USMARC records.
func (t *Z3950) Lookup(ctx context.Context, isbn string) (LookupResult, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return LookupResult{}, err
	}

	session, err := z3950.Dial(ctx, t.opts)
	if err != nil {
		return LookupResult{}, err
	}
	defer func() { _ = session.Close() }()

	raw, err := session.SearchISBN(ctx, isbn, z3950MaxRecords)
	if err != nil {
		return LookupResult{}, err
	}

	res := LookupResult{ISBN: isbn, Source: t.name}
	if len(raw) == 0 {
		res.Status = StatusNotFound
		return res, nil
	}

	var records []marc.Record
	for _, b := range raw {
		rec, err := marc.ParseBinary(b)
		if err != nil {
			slog.Debug("skipping undecodable record", "target", t.name, "isbn", isbn, "error", err)
			continue
		}
		records = append(records, rec)
	}

	lccn, nlmcn := pickCallNumbers(records)
	if lccn == "" && nlmcn == "" {
		res.Status = StatusNoCallNumber
		return res, nil
	}

	res.Status = StatusSuccess
	res.LCCN = lccn
	res.NLMCN = nlmcn
	return res, nil
}

// timeoutOrDefault is used by config wiring; zero means the session
// default.
func timeoutOrDefault(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
