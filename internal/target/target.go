// Package target defines the lookup sources the harvester cascades
// through, plus the retry policy applied uniformly around each one.
package target

import (
	"context"
	"time"
)

// Status classifies the outcome of one lookup against one source.
type Status int

const (
	// StatusSuccess means at least one usable call number came back.
	StatusSuccess Status = iota
	// StatusNotFound means the source answered and holds no record.
	StatusNotFound
	// StatusNoCallNumber means a record exists but carries no call
	// number the harvester can use.
	StatusNoCallNumber
	// StatusError means the source could not be consulted.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusNoCallNumber:
		return "no_call_number"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// LookupResult is the outcome of one ISBN lookup. LCCN and NLMCN hold
// validated call numbers; either may be empty on success as long as one
// is set.
type LookupResult struct {
	ISBN   string
	Source string
	Status Status
	LCCN   string
	NLMCN  string
	Err    error
}

// A Target resolves one ISBN against one source. Lookup returns an
// error only for transport-level failures worth retrying; definitive
// outcomes (not found, no call number) come back as a clean result.
type Target interface {
	Name() string
	Lookup(ctx context.Context, isbn string) (LookupResult, error)
}

// RetryPolicy retries a lookup on returned errors only. A result with
// StatusError but nil error is definitive and passes straight through.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Do runs the lookup up to MaxRetries+1 times. On exhaustion the last
// error is folded into an error-status result so the orchestrator can
// bucket it without special-casing.
func (p RetryPolicy) Do(ctx context.Context, t Target, isbn string) LookupResult {
	var lastErr error

	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && p.Delay > 0 {
			select {
			case <-ctx.Done():
				return LookupResult{ISBN: isbn, Source: t.Name(), Status: StatusError, Err: ctx.Err()}
			case <-time.After(p.Delay):
			}
		}

		res, err := t.Lookup(ctx, isbn)
		if err == nil {
			return res
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return LookupResult{
		ISBN:   isbn,
		Source: t.Name(),
		Status: StatusError,
		Err:    lastErr,
	}
}

// Mode restricts which call number kinds a harvest run accepts.
type Mode string

const (
	ModeBoth  Mode = "both"
	ModeLCCN  Mode = "lccn"
	ModeNLMCN Mode = "nlmcn"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeBoth, ModeLCCN, ModeNLMCN:
		return Mode(s), true
	}
	return "", false
}

// Apply drops call numbers the mode excludes. A success whose only call
// number is filtered out degrades to no-call-number so the cascade
// moves on.
func (m Mode) Apply(res LookupResult) LookupResult {
	switch m {
	case ModeLCCN:
		res.NLMCN = ""
	case ModeNLMCN:
		res.LCCN = ""
	}
	if res.Status == StatusSuccess && res.LCCN == "" && res.NLMCN == "" {
		res.Status = StatusNoCallNumber
	}
	return res
}
