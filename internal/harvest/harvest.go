// Package harvest drives the per-ISBN source cascade: cache check,
// retry-window check, then targets in rank order until one yields a
// call number. Results land in the cache database; every outcome is
// reported through a progress callback.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/HashemBader/lccn-harvester/internal/harvestdb"
	"github.com/HashemBader/lccn-harvester/internal/target"
)

const (
	defaultRetryDays  = 7
	defaultMaxWorkers = 1
)

// ProgressFunc receives progress events. With more than one worker it
// is invoked concurrently; event order is guaranteed within one ISBN
// only.
type ProgressFunc func(event string, payload map[string]any)

// Options tunes one harvest run.
type Options struct {
	// RetryDays is the window during which a previously failed ISBN is
	// skipped. Zero means the default of 7 days.
	RetryDays int
	// MaxWorkers bounds the number of ISBNs processed in parallel.
	// Zero means sequential.
	MaxWorkers int
	// Mode restricts which call number kinds count as a success.
	Mode target.Mode
	// DryRun looks up but never writes the database.
	DryRun bool
	// BypassCache forces fresh lookups for these ISBNs even when cached.
	BypassCache map[string]bool
	// BypassRetry ignores the retry window for these ISBNs.
	BypassRetry map[string]bool
	// Progress receives events; nil disables reporting.
	Progress ProgressFunc
}

// Summary aggregates one run's outcomes.
type Summary struct {
	TotalISBNs        int
	CachedHits        int
	SkippedRecentFail int
	Attempted         int
	Successes         int
	Failures          int
}

// Harvester runs the cascade against a fixed target list.
type Harvester struct {
	db      *harvestdb.DB
	targets []target.Entry
	opts    Options

	mu      sync.Mutex
	summary Summary
}

// New builds a harvester. The target list must already be in rank
// order, as produced by target.Build.
func New(db *harvestdb.DB, targets []target.Entry, opts Options) *Harvester {
	if opts.RetryDays <= 0 {
		opts.RetryDays = defaultRetryDays
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = defaultMaxWorkers
	}
	if opts.Mode == "" {
		opts.Mode = target.ModeBoth
	}
	return &Harvester{db: db, targets: targets, opts: opts}
}

// Per-ISBN terminal states.
type status int

const (
	statusCached status = iota
	statusSkipRetry
	statusSuccess
	statusFailed
	statusCancelled
)

// Run processes the ISBNs and returns the summary. Cancellation is not
// an error: dispatching stops, in-flight lookups finish naturally, and
// the partial summary is returned with a nil error.
func (h *Harvester) Run(ctx context.Context, isbns []string) (Summary, error) {
	h.mu.Lock()
	h.summary = Summary{TotalISBNs: len(isbns)}
	h.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.MaxWorkers)

	for _, isbn := range isbns {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			st := h.processISBN(gctx, isbn)
			h.record(st, len(isbns))
			return nil
		})
	}

	_ = g.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary, nil
}

// record folds one terminal state into the counters and emits a stats
// event with a consistent snapshot.
func (h *Harvester) record(st status, total int) {
	if st == statusCancelled {
		return
	}

	h.mu.Lock()
	switch st {
	case statusCached:
		h.summary.CachedHits++
	case statusSkipRetry:
		h.summary.SkippedRecentFail++
	case statusSuccess:
		h.summary.Attempted++
		h.summary.Successes++
	case statusFailed:
		h.summary.Attempted++
		h.summary.Failures++
	}
	snapshot := h.summary
	h.mu.Unlock()

	h.emit("stats", map[string]any{
		"total":     total,
		"cached":    snapshot.CachedHits,
		"skipped":   snapshot.SkippedRecentFail,
		"attempted": snapshot.Attempted,
		"successes": snapshot.Successes,
		"failures":  snapshot.Failures,
	})
}

// processISBN runs the full state machine for one ISBN on the calling
// goroutine.
func (h *Harvester) processISBN(ctx context.Context, isbn string) status {
	if ctx.Err() != nil {
		return statusCancelled
	}
	h.emit("isbn_start", map[string]any{"isbn": isbn})

	if !h.opts.BypassCache[isbn] {
		rec, err := h.db.GetMain(isbn)
		if err != nil {
			slog.Warn("cache read failed", "isbn", isbn, "error", err)
		} else if rec != nil {
			h.emit("cached", map[string]any{"isbn": isbn})
			return statusCached
		}
	}

	if !h.opts.BypassRetry[isbn] {
		skip, err := h.db.ShouldSkipRetry(isbn, h.opts.RetryDays)
		if err != nil {
			slog.Warn("retry ledger read failed", "isbn", isbn, "error", err)
		} else if skip {
			h.emit("skip_retry", map[string]any{"isbn": isbn, "retry_days": h.opts.RetryDays})
			return statusSkipRetry
		}
	}

	var (
		lastError       string
		lastTarget      string
		notFoundTargets []string
		otherErrors     []string
	)

	for _, entry := range h.targets {
		if ctx.Err() != nil {
			return statusCancelled
		}

		lastTarget = entry.Target.Name()
		h.emit("target_start", map[string]any{"isbn": isbn, "target": lastTarget})

		res := h.opts.Mode.Apply(entry.Retry.Do(ctx, entry.Target, isbn))

		if res.Status == target.StatusSuccess {
			h.emit("success", map[string]any{"isbn": isbn, "target": lastTarget})
			if !h.opts.DryRun {
				h.writeSuccess(isbn, lastTarget, res)
			}
			return statusSuccess
		}

		lastError = resultError(res, lastTarget)
		if res.Status == target.StatusNotFound {
			notFoundTargets = append(notFoundTargets, lastTarget)
		} else {
			otherErrors = append(otherErrors, lastTarget+": "+lastError)
		}
	}

	lastError = composeFailure(notFoundTargets, otherErrors, lastError)

	h.emit("failed", map[string]any{
		"isbn":        isbn,
		"last_target": lastTarget,
		"last_error":  lastError,
	})

	if !h.opts.DryRun {
		if err := h.db.UpsertAttempted(isbn, lastTarget, lastError); err != nil {
			slog.Error("recording attempt failed", "isbn", isbn, "error", err)
		}
	}
	return statusFailed
}

func (h *Harvester) writeSuccess(isbn, targetName string, res target.LookupResult) {
	source := res.Source
	if source == "" {
		source = targetName
	}
	err := h.db.UpsertMain(harvestdb.MainRecord{
		ISBN:   isbn,
		LCCN:   res.LCCN,
		NLMCN:  res.NLMCN,
		Source: source,
	})
	if err != nil {
		slog.Error("caching result failed", "isbn", isbn, "error", err)
	}
}

func (h *Harvester) emit(event string, payload map[string]any) {
	if h.opts.Progress != nil {
		h.opts.Progress(event, payload)
	}
}

// resultError renders one target's failure for the ledger.
func resultError(res target.LookupResult, targetName string) string {
	switch res.Status {
	case target.StatusNotFound:
		return "No records found in " + targetName
	case target.StatusNoCallNumber:
		return "No usable call number"
	default:
		if res.Err != nil {
			return res.Err.Error()
		}
		return "Unknown error"
	}
}

// composeFailure folds per-target failures into the single last_error
// string stored in the ledger: not-found targets first, then the rest.
func composeFailure(notFound, other []string, lastError string) string {
	switch {
	case len(notFound) > 0 && len(other) == 0:
		return "Not found in: " + strings.Join(notFound, ", ")
	case len(notFound) > 0:
		return fmt.Sprintf("Not found in: %s | Other errors: %s",
			strings.Join(notFound, ", "), strings.Join(other, " ; "))
	case len(other) > 0:
		return strings.Join(other, " ; ")
	default:
		return lastError
	}
}
