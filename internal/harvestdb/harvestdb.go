// Package harvestdb persists harvest results in SQLite: a success cache
// (main) and a failure ledger (attempted) with retry-window logic. The
// orchestrator is the only writer; a successful lookup for an ISBN always
// erases its failure history.
package harvestdb

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HashemBader/lccn-harvester/internal/callnum"
)

// MainRecord is one row of the success cache.
type MainRecord struct {
	ISBN           string
	LCCN           string
	NLMCN          string
	Classification string
	Source         string
	DateAdded      time.Time
}

// AttemptRecord is one row of the failure ledger.
type AttemptRecord struct {
	ISBN          string
	LastTarget    string
	LastAttempted time.Time
	FailCount     int
	LastError     string
}

// DB wraps the harvest SQLite database. Each operation uses a short-lived
// connection from the database/sql pool; no transaction is shared across
// callers.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the harvest database at path, creating parent
// directories and applying the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open harvest database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to harvest database: %w", err), closeErr)
	}

	for _, schema := range allSchemas {
		if _, err := db.Exec(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(fmt.Errorf("failed to apply schema: %w", err), closeErr)
		}
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// GetMain returns the cached record for isbn, or nil when the ISBN has
// never been resolved.
func (d *DB) GetMain(isbn string) (*MainRecord, error) {
	row := d.db.QueryRow(`
		SELECT isbn, lccn, nlmcn, classification, source, date_added
		FROM main WHERE isbn = ?
	`, isbn)

	var rec MainRecord
	var lccn, nlmcn, classification sql.NullString
	var dateAdded string
	err := row.Scan(&rec.ISBN, &lccn, &nlmcn, &classification, &rec.Source, &dateAdded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query main for %s: %w", isbn, err)
	}

	rec.LCCN = lccn.String
	rec.NLMCN = nlmcn.String
	rec.Classification = classification.String
	rec.DateAdded, _ = time.Parse(time.RFC3339, dateAdded)
	return &rec, nil
}

// UpsertMain inserts or replaces the success-cache row for rec.ISBN,
// deriving the classification from the LCCN and stamping the insert time.
// Any attempted row for the same ISBN is deleted: success invalidates
// failure history.
func (d *DB) UpsertMain(rec MainRecord) error {
	return d.upsertMain(rec, true)
}

// UpsertMainKeepAttempted is UpsertMain without clearing the failure
// ledger, for callers backfilling the cache out of band.
func (d *DB) UpsertMainKeepAttempted(rec MainRecord) error {
	return d.upsertMain(rec, false)
}

func (d *DB) upsertMain(rec MainRecord, clearAttempted bool) error {
	classification := rec.Classification
	if classification == "" && rec.LCCN != "" {
		classification = callnum.ClassificationFromLCCN(rec.LCCN)
	}

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO main (isbn, lccn, nlmcn, classification, source, date_added)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ISBN, nullable(rec.LCCN), nullable(rec.NLMCN), nullable(classification),
		rec.Source, d.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert main for %s: %w", rec.ISBN, err)
	}

	if clearAttempted {
		if _, err := d.db.Exec(`DELETE FROM attempted WHERE isbn = ?`, rec.ISBN); err != nil {
			return fmt.Errorf("failed to clear attempted for %s: %w", rec.ISBN, err)
		}
	}
	return nil
}

// GetAttempted returns the failure-ledger row for isbn, or nil when the
// ISBN has never failed.
func (d *DB) GetAttempted(isbn string) (*AttemptRecord, error) {
	row := d.db.QueryRow(`
		SELECT isbn, last_target, last_attempted, fail_count, last_error
		FROM attempted WHERE isbn = ?
	`, isbn)

	var rec AttemptRecord
	var lastTarget, lastError sql.NullString
	var lastAttempted string
	err := row.Scan(&rec.ISBN, &lastTarget, &lastAttempted, &rec.FailCount, &lastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attempted for %s: %w", isbn, err)
	}

	rec.LastTarget = lastTarget.String
	rec.LastError = lastError.String
	rec.LastAttempted, _ = time.Parse(time.RFC3339, lastAttempted)
	return &rec, nil
}

// UpsertAttempted records a failed harvest attempt. The first failure
// inserts with fail_count 1; later failures increment the count and
// overwrite target, timestamp and error. The count only ever decreases by
// row deletion (on success).
func (d *DB) UpsertAttempted(isbn, lastTarget, lastError string) error {
	_, err := d.db.Exec(`
		INSERT INTO attempted (isbn, last_target, last_attempted, fail_count, last_error)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(isbn) DO UPDATE SET
			last_target = excluded.last_target,
			last_attempted = excluded.last_attempted,
			fail_count = fail_count + 1,
			last_error = excluded.last_error
	`, isbn, lastTarget, d.now().UTC().Format(time.RFC3339), lastError)
	if err != nil {
		return fmt.Errorf("failed to upsert attempted for %s: %w", isbn, err)
	}
	return nil
}

// ShouldSkipRetry reports whether isbn failed within the last retryDays
// days and should not be retried yet. Per-run bypass sets are the
// orchestrator's concern; this never mutates the stored row.
func (d *DB) ShouldSkipRetry(isbn string, retryDays int) (bool, error) {
	rec, err := d.GetAttempted(isbn)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	window := time.Duration(retryDays) * 24 * time.Hour
	return d.now().UTC().Sub(rec.LastAttempted) < window, nil
}

// CountMain returns the number of cached successes.
func (d *DB) CountMain() (int, error) {
	return d.count("main")
}

// CountAttempted returns the number of ISBNs in the failure ledger.
func (d *DB) CountAttempted() (int, error) {
	return d.count("attempted")
}

func (d *DB) count(table string) (int, error) {
	// table is one of two compile-time constants; no injection surface.
	var n int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// DumpMain writes the success cache as TSV, header first, ordered by ISBN.
func (d *DB) DumpMain(w io.Writer) error {
	rows, err := d.db.Query(`
		SELECT isbn, lccn, nlmcn, classification, source, date_added
		FROM main ORDER BY isbn
	`)
	if err != nil {
		return fmt.Errorf("failed to query main: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if _, err := fmt.Fprintln(w, "isbn\tlccn\tnlmcn\tclassification\tsource\tdate_added"); err != nil {
		return err
	}

	for rows.Next() {
		var isbn, source, dateAdded string
		var lccn, nlmcn, classification sql.NullString
		if err := rows.Scan(&isbn, &lccn, &nlmcn, &classification, &source, &dateAdded); err != nil {
			return fmt.Errorf("failed to scan main row: %w", err)
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			isbn, lccn.String, nlmcn.String, classification.String, source, dateAdded)
		if err != nil {
			return err
		}
	}
	return rows.Err()
}

// nullable maps empty strings to NULL so absent call numbers are stored
// as NULL rather than "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
