// Package isbn validates and normalizes ISBN strings and parses harvest
// input files. Rejected values are appended to an audit log instead of
// being returned as errors so a bad row never aborts a run.
package isbn

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Reasons recorded in the audit log.
const (
	reasonBadLength   = "invalid length"
	reasonBadChars    = "invalid characters"
	reasonBadChecksum = "checksum mismatch"
)

// Normalizer validates ISBN-10/13 strings and records rejects.
type Normalizer struct {
	auditPath string
	now       func() time.Time
}

// NewNormalizer creates a Normalizer that appends rejected values to the
// audit log at auditPath. An empty path disables audit logging.
func NewNormalizer(auditPath string) *Normalizer {
	return &Normalizer{
		auditPath: auditPath,
		now:       time.Now,
	}
}

// Normalize strips separators from raw and validates the ISBN-10 or ISBN-13
// checksum. On success it returns the normalized digit string (trailing X
// uppercased) and true. On failure it appends one audit-log entry and
// returns ("", false); it never returns an error.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	cleaned = strings.ToUpper(cleaned)

	switch len(cleaned) {
	case 10:
		if !validChars(cleaned, true) {
			n.audit(raw, reasonBadChars)
			return "", false
		}
		if !checksum10(cleaned) {
			n.audit(raw, reasonBadChecksum)
			return "", false
		}
	case 13:
		if !validChars(cleaned, false) {
			n.audit(raw, reasonBadChars)
			return "", false
		}
		if !checksum13(cleaned) {
			n.audit(raw, reasonBadChecksum)
			return "", false
		}
	default:
		n.audit(raw, reasonBadLength)
		return "", false
	}

	return cleaned, true
}

// validChars reports whether s is all digits, allowing a final X when
// allowX is set (ISBN-10 check digit).
func validChars(s string, allowX bool) bool {
	for i, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		if allowX && r == 'X' && i == len(s)-1 {
			continue
		}
		return false
	}
	return true
}

func checksum10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		if s[i] == 'X' {
			v = 10
		} else {
			v = int(s[i] - '0')
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func checksum13(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		v := int(s[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}

// audit appends a timestamped reject entry. Audit failures are logged and
// swallowed: losing an audit line must not fail the harvest.
func (n *Normalizer) audit(raw, reason string) {
	if n.auditPath == "" {
		return
	}
	f, err := os.OpenFile(n.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Warn("Failed to open ISBN audit log", "path", n.auditPath, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s\t%s\t%s\n", n.now().UTC().Format(time.RFC3339), raw, reason)
	if _, err := f.WriteString(line); err != nil {
		slog.Warn("Failed to write ISBN audit log entry", "path", n.auditPath, "error", err)
	}
}
