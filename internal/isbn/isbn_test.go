package isbn

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return NewNormalizer(t.TempDir() + "/invalid_isbns.log")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"isbn13 with hyphens", "978-0-13-110362-7", "9780131103627", true},
		{"isbn10 plain", "0131103628", "0131103628", true},
		{"isbn10 with X check digit", "097522980X", "097522980X", true},
		{"isbn10 lowercase x", "097522980x", "097522980X", true},
		{"isbn13 with spaces", "978 0 13 110362 7", "9780131103627", true},
		{"bad checksum isbn13", "9780131103628", "", false},
		{"bad checksum isbn10", "0131103629", "", false},
		{"too short", "12345", "", false},
		{"letters", "not-an-isbn", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNormalizer(t)
			got, ok := n.Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer(t)

	for _, raw := range []string{"978-0-13-110362-7", "0131103628", "097522980X"} {
		once, ok := n.Normalize(raw)
		require.True(t, ok)

		twice, ok := n.Normalize(once)
		require.True(t, ok)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeAuditsRejects(t *testing.T) {
	path := t.TempDir() + "/invalid_isbns.log"
	n := NewNormalizer(path)

	_, ok := n.Normalize("not-an-isbn")
	require.False(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1, "exactly one audit entry per reject")
	assert.Contains(t, lines[0], "not-an-isbn")

	// A second reject appends, never truncates.
	_, ok = n.Normalize("9780131103628")
	require.False(t, ok)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimRight(string(data), "\n"), "\n"), 2)
}

func TestNormalizeValidValueLeavesAuditLogAlone(t *testing.T) {
	path := t.TempDir() + "/invalid_isbns.log"
	n := NewNormalizer(path)

	_, ok := n.Normalize("9780131103627")
	require.True(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestParseRows(t *testing.T) {
	n := newTestNormalizer(t)

	res := n.ParseRows([]string{"ISBN", "978-0-13-110362-7", "0131103628", "not-an-isbn"})

	// 0131103628 is the ISBN-10 form of 978-0-13-110362-7, so the two
	// valid rows collapse into one work.
	assert.Equal(t, []string{"9780131103627"}, res.Unique)
	assert.Equal(t, 2, res.ValidRows)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, []string{"not-an-isbn"}, res.Invalid)
}

func TestParseRowsDeduplicates(t *testing.T) {
	n := newTestNormalizer(t)

	res := n.ParseRows([]string{"978-0-13-110362-7", "9780131103627", "978 0 13 110362 7"})

	assert.Equal(t, []string{"9780131103627"}, res.Unique)
	assert.Equal(t, 3, res.ValidRows)
	assert.Equal(t, 2, res.Duplicates)
	assert.Empty(t, res.Invalid)
}

func TestParseRowsHeaderAndComments(t *testing.T) {
	tests := []struct {
		name       string
		rows       []string
		wantUnique []string
		wantBad    []string
	}{
		{
			name:       "header skipped only as first data row",
			rows:       []string{"# a comment", "", "isbn13", "9780131103627"},
			wantUnique: []string{"9780131103627"},
		},
		{
			name:       "header token mid-file is just an invalid row",
			rows:       []string{"9780131103627", "isbn"},
			wantUnique: []string{"9780131103627"},
			wantBad:    []string{"isbn"},
		},
		{
			name:       "comments skipped anywhere",
			rows:       []string{"9780131103627", "# trailing comment"},
			wantUnique: []string{"9780131103627"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNormalizer(t)
			res := n.ParseRows(tt.rows)
			assert.Equal(t, tt.wantUnique, res.Unique)
			assert.Equal(t, tt.wantBad, res.Invalid)
		})
	}
}
