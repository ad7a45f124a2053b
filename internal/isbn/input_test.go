package isbn

import (
	"testing"

	"github.com/HashemBader/lccn-harvester/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInputFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{
			name:    "tsv with extra columns",
			file:    "books.tsv",
			content: "isbn\ttitle\n9780131103627\tThe C Programming Language\n0201633612\tDesign Patterns\n",
			want:    []string{"isbn", "9780131103627", "0201633612"},
		},
		{
			name:    "csv first column",
			file:    "books.csv",
			content: "9780131103627,ignored\n0201633612,also ignored\n",
			want:    []string{"9780131103627", "0201633612"},
		},
		{
			name:    "plain txt one per line",
			file:    "books.txt",
			content: "9780131103627\n# a comment\n0201633612\n",
			want:    []string{"9780131103627", "# a comment", "0201633612"},
		},
		{
			name:    "bom stripped",
			file:    "bom.tsv",
			content: "\ufeff9780131103627\n",
			want:    []string{"9780131103627"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewTestEnv(t)
			path := env.WriteFile(tt.file, []byte(tt.content))

			rows, err := ReadInputFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestReadInputFileMissing(t *testing.T) {
	_, err := ReadInputFile("/no/such/file.tsv")
	assert.Error(t, err)
}

func TestDedupeKey(t *testing.T) {
	// ISBN-10 maps to its 978 ISBN-13 form; ISBN-13 is already canonical.
	assert.Equal(t, "9780131103627", dedupeKey("0131103628"))
	assert.Equal(t, "9780131103627", dedupeKey("9780131103627"))
	assert.Equal(t, "9780201633610", dedupeKey("0201633612"))
}
