package isbn

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// headerTokens are first-row values treated as a column header, compared
// case-insensitively.
var headerTokens = map[string]bool{
	"isbn":   true,
	"isbns":  true,
	"isbn10": true,
	"isbn13": true,
}

// ParseResult summarizes one pass over the input rows.
type ParseResult struct {
	// Unique holds normalized ISBNs, first-seen order preserved.
	Unique []string
	// ValidRows counts rows that normalized successfully, duplicates included.
	ValidRows int
	// Duplicates is ValidRows minus len(Unique).
	Duplicates int
	// Invalid holds the raw strings that failed normalization.
	Invalid []string
}

// ParseRows normalizes and deduplicates raw input rows. Comment lines
// (#-prefixed) are skipped wherever they appear; a bare header token is
// skipped only when it is the first non-empty, non-comment row.
func (n *Normalizer) ParseRows(rows []string) ParseResult {
	var res ParseResult
	seen := make(map[string]bool)
	first := true

	for _, row := range rows {
		raw := strings.TrimSpace(row)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if first {
			first = false
			if headerTokens[strings.ToLower(raw)] {
				continue
			}
		}

		normalized, ok := n.Normalize(raw)
		if !ok {
			res.Invalid = append(res.Invalid, raw)
			continue
		}

		res.ValidRows++
		key := dedupeKey(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Unique = append(res.Unique, normalized)
	}

	res.Duplicates = res.ValidRows - len(res.Unique)
	return res
}

// dedupeKey maps a normalized ISBN to its ISBN-13 form so an ISBN-10 and
// its 978-prefixed ISBN-13 collapse into one work. The mapping is internal
// to deduplication; parsed values keep the form they arrived in.
func dedupeKey(normalized string) string {
	if len(normalized) != 10 {
		return normalized
	}
	body := "978" + normalized[:9]
	sum := 0
	for i := 0; i < 12; i++ {
		v := int(body[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	check := (10 - sum%10) % 10
	return body + string(rune('0'+check))
}

// ReadInputFile reads the first column of a TSV/CSV/TXT harvest input file.
// The delimiter follows the file extension; anything that is not .csv is
// read as tab-separated, which also covers plain one-ISBN-per-line files.
func ReadInputFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(stripBOM(f))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	// Comment handling is done in ParseRows so the first-row header rule
	// sees the same row stream; the csv reader must not eat # lines here.
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		reader.Comma = ','
	} else {
		reader.Comma = '\t'
	}

	var rows []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read input row: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		rows = append(rows, record[0])
	}

	return rows, nil
}

// stripBOM removes a UTF-8 byte order mark, which spreadsheet exports
// commonly prepend.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == 0xef && buf[1] == 0xbb && buf[2] == 0xbf {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
