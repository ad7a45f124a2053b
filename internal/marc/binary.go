package marc

import (
	"fmt"
	"strconv"
	"strings"
)

// ISO 2709 framing.
const (
	leaderSize         = 24
	directoryEntrySize = 12
	fieldTerminator    = 0x1e
	subfieldDelimiter  = 0x1f
	recordTerminator   = 0x1d
)

// ParseBinary decodes one binary (ISO 2709) MARC record. The leader's
// first five bytes give the record length and bytes 12-16 the base address
// of data; the directory is a run of 12-byte entries (3-byte tag, 4-byte
// field length, 5-byte start offset) ending at a field terminator.
func ParseBinary(data []byte) (Record, error) {
	if len(data) < leaderSize {
		return Record{}, fmt.Errorf("record shorter than MARC leader: %d bytes", len(data))
	}

	recordLen, err := leaderInt(data[0:5])
	if err != nil {
		return Record{}, fmt.Errorf("bad record length in leader: %w", err)
	}
	if recordLen > len(data) {
		return Record{}, fmt.Errorf("leader claims %d bytes, record has %d", recordLen, len(data))
	}

	baseAddress, err := leaderInt(data[12:17])
	if err != nil {
		return Record{}, fmt.Errorf("bad base address in leader: %w", err)
	}
	if baseAddress > recordLen {
		return Record{}, fmt.Errorf("base address %d beyond record end", baseAddress)
	}

	var rec Record
	for pos := leaderSize; pos+directoryEntrySize <= baseAddress; pos += directoryEntrySize {
		if data[pos] == fieldTerminator {
			break
		}
		entry := data[pos : pos+directoryEntrySize]

		tag := string(entry[0:3])
		fieldLen, err := leaderInt(entry[3:7])
		if err != nil {
			return Record{}, fmt.Errorf("bad length in directory entry for tag %s: %w", tag, err)
		}
		start, err := leaderInt(entry[7:12])
		if err != nil {
			return Record{}, fmt.Errorf("bad offset in directory entry for tag %s: %w", tag, err)
		}

		fieldStart := baseAddress + start
		fieldEnd := fieldStart + fieldLen
		if fieldEnd > recordLen {
			return Record{}, fmt.Errorf("field %s overruns record end", tag)
		}

		field, ok := parseBinaryField(tag, data[fieldStart:fieldEnd])
		if ok {
			rec.Fields = append(rec.Fields, field)
		}
	}

	return rec, nil
}

// ParseBinaryAll splits a stream of concatenated ISO 2709 records on the
// record terminator and decodes each. Records that fail to decode are
// skipped; a stream with zero decodable records is an error.
func ParseBinaryAll(data []byte) ([]Record, error) {
	var records []Record
	var firstErr error

	for len(data) >= leaderSize {
		recordLen, err := leaderInt(data[0:5])
		if err != nil || recordLen < leaderSize || recordLen > len(data) {
			break
		}

		rec, err := ParseBinary(data[:recordLen])
		if err == nil {
			records = append(records, rec)
		} else if firstErr == nil {
			firstErr = err
		}

		data = data[recordLen:]
		// Tolerate a stray terminator between records.
		for len(data) > 0 && data[0] == recordTerminator {
			data = data[1:]
		}
	}

	if len(records) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("no decodable MARC records in stream")
	}
	return records, nil
}

// parseBinaryField decodes one field body. Control fields (tags 00x) carry
// no subfields and are skipped; call-number extraction never needs them.
func parseBinaryField(tag string, body []byte) (Field, bool) {
	if strings.HasPrefix(tag, "00") {
		return Field{}, false
	}

	body = trimTerminator(body)
	if len(body) < 2 {
		return Field{}, false
	}

	field := Field{
		Tag:  tag,
		Ind1: string(body[0]),
		Ind2: string(body[1]),
	}

	for _, chunk := range splitBytes(body[2:], subfieldDelimiter) {
		if len(chunk) < 1 {
			continue
		}
		field.Subfields = append(field.Subfields, Subfield{
			Code:  string(chunk[0]),
			Value: string(chunk[1:]),
		})
	}

	return field, true
}

func trimTerminator(body []byte) []byte {
	for len(body) > 0 {
		last := body[len(body)-1]
		if last != fieldTerminator && last != recordTerminator {
			break
		}
		body = body[:len(body)-1]
	}
	return body
}

// splitBytes splits on sep, dropping the leading chunk before the first
// separator (indicator padding in a field body).
func splitBytes(data []byte, sep byte) [][]byte {
	var chunks [][]byte
	start := -1
	for i, b := range data {
		if b == sep {
			if start >= 0 {
				chunks = append(chunks, data[start:i])
			}
			start = i + 1
		}
	}
	if start >= 0 {
		chunks = append(chunks, data[start:])
	}
	return chunks
}

// leaderInt parses the zero-padded ASCII integers MARC leaders and
// directories use.
func leaderInt(b []byte) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("not a MARC length field: %q", string(b))
	}
	return n, nil
}
