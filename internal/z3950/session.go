package z3950

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"
)

// APDU context tags used by the origin side of the protocol.
const (
	apduInitRequest     = 20
	apduInitResponse    = 21
	apduSearchRequest   = 22
	apduSearchResponse  = 23
	apduPresentRequest  = 24
	apduPresentResponse = 25
)

const (
	defaultTimeout       = 15 * time.Second
	preferredMessageSize = 1 << 20
	exceptionalRecSize   = 4 << 20
	resultSetName        = "default"
)

// bib-1 attribute set and USMARC record syntax identifiers.
var (
	oidBib1   = []int{1, 2, 840, 10003, 3, 1}
	oidUSMARC = []int{1, 2, 840, 10003, 5, 10}
)

// Options configures a connection to one Z39.50 server.
type Options struct {
	Host     string
	Port     int
	Database string
	Timeout  time.Duration
}

// Session is an initialized Z39.50 association. It is not safe for
// concurrent use; the harvester opens one session per lookup.
type Session struct {
	conn    net.Conn
	rd      *bufio.Reader
	opts    Options
	timeout time.Duration
}

// Dial connects and runs the init handshake. Callers must Close the
// returned session.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", opts.Host, opts.Port))
	if err != nil {
		return nil, fmt.Errorf("z3950 dial %s:%d: %w", opts.Host, opts.Port, err)
	}

	s := &Session{
		conn:    conn,
		rd:      bufio.NewReader(conn),
		opts:    opts,
		timeout: timeout,
	}
	if err := s.init(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close tears down the association.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) init(ctx context.Context) error {
	var body []byte
	body = append(body, encodeBits(classContext, 3, 0, 1, 2)...) // protocol versions 1-3
	body = append(body, encodeBits(classContext, 4, 0, 1)...)    // options: search, present
	body = append(body, encodeInt(classContext, 5, preferredMessageSize)...)
	body = append(body, encodeInt(classContext, 6, exceptionalRecSize)...)
	body = append(body, encodeString(classContext, 110, "lccn-harvester")...)
	body = append(body, encodeString(classContext, 111, "lccn-harvester")...)

	resp, err := s.roundTrip(ctx, encodeTLV(classContext, apduInitRequest, true, body))
	if err != nil {
		return err
	}
	if resp.tag != apduInitResponse {
		return fmt.Errorf("z3950 init: unexpected APDU tag %d", resp.tag)
	}
	result, ok := resp.find(12)
	if !ok || !result.boolValue() {
		return fmt.Errorf("z3950 init: server %s rejected association", s.opts.Host)
	}
	return nil
}

// Search runs a type-1 RPN search and returns the result count.
func (s *Session) Search(ctx context.Context, q Query) (int, error) {
	var body []byte
	body = append(body, encodeInt(classContext, 13, 0)...)     // smallSetUpperBound
	body = append(body, encodeInt(classContext, 14, 1)...)     // largeSetLowerBound
	body = append(body, encodeInt(classContext, 15, 0)...)     // mediumSetPresentNumber
	body = append(body, encodeBool(classContext, 16, true)...) // replaceIndicator
	body = append(body, encodeString(classContext, 17, resultSetName)...)

	dbName := encodeString(classContext, 105, s.opts.Database)
	body = append(body, encodeTLV(classContext, 18, true, dbName)...)

	body = append(body, encodeTLV(classContext, 21, true, encodeRPNQuery(q))...)

	resp, err := s.roundTrip(ctx, encodeTLV(classContext, apduSearchRequest, true, body))
	if err != nil {
		return 0, err
	}
	if resp.tag != apduSearchResponse {
		return 0, fmt.Errorf("z3950 search: unexpected APDU tag %d", resp.tag)
	}
	if status, ok := resp.find(22); ok && !status.boolValue() {
		return 0, fmt.Errorf("z3950 search failed on %s", s.opts.Host)
	}
	count, ok := resp.find(23)
	if !ok {
		return 0, fmt.Errorf("z3950 search: response missing result count")
	}
	return count.intValue(), nil
}

// Present fetches count records starting at position start (1-based) as
// raw USMARC octet strings.
func (s *Session) Present(ctx context.Context, start, count int) ([][]byte, error) {
	var body []byte
	body = append(body, encodeString(classContext, 31, resultSetName)...)
	body = append(body, encodeInt(classContext, 30, start)...)
	body = append(body, encodeInt(classContext, 29, count)...)
	body = append(body, encodeTLV(classContext, 104, false, oidContent(oidUSMARC))...)

	resp, err := s.roundTrip(ctx, encodeTLV(classContext, apduPresentRequest, true, body))
	if err != nil {
		return nil, err
	}
	if resp.tag != apduPresentResponse {
		return nil, fmt.Errorf("z3950 present: unexpected APDU tag %d", resp.tag)
	}

	var records [][]byte
	collectMARC(resp, &records)
	return records, nil
}

// SearchISBN is the harvest path: search by ISBN use attribute and
// present up to max matching records.
func (s *Session) SearchISBN(ctx context.Context, isbn string, max int) ([][]byte, error) {
	hits, err := s.Search(ctx, ISBNQuery(isbn))
	if err != nil {
		return nil, err
	}
	if hits == 0 {
		return nil, nil
	}
	if hits > max {
		hits = max
	}
	return s.Present(ctx, 1, hits)
}

// encodeRPNQuery builds the type-1 [1] RPNQuery for a single-term query.
func encodeRPNQuery(q Query) []byte {
	var attrs []byte
	for _, a := range q.Attributes {
		var el []byte
		el = append(el, encodeInt(classContext, 120, a.Type)...)
		el = append(el, encodeInt(classContext, 121, a.Value)...)
		attrs = append(attrs, encodeTLV(classUniversal, 0x10, true, el)...)
	}

	var apt []byte
	apt = append(apt, encodeTLV(classContext, 44, true, attrs)...)
	apt = append(apt, encodeString(classContext, 45, q.Term)...) // Term.general

	attrPlusTerm := encodeTLV(classContext, 102, true, apt)
	operand := encodeTLV(classContext, 0, true, attrPlusTerm) // RPNStructure op, explicit

	var rpn []byte
	rpn = append(rpn, encodeOID(oidBib1)...)
	rpn = append(rpn, operand...)
	return encodeTLV(classContext, 1, true, rpn) // Query type-1
}

// oidContent returns the raw OID content octets without the universal
// OBJECT IDENTIFIER header, for fields tagged IMPLICIT.
func oidContent(arcs []int) []byte {
	full := encodeOID(arcs)
	// Strip tag and short-form length; OIDs here are always short.
	return full[2:]
}

// collectMARC walks the response tree collecting primitive octet strings
// that look like ISO 2709 records. This sidesteps the EXTERNAL wrapping
// variations across server implementations.
func collectMARC(el element, out *[][]byte) {
	if !el.constructed {
		if looksLikeMARC(el.content) {
			*out = append(*out, el.content)
		}
		return
	}
	for _, c := range el.children {
		collectMARC(c, out)
	}
}

func looksLikeMARC(b []byte) bool {
	if len(b) < 24 {
		return false
	}
	for _, c := range b[:5] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return b[len(b)-1] == 0x1d
}

// roundTrip writes one APDU and reads the next one off the wire, with
// the session timeout (or a nearer ctx deadline) applied to both legs.
func (s *Session) roundTrip(ctx context.Context, apdu []byte) (element, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return element{}, err
	}

	if err := ctx.Err(); err != nil {
		return element{}, err
	}
	if _, err := s.conn.Write(apdu); err != nil {
		return element{}, fmt.Errorf("z3950 write: %w", err)
	}

	raw, err := readTLV(s.rd)
	if err != nil {
		return element{}, fmt.Errorf("z3950 read: %w", err)
	}
	el, _, err := parseElement(raw)
	if err != nil {
		return element{}, fmt.Errorf("z3950 decode: %w", err)
	}
	return el, nil
}
