// Package z3950 implements the thin slice of a Z39.50 origin this
// harvester needs: connect, type-1 RPN search by ISBN attribute, present
// USMARC records. APDUs are BER with implicit context tagging, which
// encoding/asn1 cannot express, so the TLV layer is implemented here.
package z3950

import (
	"bufio"
	"fmt"
	"io"
)

// BER identifier classes.
const (
	classUniversal  = 0x00
	classContext    = 0x80
	highTagMask     = 0x1f
	constructedBit  = 0x20
	longFormLenBit  = 0x80
	maxLengthOctets = 4
	maxAPDUSize     = 4 << 20
)

// element is one decoded BER TLV. Constructed elements carry children;
// primitives carry content.
type element struct {
	class       byte
	tag         int
	constructed bool
	content     []byte
	children    []element
}

// find returns the first direct child with the given context tag.
func (e element) find(tag int) (element, bool) {
	for _, c := range e.children {
		if c.class == classContext && c.tag == tag {
			return c, true
		}
	}
	return element{}, false
}

// intValue decodes the element content as a BER integer.
func (e element) intValue() int {
	v := 0
	for _, b := range e.content {
		v = v<<8 | int(b)
	}
	if len(e.content) > 0 && e.content[0]&0x80 != 0 {
		v -= 1 << (8 * len(e.content))
	}
	return v
}

func (e element) boolValue() bool {
	return len(e.content) > 0 && e.content[0] != 0
}

// encodeTLV assembles identifier + definite length + content.
func encodeTLV(class byte, tag int, constructed bool, content []byte) []byte {
	var out []byte

	ident := class
	if constructed {
		ident |= constructedBit
	}
	if tag < highTagMask {
		out = append(out, ident|byte(tag))
	} else {
		out = append(out, ident|highTagMask)
		// Long-form tag number, base-128 big-endian with continuation bits.
		var stack []byte
		v := tag
		for v > 0 {
			stack = append(stack, byte(v&0x7f))
			v >>= 7
		}
		for i := len(stack) - 1; i > 0; i-- {
			out = append(out, stack[i]|0x80)
		}
		out = append(out, stack[0])
	}

	out = append(out, encodeLength(len(content))...)
	return append(out, content...)
}

func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var octets []byte
	for v := n; v > 0; v >>= 8 {
		octets = append([]byte{byte(v)}, octets...)
	}
	return append([]byte{longFormLenBit | byte(len(octets))}, octets...)
}

func encodeInt(class byte, tag int, v int) []byte {
	var content []byte
	switch {
	case v == 0:
		content = []byte{0}
	case v > 0:
		for x := v; x > 0; x >>= 8 {
			content = append([]byte{byte(x)}, content...)
		}
		if content[0]&0x80 != 0 {
			content = append([]byte{0}, content...)
		}
	default:
		// Harvest queries never need negative integers.
		content = []byte{byte(v)}
	}
	return encodeTLV(class, tag, false, content)
}

func encodeBool(class byte, tag int, v bool) []byte {
	b := byte(0)
	if v {
		b = 0xff
	}
	return encodeTLV(class, tag, false, []byte{b})
}

func encodeString(class byte, tag int, s string) []byte {
	return encodeTLV(class, tag, false, []byte(s))
}

// encodeBits builds a BITSTRING with the given bit positions set, bit 0
// being the most significant bit of the first content octet.
func encodeBits(class byte, tag int, bits ...int) []byte {
	max := 0
	for _, b := range bits {
		if b > max {
			max = b
		}
	}
	content := make([]byte, 1+max/8+1)
	content[0] = byte(7 - max%8) // unused bits in final octet
	for _, b := range bits {
		content[1+b/8] |= 1 << (7 - b%8)
	}
	return encodeTLV(class, tag, false, content)
}

// encodeOID encodes an OBJECT IDENTIFIER from its arc values.
func encodeOID(arcs []int) []byte {
	content := []byte{byte(arcs[0]*40 + arcs[1])}
	for _, arc := range arcs[2:] {
		var stack []byte
		v := arc
		for {
			stack = append(stack, byte(v&0x7f))
			v >>= 7
			if v == 0 {
				break
			}
		}
		for i := len(stack) - 1; i > 0; i-- {
			content = append(content, stack[i]|0x80)
		}
		content = append(content, stack[0])
	}
	return encodeTLV(classUniversal, 0x06, false, content)
}

// readTLV reads one complete definite-length TLV from the wire.
func readTLV(r *bufio.Reader) ([]byte, error) {
	var header []byte

	first, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	header = append(header, first)

	if first&highTagMask == highTagMask {
		for {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			header = append(header, b)
			if b&0x80 == 0 {
				break
			}
		}
	}

	lenByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	header = append(header, lenByte)

	length := int(lenByte)
	if lenByte&longFormLenBit != 0 {
		n := int(lenByte & 0x7f)
		if n == 0 {
			return nil, fmt.Errorf("indefinite-length BER not supported")
		}
		if n > maxLengthOctets {
			return nil, fmt.Errorf("BER length too large: %d octets", n)
		}
		length = 0
		for i := 0; i < n; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			header = append(header, b)
			length = length<<8 | int(b)
		}
	}
	if length > maxAPDUSize {
		return nil, fmt.Errorf("APDU of %d bytes exceeds limit", length)
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, err
	}
	return append(header, content...), nil
}

// parseElement decodes one TLV and, when constructed, its children.
func parseElement(data []byte) (element, int, error) {
	if len(data) < 2 {
		return element{}, 0, fmt.Errorf("truncated BER element")
	}

	var el element
	el.class = data[0] & 0xc0
	el.constructed = data[0]&constructedBit != 0

	pos := 1
	tag := int(data[0] & highTagMask)
	if tag == highTagMask {
		tag = 0
		for {
			if pos >= len(data) {
				return element{}, 0, fmt.Errorf("truncated BER tag")
			}
			b := data[pos]
			pos++
			tag = tag<<7 | int(b&0x7f)
			if b&0x80 == 0 {
				break
			}
		}
	}
	el.tag = tag

	if pos >= len(data) {
		return element{}, 0, fmt.Errorf("truncated BER length")
	}
	lenByte := data[pos]
	pos++
	length := int(lenByte)
	if lenByte&longFormLenBit != 0 {
		n := int(lenByte & 0x7f)
		if n == 0 {
			return element{}, 0, fmt.Errorf("indefinite-length BER not supported")
		}
		if n > maxLengthOctets || pos+n > len(data) {
			return element{}, 0, fmt.Errorf("bad BER length")
		}
		length = 0
		for i := 0; i < n; i++ {
			length = length<<8 | int(data[pos])
			pos++
		}
	}
	if pos+length > len(data) {
		return element{}, 0, fmt.Errorf("BER element overruns buffer")
	}

	el.content = data[pos : pos+length]
	pos += length

	if el.constructed {
		rest := el.content
		for len(rest) > 0 {
			child, n, err := parseElement(rest)
			if err != nil {
				return element{}, 0, err
			}
			el.children = append(el.children, child)
			rest = rest[n:]
		}
	}

	return el, pos, nil
}
