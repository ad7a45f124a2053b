// Package callnum grammar-checks Library of Congress and National Library
// of Medicine shelf call numbers and derives classification prefixes.
//
// ValidateLCCN covers classification call numbers ("QA76.73.P38 ..."), not
// LC control numbers ("2001-123") — the two share an acronym but nothing
// else, and every caller here feeds shelf-classification candidates.
package callnum

import (
	"strings"
	"unicode"
)

// lcClassLetters are the letters usable in LC class prefixes; I and O are
// not assigned in the LC schedule.
const lcClassLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// nlmClasses is the fixed set of NLM classification prefixes.
var nlmClasses = map[string]bool{
	"QS": true, "QT": true, "QU": true, "QV": true, "QW": true,
	"W": true, "WA": true, "WB": true, "WC": true, "WD": true,
	"WE": true, "WF": true, "WG": true, "WH": true, "WI": true,
	"WJ": true, "WK": true, "WL": true, "WM": true, "WN": true,
	"WO": true, "WP": true, "WQ": true, "WR": true, "WS": true,
	"WT": true, "WU": true, "WV": true, "WW": true, "WX": true,
	"WY": true, "WZ": true,
}

// ValidateNLMCN reports whether s parses as an NLM call number: a class
// prefix from the NLM schedule, a class number, then optional cutter and
// year tokens.
func ValidateNLMCN(s string) bool {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 2 {
		// NLM always has class letters plus a number.
		return false
	}

	if !nlmClasses[parts[0]] {
		return false
	}

	if !validNLMClassNumber(parts[1]) {
		return false
	}

	for _, part := range parts[2:] {
		if !validCutter(part, true) && !validYear(part) {
			return false
		}
	}

	return true
}

// validNLMClassNumber accepts 1-3 leading digits optionally followed by a
// dot and an alphanumeric remainder ("120", "120.5", "26.5").
func validNLMClassNumber(s string) bool {
	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits < 1 || digits > 3 {
		return false
	}
	if digits == len(s) {
		return true
	}
	if s[digits] != '.' || digits == len(s)-1 {
		return false
	}
	return isAlnum(s[digits+1:])
}

// ValidateLCCN reports whether s parses as an LC classification call
// number: 1-3 class letters fused with a numeric class (at most one
// decimal point), optionally followed by fused cutters ("QA76.73.P38")
// and spaced cutter or year tokens.
func ValidateLCCN(s string) bool {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 1 {
		return false
	}

	head := parts[0]
	i := 0
	for i < len(head) && isLetterByte(head[i]) {
		i++
	}
	letters := head[:i]

	j := i
	for j < len(head) && (isDigitByte(head[j]) || head[j] == '.') {
		j++
	}
	number := head[i:j]
	rest := head[j:]

	if rest != "" {
		// The dot separating class number from cutter belongs to the
		// cutter: "QA76.73.P38" splits as "76.73" + ".P38".
		if strings.HasSuffix(number, ".") {
			number = strings.TrimSuffix(number, ".")
			rest = "." + rest
		}
		if !validFusedCutters(rest) {
			return false
		}
	}

	return checkLCHead(letters, number) && validTail(parts[1:])
}

func isLetterByte(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

func validTail(parts []string) bool {
	for _, part := range parts {
		if !validCutter(part, false) && !validYear(part) {
			return false
		}
	}
	return true
}

func checkLCHead(letters, number string) bool {
	if len(letters) < 1 || len(letters) > 3 {
		return false
	}
	for _, ch := range letters {
		if !strings.ContainsRune(lcClassLetters, unicode.ToUpper(ch)) {
			return false
		}
	}

	if number == "" || strings.Count(number, ".") > 1 {
		return false
	}
	trimmed := strings.Trim(number, ".")
	if trimmed == "" {
		return false
	}
	for _, ch := range trimmed {
		if !unicode.IsDigit(ch) && ch != '.' {
			return false
		}
	}
	return true
}

// validFusedCutters accepts the ".P38" or ".P38C65" tail fused onto an LC
// class token.
func validFusedCutters(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			continue
		}
		if !unicode.IsLetter(rune(seg[0])) || !isAlnum(seg[1:]) {
			return false
		}
	}
	return strings.HasPrefix(s, ".")
}

// validCutter accepts standalone cutter tokens: a dot, a letter, then
// digits (LC) or alphanumerics (NLM).
func validCutter(s string, alnumTail bool) bool {
	if len(s) < 3 || s[0] != '.' {
		return false
	}
	if !unicode.IsLetter(rune(s[1])) {
		return false
	}
	tail := s[2:]
	if alnumTail {
		return isAlnum(tail)
	}
	return isDigits(tail)
}

func validYear(s string) bool {
	return len(s) == 4 && isDigits(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// ClassificationFromLCCN derives the leading 1-3 class letters of an LC
// call number. It is a display convenience, not a validity check.
func ClassificationFromLCCN(lccn string) string {
	trimmed := strings.TrimSpace(lccn)
	var letters []rune
	for _, ch := range trimmed {
		if !unicode.IsLetter(ch) {
			break
		}
		letters = append(letters, unicode.ToUpper(ch))
		if len(letters) == 3 {
			break
		}
	}
	return string(letters)
}
