// Package plate canonicalizes raw recognizer output into the stable key used
// for all ledger lookups, and formats that key for display.
package plate

import (
	"regexp"
	"strings"
)

// confusionSet maps digits commonly mis-read in a plate's letter slot
// (index 2 of the recognized prefix) to the letter they usually stand for.
var confusionSet = map[byte]byte{
	'2': 'Z',
	'0': 'D',
	'5': 'S',
	'8': 'B',
	'1': 'L',
	'4': 'A',
	'6': 'G',
}

// Display shape patterns, checked in order. First match wins; the ordering
// reproduces the legacy formatting and must not be changed.
var (
	reSeriesSub = regexp.MustCompile(`^(\d{2})([A-Z])(\d)(\d{4})$`)
	reOneLetter = regexp.MustCompile(`^(\d{2})([A-Z])(\d{4,5})$`)
	reTwoLetter = regexp.MustCompile(`^(\d{2})([A-Z]{2})(\d{4,5})$`)
)

func stripToAlnum(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Canonicalize uppercases the input, strips everything that is not an ASCII
// letter or digit, then applies a single positional OCR correction: a digit
// in the letter slot (index 2) from the confusion set becomes its letter.
// The result is the exact-match key for the ledger; it may be empty.
func Canonicalize(raw string) string {
	s := stripToAlnum(strings.ToUpper(raw))
	if len(s) < 3 {
		return s
	}
	if letter, ok := confusionSet[s[2]]; ok {
		s = s[:2] + string(letter) + s[3:]
	}
	return s
}

// FormatDisplay renders a canonical key with the single space the legacy
// plates carry. Unknown shapes come back unformatted; the function never
// fails.
func FormatDisplay(canonical string) string {
	s := stripToAlnum(strings.ToUpper(canonical))
	if s == "" {
		return ""
	}
	if m := reSeriesSub.FindStringSubmatch(s); m != nil {
		return m[1] + m[2] + m[3] + " " + m[4]
	}
	if m := reOneLetter.FindStringSubmatch(s); m != nil {
		return m[1] + m[2] + " " + m[3]
	}
	if m := reTwoLetter.FindStringSubmatch(s); m != nil {
		return m[1] + m[2] + " " + m[3]
	}
	return s
}
