// Package wtf8 converts between UTF-16 code units and Go strings without
// losing unpaired surrogates.
//
// Windows resource strings are arbitrary sequences of 16-bit units. Valid
// UTF-16 maps to ordinary UTF-8; an unpaired surrogate is kept as its
// three-byte generalized UTF-8 form (ED A0..BF 80..BF), so decoding and
// re-encoding any unit sequence is exact.
package wtf8

import (
	"unicode/utf16"
	"unicode/utf8"
)

const (
	surrMin = 0xD800
	lowMin  = 0xDC00
	surrEnd = 0xE000
)

// Decode returns the string for units.
func Decode(units []uint16) string {
	b := make([]byte, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u < surrMin || u >= surrEnd:
			b = utf8.AppendRune(b, rune(u))
		case u < lowMin && i+1 < len(units) && units[i+1] >= lowMin && units[i+1] < surrEnd:
			b = utf8.AppendRune(b, utf16.DecodeRune(rune(u), rune(units[i+1])))
			i++
		default:
			b = append(b, 0xED, 0x80|byte(u>>6)&0x3F, 0x80|byte(u)&0x3F)
		}
	}
	return string(b)
}

// decodeRune returns the first rune of s and its width. Encoded surrogates
// come back as their surrogate value; other invalid bytes as U+FFFD.
func decodeRune(s string) (rune, int) {
	if len(s) >= 3 && s[0] == 0xED && s[1] >= 0xA0 && s[1] <= 0xBF && s[2]&0xC0 == 0x80 {
		return 0xD000 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), 3
	}
	return utf8.DecodeRuneInString(s)
}

// Units iterates the UTF-16 code units of a string.
type Units struct {
	s   string
	low uint16
}

// NewUnits returns an iterator over the units of s.
func NewUnits(s string) Units { return Units{s: s} }

// Next returns the next unit, or false at the end.
func (it *Units) Next() (uint16, bool) {
	if it.low != 0 {
		u := it.low
		it.low = 0
		return u, true
	}
	if it.s == "" {
		return 0, false
	}
	r, size := decodeRune(it.s)
	it.s = it.s[size:]
	if r >= 0x10000 {
		hi, lo := utf16.EncodeRune(r)
		it.low = uint16(lo) //nolint:gosec // low surrogate fits
		return uint16(hi), true //nolint:gosec // high surrogate fits
	}
	return uint16(r), true //nolint:gosec // BMP rune
}

// Append appends the units of s to dst.
func Append(dst []uint16, s string) []uint16 {
	it := NewUnits(s)
	for u, ok := it.Next(); ok; u, ok = it.Next() {
		dst = append(dst, u)
	}
	return dst
}

// Len returns the number of units in s.
func Len(s string) int {
	n := 0
	it := NewUnits(s)
	for _, ok := it.Next(); ok; _, ok = it.Next() {
		n++
	}
	return n
}

// Compare orders a and b by their UTF-16 code units.
func Compare(a, b string) int {
	ia, ib := NewUnits(a), NewUnits(b)
	for {
		ua, oka := ia.Next()
		ub, okb := ib.Next()
		switch {
		case !oka && !okb:
			return 0
		case !oka:
			return -1
		case !okb:
			return 1
		case ua != ub:
			if ua < ub {
				return -1
			}
			return 1
		}
	}
}
