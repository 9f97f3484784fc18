// Package normalize folds spreadsheet text into stable, comparable forms.
//
// Header pipeline
// 1 drop invalid UTF-8 and control characters (tab and newline survive as whitespace)
// 2 Unicode NFKC
// 3 strip format characters (zero width joiners, BOM)
// 4 width fold fullwidth forms to ASCII
// 5 collapse whitespace runs to one space and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// fresh transformer chains; a chain is stateful and must be Reset before reuse
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

var folder = sync.Pool{New: func() any { return cases.Fold() }}

// sentinels are the placeholder strings exports and dataframes write for missing cells
var sentinels = map[string]struct{}{"nan": {}, "NaN": {}, "None": {}, "NaT": {}, "null": {}}

// Header returns the display form of a header used for exact table lookups
func Header(s string) string {
	return collapse(fold(s))
}

// fold runs the header pipeline up to whitespace collapsing
func fold(s string) string {
	if s == "" {
		return ""
	}
	s = sanitize(s)
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// Key is Header plus Unicode case folding, for case insensitive comparisons
func Key(s string) string {
	h := Header(s)
	if h == "" {
		return ""
	}
	c := folder.Get().(cases.Caser)
	out := c.String(h)
	folder.Put(c)
	return out
}

// Slug is the last resort canonical name of an unmapped header: lowercase,
// parentheses removed and one underscore per inner whitespace rune
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(fold(s)))
	return strings.Map(func(r rune) rune {
		switch {
		case r == '(' || r == ')':
			return -1
		case unicode.IsSpace(r):
			return '_'
		}
		return r
	}, s)
}

// Cell trims a cell value and maps missing value sentinels to empty
func Cell(s string) string {
	s = strings.TrimSpace(sanitize(s))
	if _, ok := sentinels[s]; ok {
		return ""
	}
	return s
}

// Blank reports whether a cell carries no data
func Blank(s string) bool { return Cell(s) == "" }

// Digits keeps only ASCII and fullwidth decimal digits, folded to ASCII
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		}
	}
	return b.String()
}

// sanitize drops invalid bytes and control runes; whitespace controls become spaces
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
