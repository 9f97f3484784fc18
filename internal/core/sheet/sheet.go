// Package sheet turns the value grid of one spreadsheet tab into ordered rows
package sheet

import (
	"strconv"
	"strings"

	"inquirysync/internal/core/headermap"
	"inquirysync/internal/core/normalize"
	perr "inquirysync/internal/platform/errors"
)

// Cell is one header/value pair of a row
type Cell struct {
	Header string
	Value  string
}

// RawRow is an ordered header -> value mapping. Values are trimmed and
// missing value sentinels are already empty.
type RawRow struct {
	cells []Cell
}

// NewRow pairs headers with values; missing values are empty and extra values are dropped
func NewRow(headers, values []string) RawRow {
	r := RawRow{cells: make([]Cell, len(headers))}
	for i, h := range headers {
		v := ""
		if i < len(values) {
			v = normalize.Cell(values[i])
		}
		r.cells[i] = Cell{Header: h, Value: v}
	}
	return r
}

// Row builds a RawRow from alternating header, value strings
func Row(kv ...string) RawRow {
	r := RawRow{}
	for i := 0; i+1 < len(kv); i += 2 {
		r.cells = append(r.cells, Cell{Header: kv[i], Value: normalize.Cell(kv[i+1])})
	}
	return r
}

// Len is the number of cells
func (r RawRow) Len() int { return len(r.cells) }

// At returns cell i
func (r RawRow) At(i int) Cell {
	if i < 0 || i >= len(r.cells) {
		return Cell{}
	}
	return r.cells[i]
}

// Get returns the first value under header
func (r RawRow) Get(header string) (string, bool) {
	for _, c := range r.cells {
		if c.Header == header {
			return c.Value, true
		}
	}
	return "", false
}

// Headers returns the headers in column order
func (r RawRow) Headers() []string {
	out := make([]string, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.Header
	}
	return out
}

// Blank reports whether every cell is empty
func (r RawRow) Blank() bool {
	for _, c := range r.cells {
		if c.Value != "" {
			return false
		}
	}
	return true
}

// Sheet is one shaped tab
type Sheet struct {
	Name      string
	Headers   []string
	HeaderRow int // zero based row the headers were read from
	Rows      []RawRow
}

// Shape finds the header row (the first row, else the second for sheets that
// carry a title row), pads blank headers as Column_<n> and drops blank rows.
// A sheet with neither row shaped like a header is an ErrorCodeShape error.
func Shape(name string, values [][]string) (Sheet, error) {
	if len(values) == 0 {
		return Sheet{Name: name}, nil
	}
	for i := 0; i < headerRows && i < len(values); i++ {
		if LooksLikeHeader(values[i]) {
			return build(name, values, i), nil
		}
	}
	return Sheet{Name: name}, perr.WithField(
		perr.Shapef("sheet %q: no header row with name and phone columns in %q", name, preview(values[0])),
		name,
	)
}

// Candidates shapes values at every row Shape would consider as the header,
// without checking the headers. Callers with a better header mapping than
// the static table pick one.
func Candidates(name string, values [][]string) []Sheet {
	var out []Sheet
	for i := 0; i < headerRows && i < len(values); i++ {
		out = append(out, build(name, values, i))
	}
	return out
}

const headerRows = 2

func build(name string, values [][]string, at int) Sheet {
	headers := padHeaders(values[at])
	s := Sheet{Name: name, Headers: headers, HeaderRow: at}
	for _, vals := range values[at+1:] {
		r := NewRow(headers, vals)
		if r.Blank() {
			continue
		}
		s.Rows = append(s.Rows, r)
	}
	return s
}

// LooksLikeHeader reports whether row has a name column and a phone column
func LooksLikeHeader(row []string) bool {
	var name, phone bool
	for _, h := range row {
		switch f, _ := headermap.Static(h); f {
		case headermap.Name:
			name = true
		case headermap.Phone:
			phone = true
		}
	}
	return name && phone
}

func padHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column_" + strconv.Itoa(i+1)
		}
		out[i] = h
	}
	return out
}

func preview(row []string) string {
	const max = 6
	if len(row) > max {
		row = row[:max]
	}
	return strings.Join(row, ", ")
}
