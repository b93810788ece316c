package table

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// CellKind is the value type of a cell as stored in the source file.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
	KindBool
)

// Cell is a single spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string  // KindText
	Number float64 // KindNumber
	Bool   bool    // KindBool
}

// TextCell returns a text cell, or an empty cell for "".
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: KindText, Text: s}
}

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell { return Cell{Kind: KindNumber, Number: f} }

// Table is one sheet: a header row and the data rows beneath it.
// Every row has exactly len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]Cell
}

// Reader reads the first sheet of a tabular file.
type Reader interface {
	Read(ctx context.Context, name string, r io.Reader) (*Table, error)
	SupportedFormats() []string
}

// Registry maps a lower-case file extension (without dot) to a Reader.
type Registry struct {
	readers map[string]Reader
}

func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	for _, rd := range []Reader{&XLSXReader{}, &XLSReader{}, &CSVReader{}} {
		for _, f := range rd.SupportedFormats() {
			r.readers[f] = rd
		}
	}
	return r
}

func (r *Registry) Get(format string) (Reader, error) {
	rd, ok := r.readers[format]
	if !ok {
		return nil, fmt.Errorf("no reader for format: %q", format)
	}
	return rd, nil
}

// ForFile returns the reader for a filename's extension.
func (r *Registry) ForFile(name string) (Reader, error) {
	return r.Get(FormatOf(name))
}

func (r *Registry) Register(format string, rd Reader) {
	r.readers[format] = rd
}

// FormatOf returns the lower-case extension of name without the dot.
func FormatOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// buildTable turns raw rows into a Table: the first non-empty row is the
// header and every row is padded to the header width. Blank rows between
// data rows are kept as empty records; trailing blank rows are trimmed.
// Missing-value markers in data rows become empty cells.
func buildTable(name string, raw [][]Cell) *Table {
	t := &Table{Name: name}

	start := -1
	for i, row := range raw {
		if !emptyRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return t
	}

	width := 0
	for _, row := range raw[start:] {
		if len(row) > width {
			width = len(row)
		}
	}

	headerCells := raw[start]
	header := make([]string, width)
	for i := range header {
		if i < len(headerCells) {
			header[i] = headerText(headerCells[i])
		}
	}
	t.Header = headerNames(header)

	end := len(raw)
	for end > start+1 && emptyRow(raw[end-1]) {
		end--
	}
	for _, row := range raw[start+1 : end] {
		padded := make([]Cell, width)
		for i, c := range row {
			if c.Kind == KindText && naValues[c.Text] {
				c = Cell{}
			}
			padded[i] = c
		}
		t.Rows = append(t.Rows, padded)
	}
	return t
}

// naValues are the text markers read as missing values in data rows.
var naValues = map[string]bool{
	"#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true, "-1.#QNAN": true,
	"-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// headerText keeps surrounding whitespace: columns are matched by their
// raw names and only trimmed when records are built.
func headerText(c Cell) string {
	if c.Kind == KindText {
		if strings.TrimSpace(c.Text) == "" {
			return ""
		}
		return c.Text
	}
	return FormatCell(c)
}

func emptyRow(row []Cell) bool {
	for _, c := range row {
		if c.Kind != KindEmpty {
			return false
		}
	}
	return true
}

// headerNames fills blank names with "Unnamed: <index>" and suffixes
// repeated names with ".1", ".2", ... in order of appearance.
func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	counts := make(map[string]int, len(raw))
	for i, name := range raw {
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		for n := counts[name]; n > 0; n = counts[name] {
			counts[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		}
		counts[name]++
		out[i] = name
	}
	return out
}
