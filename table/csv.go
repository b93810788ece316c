package table

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVReader reads comma separated files. Values that parse as numbers are
// typed as numbers, matching how spreadsheet cells are read.
type CSVReader struct{}

func (p *CSVReader) SupportedFormats() []string { return []string{"csv"} }

func (p *CSVReader) Read(ctx context.Context, name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var raw [][]Cell
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing CSV: %w", err)
		}
		cells := make([]Cell, len(rec))
		for i, v := range rec {
			cells[i] = csvCell(v)
		}
		raw = append(raw, cells)
	}
	// A UTF-8 BOM from spreadsheet exports would otherwise stick to the
	// first header name.
	if len(raw) > 0 && len(raw[0]) > 0 && raw[0][0].Kind == KindText {
		raw[0][0].Text = strings.TrimPrefix(raw[0][0].Text, "\ufeff")
	}
	return buildTable(name, raw), nil
}

func csvCell(v string) Cell {
	if strings.TrimSpace(v) == "" {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return NumberCell(f)
	}
	return TextCell(v)
}
