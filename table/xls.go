package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shakinm/xlsReader/xls"
)

// XLSReader reads legacy BIFF workbooks.
type XLSReader struct{}

func (p *XLSReader) SupportedFormats() []string { return []string{"xls"} }

func (p *XLSReader) Read(ctx context.Context, name string, r io.Reader) (t *Table, err error) {
	// xlsReader panics on some malformed records.
	defer func() {
		if rec := recover(); rec != nil {
			t = nil
			err = fmt.Errorf("parsing XLS: %v", rec)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading XLS: %w", err)
	}

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening XLS: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return nil, fmt.Errorf("no sheets in XLS")
	}

	sheet, err := wb.GetSheet(0)
	if err != nil {
		return nil, fmt.Errorf("opening first sheet: %w", err)
	}

	var raw [][]Cell
	for ri := 0; ri < sheet.GetNumberRows(); ri++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := sheet.GetRow(ri)
		if err != nil || row == nil {
			raw = append(raw, nil)
			continue
		}
		cols := row.GetCols()
		cells := make([]Cell, len(cols))
		for ci, c := range cols {
			cells[ci] = xlsCell(c.GetType(), c.GetString(), c.GetFloat64())
		}
		raw = append(raw, cells)
	}

	return buildTable(name, raw), nil
}

// xlsCell types a BIFF cell by its record type: Number, Rk and MulRk
// records hold numbers, BoolErr records hold booleans or error codes and
// everything else is read as text. Error codes are missing values.
func xlsCell(recordType, text string, number float64) Cell {
	switch {
	case strings.Contains(recordType, "Number"), strings.HasSuffix(recordType, "Rk"):
		return NumberCell(number)
	case strings.Contains(recordType, "BoolErr"):
		switch text {
		case "TRUE":
			return Cell{Kind: KindBool, Bool: true}
		case "FALSE":
			return Cell{Kind: KindBool}
		}
		return Cell{}
	}
	return TextCell(text)
}
