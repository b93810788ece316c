package table

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

type XLSXReader struct{}

func (p *XLSXReader) SupportedFormats() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSXReader) Read(ctx context.Context, name string, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in XLSX")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	raw := make([][]Cell, len(rows))
	for ri, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells := make([]Cell, len(row))
		for ci, value := range row {
			axis, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", axis, err)
			}
			cells[ci] = xlsxCell(typ, value)
		}
		raw[ri] = cells
	}

	return buildTable(name, raw), nil
}

// xlsxCell types a raw cell value. Numeric cells carry no type attribute
// in the sheet XML, so an unset type with a numeric value is a number.
// Error cells such as #N/A are missing values.
func xlsxCell(typ excelize.CellType, value string) Cell {
	if value == "" {
		return Cell{}
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return NumberCell(f)
		}
	case excelize.CellTypeBool:
		return Cell{Kind: KindBool, Bool: value == "1" || value == "TRUE" || value == "true"}
	case excelize.CellTypeError:
		return Cell{}
	}
	return TextCell(value)
}
