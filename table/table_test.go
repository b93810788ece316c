package table

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInReaders(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format string
	}{
		{"xlsx"},
		{"xlsm"},
		{"xls"},
		{"csv"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			rd, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			found := false
			for _, f := range rd.SupportedFormats() {
				if f == tt.format {
					found = true
				}
			}
			if !found {
				t.Errorf("reader for %q does not list it in SupportedFormats(): %v", tt.format, rd.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"data.json", "data.ods", "data", "notes.txt"} {
		if _, err := reg.ForFile(name); err == nil {
			t.Errorf("ForFile(%q) expected error", name)
		}
	}
}

func TestFormatOf(t *testing.T) {
	tests := map[string]string{
		"a.xlsx":        "xlsx",
		"A.XLSX":        "xlsx",
		"dir/b.tar.xls": "xls",
		"noext":         "",
	}
	for in, want := range tests {
		if got := FormatOf(in); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Cell formatting
// ---------------------------------------------------------------------------

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"empty", Cell{}, ""},
		{"integral float", NumberCell(12345.0), "12345"},
		{"negative integral", NumberCell(-3), "-3"},
		{"fraction", NumberCell(12.5), "12.5"},
		{"small fraction", NumberCell(0.00001), "1e-05"},
		{"zero", NumberCell(0), "0"},
		{"text trimmed", TextCell("  Lamp  "), "Lamp"},
		{"text numeric stays text", TextCell("00123"), "00123"},
		{"bool true", Cell{Kind: KindBool, Bool: true}, "True"},
		{"bool false", Cell{Kind: KindBool}, "False"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCell(tt.cell); got != tt.want {
				t.Errorf("FormatCell(%+v) = %q, want %q", tt.cell, got, tt.want)
			}
		})
	}
}

func TestConvertInches(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10", "25.4"},
		{"abc", ""},
		{"", ""},
		{"   ", ""},
		{"50", "127"},
		{"0", "0"},
		{" 2 ", "5.1"},
		{"12.5", "31.8"},
		{"NaN", ""},
		{"inf", ""},
		{"-1", "-2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ConvertInches(tt.in); got != tt.want {
				t.Errorf("ConvertInches(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{"ITEM#", "", "Price", "Price", "Price", "Price.1"})
	want := []string{"ITEM#", "Unnamed: 1", "Price", "Price.1", "Price.2", "Price.1.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("headerNames mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTableKeepsInteriorBlankRows(t *testing.T) {
	raw := [][]Cell{
		nil,
		{TextCell("ITEM#"), TextCell("Note")},
		{NumberCell(1), TextCell("a")},
		{},
		{Cell{}, Cell{}},
		{NumberCell(2), TextCell("NULL")},
		{TextCell("#N/A"), TextCell("NA")},
		{},
		{Cell{}},
	}
	tbl := buildTable("t", raw)

	if diff := cmp.Diff([]string{"ITEM#", "Note"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	want := [][]Cell{
		{NumberCell(1), TextCell("a")},
		{{}, {}},
		{{}, {}},
		{NumberCell(2), {}},
		{{}, {}},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTableHeaderOnly(t *testing.T) {
	tbl := buildTable("t", [][]Cell{{TextCell("NA")}, {}, {}})
	if diff := cmp.Diff([]string{"NA"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(tbl.Rows))
	}
}

// ---------------------------------------------------------------------------
// Concat / Normalize
// ---------------------------------------------------------------------------

func TestConcatMatchesColumnsByName(t *testing.T) {
	a := &Table{
		Header: []string{"ITEM#", "Item Description"},
		Rows: [][]Cell{
			{NumberCell(1), TextCell("one")},
			{NumberCell(2), TextCell("two")},
		},
	}
	b := &Table{
		Header: []string{"Retail AUD", "ITEM#"},
		Rows: [][]Cell{
			{NumberCell(9.5), NumberCell(3)},
		},
	}

	fr := Concat(a, b)

	if diff := cmp.Diff([]string{"ITEM#", "Item Description", "Retail AUD"}, fr.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if len(fr.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(fr.Rows))
	}
	last := fr.Rows[2]
	if last[0].Number != 3 || last[1].Kind != KindEmpty || last[2].Number != 9.5 {
		t.Errorf("third row = %+v", last)
	}
}

func TestNormalize(t *testing.T) {
	fr := &Frame{
		Columns: []string{" ITEM# ", "Item Width (inch)", "Item Description", "FOB NB"},
		Rows: [][]Cell{
			{NumberCell(12345), TextCell("10"), TextCell(" Lamp "), NumberCell(4.25)},
			{TextCell("A-7"), TextCell("abc"), Cell{}, Cell{}},
		},
	}
	recs := Normalize(fr, Options{DimensionFields: []string{"Item Width (inch)", "Item Height (inch)"}})
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}

	wantFirst := []Pair{
		{"ITEM#", "12345"},
		{"Item Width (inch)", "25.4"},
		{"Item Description", "Lamp"},
		{"FOB NB", "4.25"},
		{"Item Height (inch)", ""},
	}
	if diff := cmp.Diff(wantFirst, recs[0].Pairs()); diff != "" {
		t.Errorf("first record mismatch (-want +got):\n%s", diff)
	}

	if v, _ := recs[1].Get("Item Width (inch)"); v != "" {
		t.Errorf("unparseable width = %q, want empty", v)
	}
	if v, _ := recs[1].Get("ITEM#"); v != "A-7" {
		t.Errorf("ITEM# = %q, want A-7", v)
	}
}

func TestNewRecordKeepsFirstPosition(t *testing.T) {
	r := NewRecord(Pair{"A", "1"}, Pair{"B", "2"}, Pair{"A", "3"})
	if diff := cmp.Diff([]string{"A", "B"}, r.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := r.Get("A"); v != "3" {
		t.Errorf("A = %q, want 3", v)
	}
}

// ---------------------------------------------------------------------------
// Readers
// ---------------------------------------------------------------------------

func writeXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow(sheet, axis, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("writing xlsx: %v", err)
	}
	return buf.Bytes()
}

func TestXLSXReader(t *testing.T) {
	data := writeXLSX(t, [][]interface{}{
		{"ITEM#", " Item Description ", "Retail AUD", "Active"},
		{12345.0, "Desk lamp", 19.99, true},
		{nil, nil, nil, nil},
		{"00042", "Chair", 40, false},
	})

	tbl, err := (&XLSXReader{}).Read(context.Background(), "a.xlsx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if diff := cmp.Diff([]string{"ITEM#", " Item Description ", "Retail AUD", "Active"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d, want 3 (interior blank row kept)", len(tbl.Rows))
	}

	recs := Normalize(Concat(tbl), Options{})
	want := [][]Pair{
		{{"ITEM#", "12345"}, {"Item Description", "Desk lamp"}, {"Retail AUD", "19.99"}, {"Active", "True"}},
		{{"ITEM#", ""}, {"Item Description", ""}, {"Retail AUD", ""}, {"Active", ""}},
		{{"ITEM#", "00042"}, {"Item Description", "Chair"}, {"Retail AUD", "40"}, {"Active", "False"}},
	}
	if len(recs) != len(want) {
		t.Fatalf("records = %d, want %d", len(recs), len(want))
	}
	for i, rec := range recs {
		if diff := cmp.Diff(want[i], rec.Pairs()); diff != "" {
			t.Errorf("record %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestXLSXCell(t *testing.T) {
	tests := []struct {
		name  string
		typ   excelize.CellType
		value string
		want  Cell
	}{
		{"number", excelize.CellTypeUnset, "12345", NumberCell(12345)},
		{"typed number", excelize.CellTypeNumber, "2.5", NumberCell(2.5)},
		{"numeric text", excelize.CellTypeSharedString, "00042", TextCell("00042")},
		{"bool", excelize.CellTypeBool, "1", Cell{Kind: KindBool, Bool: true}},
		{"error", excelize.CellTypeError, "#N/A", Cell{}},
		{"empty", excelize.CellTypeUnset, "", Cell{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, xlsxCell(tt.typ, tt.value)); diff != "" {
				t.Errorf("xlsxCell mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestXLSXReaderInvalid(t *testing.T) {
	_, err := (&XLSXReader{}).Read(context.Background(), "bad.xlsx", strings.NewReader("not a zip"))
	if err == nil {
		t.Fatal("expected error for invalid XLSX")
	}
}

func TestXLSCell(t *testing.T) {
	tests := []struct {
		name       string
		recordType string
		text       string
		number     float64
		want       Cell
	}{
		{"number", "*record.Number", "10.5", 10.5, NumberCell(10.5)},
		{"rk", "*record.Rk", "12345", 12345, NumberCell(12345)},
		{"true", "*record.BoolErr", "TRUE", 1, Cell{Kind: KindBool, Bool: true}},
		{"false", "*record.BoolErr", "FALSE", 0, Cell{Kind: KindBool}},
		{"error", "*record.BoolErr", "#N/A", 42, Cell{}},
		{"label", "*record.LabelBIFF8", "Desk lamp", 0, TextCell("Desk lamp")},
		{"shared label", "*record.LabelSSt", "Chair", 0, TextCell("Chair")},
		{"blank", "*record.Blank", "", 0, Cell{}},
		{"fake blank", "*record.FakeBlank", "", 0, Cell{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, xlsCell(tt.recordType, tt.text, tt.number)); diff != "" {
				t.Errorf("xlsCell mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// testdata/products.xls holds one sheet: a blank first row, a header on the
// second row, two products around a blank row, and a trailing blank cell.
func TestXLSReader(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "products.xls"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tbl, err := (&XLSReader{}).Read(context.Background(), "products.xls", f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]string{"ITEM#", " Item Description ", "Item Width (inch)", "Active"}, tbl.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	recs := Normalize(Concat(tbl), Options{DimensionFields: []string{"Item Width (inch)"}})
	want := [][]Pair{
		{{"ITEM#", "12345"}, {"Item Description", "Desk lamp"}, {"Item Width (inch)", "26.7"}, {"Active", "True"}},
		{{"ITEM#", ""}, {"Item Description", ""}, {"Item Width (inch)", ""}, {"Active", ""}},
		{{"ITEM#", "999"}, {"Item Description", "Chair"}, {"Item Width (inch)", "50.8"}, {"Active", ""}},
	}
	if len(recs) != len(want) {
		t.Fatalf("records = %d, want %d", len(recs), len(want))
	}
	for i, rec := range recs {
		if diff := cmp.Diff(want[i], rec.Pairs()); diff != "" {
			t.Errorf("record %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestXLSReaderInvalid(t *testing.T) {
	_, err := (&XLSReader{}).Read(context.Background(), "bad.xls", strings.NewReader("not a workbook"))
	if err == nil {
		t.Fatal("expected error for invalid XLS")
	}
}

func TestCSVReader(t *testing.T) {
	in := "\ufeffITEM#,Item Width (inch),Note\n12345,10,hello\n,,\n777,x,\n"
	tbl, err := (&CSVReader{}).Read(context.Background(), "a.csv", strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Header[0] != "ITEM#" {
		t.Errorf("header[0] = %q, BOM not stripped", tbl.Header[0])
	}
	recs := Normalize(Concat(tbl), Options{DimensionFields: []string{"Item Width (inch)"}})
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if v, _ := recs[0].Get("Item Width (inch)"); v != "25.4" {
		t.Errorf("width = %q, want 25.4", v)
	}
	if v, _ := recs[1].Get("ITEM#"); v != "" {
		t.Errorf("blank row item = %q, want empty", v)
	}
	if v, _ := recs[2].Get("Note"); v != "" {
		t.Errorf("missing note = %q, want empty", v)
	}
}

func TestRowCountAcrossFiles(t *testing.T) {
	first := writeXLSX(t, [][]interface{}{
		{"ITEM#", "Item Description"},
		{1, "a"},
		{2, "b"},
	})
	second := writeXLSX(t, [][]interface{}{
		{"Item Description", "ITEM#"},
		{"c", 3},
	})

	reg := NewRegistry()
	var tables []*Table
	for _, data := range [][]byte{first, second} {
		rd, err := reg.ForFile("x.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		tbl, err := rd.Read(context.Background(), "x.xlsx", bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		tables = append(tables, tbl)
	}

	recs := Normalize(Concat(tables...), Options{})
	var items []string
	for _, r := range recs {
		v, _ := r.Get("ITEM#")
		items = append(items, v)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, items); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
