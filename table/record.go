package table

import (
	"math"
	"strconv"
	"strings"
)

// Frame is the concatenation of several tables, columns matched by name.
type Frame struct {
	Columns []string
	Rows    [][]Cell
}

// Concat unions the columns of all tables in first-seen order and appends
// their rows in table order. Cells for columns a table lacks are empty.
func Concat(tables ...*Table) *Frame {
	fr := &Frame{}
	index := make(map[string]int)
	for _, t := range tables {
		for _, name := range t.Header {
			if _, ok := index[name]; !ok {
				index[name] = len(fr.Columns)
				fr.Columns = append(fr.Columns, name)
			}
		}
	}

	for _, t := range tables {
		for _, row := range t.Rows {
			out := make([]Cell, len(fr.Columns))
			for i, name := range t.Header {
				if i < len(row) {
					out[index[name]] = row[i]
				}
			}
			fr.Rows = append(fr.Rows, out)
		}
	}
	return fr
}

// Record is one normalized row: trimmed column names mapped to text values,
// in column order.
type Record struct {
	keys   []string
	values map[string]string
}

// Get returns the value for a trimmed column name.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r Record) Len() int { return len(r.keys) }

// Pair is a single column/value of a record.
type Pair struct {
	Key   string
	Value string
}

// Pairs returns the record's fields in column order.
func (r Record) Pairs() []Pair {
	out := make([]Pair, len(r.keys))
	for i, k := range r.keys {
		out[i] = Pair{Key: k, Value: r.values[k]}
	}
	return out
}

func (r *Record) set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// NewRecord builds a record from pairs. Later duplicates overwrite earlier
// values but keep the first position.
func NewRecord(pairs ...Pair) Record {
	var r Record
	for _, p := range pairs {
		r.set(p.Key, p.Value)
	}
	return r
}

// Options controls record normalization.
type Options struct {
	// DimensionFields hold inch values to be rewritten in centimeters.
	DimensionFields []string
}

// Normalize turns every frame row into a record. No row is dropped.
func Normalize(fr *Frame, opts Options) []Record {
	records := make([]Record, 0, len(fr.Rows))
	for _, row := range fr.Rows {
		var rec Record
		for i, col := range fr.Columns {
			var c Cell
			if i < len(row) {
				c = row[i]
			}
			rec.set(strings.TrimSpace(col), FormatCell(c))
		}
		for _, field := range opts.DimensionFields {
			v, _ := rec.Get(field)
			rec.set(field, ConvertInches(v))
		}
		records = append(records, rec)
	}
	return records
}

// FormatCell renders a cell as text. Missing values are empty, integral
// numbers have no fractional part and text is trimmed.
func FormatCell(c Cell) string {
	switch c.Kind {
	case KindNumber:
		return formatNumber(c.Number)
	case KindBool:
		if c.Bool {
			return "True"
		}
		return "False"
	case KindText:
		return strings.TrimSpace(c.Text)
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == 0:
		return "0"
	case f == math.Trunc(f):
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	if abs := math.Abs(f); abs < 1e-4 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

const cmPerInch = 2.54

// ConvertInches converts an inch value to centimeters rounded to one
// decimal place. Anything that is not a finite number becomes "".
func ConvertInches(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	// 'f' formatting rounds the exact binary value, ties to even.
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f*cmPerInch, 'f', 1, 64), 64)
	if err != nil {
		return ""
	}
	return formatNumber(rounded)
}
