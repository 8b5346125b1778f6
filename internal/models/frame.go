package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Frame is a rectangular query result. Frames returned by the warehouse are
// shared through the query cache and must be treated as read-only; the
// transforming helpers below always return a new Frame.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: columns, Rows: [][]any{}}
}

// Append adds one row. Missing trailing values are stored as nil.
func (f *Frame) Append(values ...any) *Frame {
	row := make([]any, len(f.Columns))
	copy(row, values)
	f.Rows = append(f.Rows, row)
	return f
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

func (f *Frame) Empty() bool {
	return f.Len() == 0
}

// Index returns the position of col, matched case-insensitively, or -1.
func (f *Frame) Index(col string) int {
	if f == nil {
		return -1
	}
	for i, c := range f.Columns {
		if strings.EqualFold(c, col) {
			return i
		}
	}
	return -1
}

func (f *Frame) Value(row int, col string) any {
	i := f.Index(col)
	if i < 0 || row < 0 || row >= f.Len() || i >= len(f.Rows[row]) {
		return nil
	}
	return deref(f.Rows[row][i])
}

func (f *Frame) String(row int, col string) string {
	return ToString(f.Value(row, col))
}

func (f *Frame) Float(row int, col string) float64 {
	v, _ := ToFloat(f.Value(row, col))
	return v
}

func (f *Frame) Int(row int, col string) int64 {
	v, _ := ToFloat(f.Value(row, col))
	return int64(v)
}

func (f *Frame) Time(row int, col string) time.Time {
	switch v := f.Value(row, col).(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Floats returns a numeric column. Nulls and unparsable values are skipped.
func (f *Frame) Floats(col string) []float64 {
	out := make([]float64, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		if v, ok := ToFloat(f.Value(r, col)); ok {
			out = append(out, v)
		}
	}
	return out
}

// Pairs returns the values of two numeric columns row by row, leaving out
// rows where either value is null or unparsable.
func (f *Frame) Pairs(x, y string) (xs, ys []float64) {
	xs = make([]float64, 0, f.Len())
	ys = make([]float64, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		xv, okX := ToFloat(f.Value(r, x))
		yv, okY := ToFloat(f.Value(r, y))
		if okX && okY {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	return xs, ys
}

func (f *Frame) Strings(col string) []string {
	out := make([]string, 0, f.Len())
	for r := 0; r < f.Len(); r++ {
		out = append(out, f.String(r, col))
	}
	return out
}

// SortBy orders rows by col, numerically when both values are numeric.
// The sort is stable so ties keep warehouse order.
func (f *Frame) SortBy(col string, desc bool) *Frame {
	out := &Frame{Columns: f.columns(), Rows: make([][]any, f.Len())}
	if f != nil {
		copy(out.Rows, f.Rows)
	}
	i := out.Index(col)
	if i < 0 {
		return out
	}
	sort.SliceStable(out.Rows, func(a, b int) bool {
		x, y := deref(out.Rows[a][i]), deref(out.Rows[b][i])
		if desc {
			return lessValue(y, x)
		}
		return lessValue(x, y)
	})
	return out
}

func (f *Frame) columns() []string {
	if f == nil {
		return nil
	}
	return f.Columns
}

func lessValue(a, b any) bool {
	af, aok := ToFloat(a)
	bf, bok := ToFloat(b)
	if aok && bok {
		return af < bf
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}
	return ToString(a) < ToString(b)
}

// ToFloat converts driver values to float64. The bool result is false for
// nil and non-numeric values.
func ToFloat(v any) (float64, bool) {
	switch n := deref(v).(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func ToString(v any) string {
	switch s := deref(v).(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	default:
		return fmt.Sprint(s)
	}
}

// deref unwraps the pointer types produced by scanning Nullable columns.
func deref(v any) any {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *float32:
		if p == nil {
			return nil
		}
		return *p
	case *int64:
		if p == nil {
			return nil
		}
		return *p
	case *int32:
		if p == nil {
			return nil
		}
		return *p
	case *uint32:
		if p == nil {
			return nil
		}
		return *p
	case *uint64:
		if p == nil {
			return nil
		}
		return *p
	case *bool:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	}
	return v
}
