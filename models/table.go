package models

import (
	"fmt"
	"time"
)

// Table is a row-indexed set of channel columns sharing one sample index.
// Column names are stored normalized.
type Table struct {
	index   []int64
	times   []time.Time
	columns map[string][]float64
	order   []string
}

// NewTable validates that index is strictly increasing and that every column
// (and times, when given) is aligned with it. order fixes the column order;
// columns missing from order are appended in map order.
func NewTable(index []int64, times []time.Time, columns map[string][]float64, order []string) (*Table, error) {
	for i := 1; i < len(index); i++ {
		if index[i] <= index[i-1] {
			return nil, fmt.Errorf("index not strictly increasing at row %d (%d after %d)", i, index[i], index[i-1])
		}
	}
	if times != nil && len(times) != len(index) {
		return nil, fmt.Errorf("times has %d rows, index has %d", len(times), len(index))
	}
	t := &Table{
		index:   index,
		times:   times,
		columns: make(map[string][]float64, len(columns)),
	}
	add := func(name string, col []float64) error {
		key := NormalizeParameter(name)
		if _, dup := t.columns[key]; dup {
			return nil
		}
		if len(col) != len(index) {
			return fmt.Errorf("column %s has %d rows, index has %d", key, len(col), len(index))
		}
		t.columns[key] = col
		t.order = append(t.order, key)
		return nil
	}
	for _, name := range order {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("column %s listed in order but missing", name)
		}
		if err := add(name, col); err != nil {
			return nil, err
		}
	}
	for name, col := range columns {
		if err := add(name, col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) Index() []int64     { return t.index }
func (t *Table) Times() []time.Time { return t.times }
func (t *Table) Len() int           { return len(t.index) }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.order...)
}

func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.columns[NormalizeParameter(name)]
	return c, ok
}

// WithColumn returns a copy of t sharing its rows with one column added or
// replaced.
func (t *Table) WithColumn(name string, values []float64) (*Table, error) {
	key := NormalizeParameter(name)
	if len(values) != len(t.index) {
		return nil, fmt.Errorf("column %s has %d rows, index has %d", key, len(values), len(t.index))
	}
	out := &Table{
		index:   t.index,
		times:   t.times,
		columns: make(map[string][]float64, len(t.columns)+1),
		order:   append([]string(nil), t.order...),
	}
	for k, v := range t.columns {
		out.columns[k] = v
	}
	if _, ok := out.columns[key]; !ok {
		out.order = append(out.order, key)
	}
	out.columns[key] = values
	return out, nil
}

// Decimate keeps every n-th row, starting with the first. Index values are
// preserved, so calibration bounds stay valid across sampling factors.
func (t *Table) Decimate(every int) *Table {
	if every <= 1 {
		return t
	}
	n := (len(t.index) + every - 1) / every
	out := &Table{
		index:   make([]int64, 0, n),
		columns: make(map[string][]float64, len(t.columns)),
		order:   append([]string(nil), t.order...),
	}
	if t.times != nil {
		out.times = make([]time.Time, 0, n)
	}
	for i := 0; i < len(t.index); i += every {
		out.index = append(out.index, t.index[i])
		if t.times != nil {
			out.times = append(out.times, t.times[i])
		}
	}
	for k, col := range t.columns {
		dst := make([]float64, 0, n)
		for i := 0; i < len(col); i += every {
			dst = append(dst, col[i])
		}
		out.columns[k] = dst
	}
	return out
}
