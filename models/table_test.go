package models

import (
	"reflect"
	"testing"
)

func TestNewTableRejectsUnorderedIndex(t *testing.T) {
	_, err := NewTable([]int64{0, 2, 2}, nil, map[string][]float64{"a": {1, 2, 3}}, nil)
	if err == nil {
		t.Fatalf("expected error for repeated index")
	}
}

func TestNewTableRejectsMisalignedColumn(t *testing.T) {
	_, err := NewTable([]int64{0, 1}, nil, map[string][]float64{"a": {1}}, nil)
	if err == nil {
		t.Fatalf("expected error for short column")
	}
}

func TestTableColumnNormalized(t *testing.T) {
	tbl, err := NewTable([]int64{0, 1}, nil, map[string][]float64{"Acceleration-X": {1, 2}}, []string{"Acceleration-X"})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if _, ok := tbl.Column("acceleration_x"); !ok {
		t.Fatalf("column not found by normalized name")
	}
	if got := tbl.Columns(); !reflect.DeepEqual(got, []string{"acceleration_x"}) {
		t.Fatalf("Columns() = %v", got)
	}
}

func TestDecimatePreservesIndex(t *testing.T) {
	idx := []int64{0, 1, 2, 3, 4, 5, 6}
	tbl, err := NewTable(idx, nil, map[string][]float64{"a": {10, 11, 12, 13, 14, 15, 16}}, []string{"a"})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	d := tbl.Decimate(3)
	if !reflect.DeepEqual(d.Index(), []int64{0, 3, 6}) {
		t.Fatalf("index = %v", d.Index())
	}
	col, _ := d.Column("a")
	if !reflect.DeepEqual(col, []float64{10, 13, 16}) {
		t.Fatalf("column = %v", col)
	}
	if tbl.Decimate(1) != tbl {
		t.Fatalf("Decimate(1) should return the same table")
	}
}

func TestWithColumn(t *testing.T) {
	tbl, _ := NewTable([]int64{0, 1}, nil, map[string][]float64{"a": {1, 2}}, []string{"a"})
	out, err := tbl.WithColumn("a_g", []float64{-1, 1})
	if err != nil {
		t.Fatalf("WithColumn: %v", err)
	}
	if _, ok := tbl.Column("a_g"); ok {
		t.Fatalf("original table modified")
	}
	if got := out.Columns(); !reflect.DeepEqual(got, []string{"a", "a_g"}) {
		t.Fatalf("Columns() = %v", got)
	}
}
