// Package matrix provides the small dense matrix/vector helpers used by the
// fit engine. Decompositions are delegated to gonum.
package matrix

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// rcond is the relative singular-value cutoff of InverseSVD.
const rcond = 1e-12

type Matrix struct {
	Rows   int
	Cols   int
	Values [][]float64
}

type Vector struct {
	Length int
	Values []float64
}

func NewMatrix(rows, cols int) *Matrix {
	m := &Matrix{Rows: rows, Cols: cols, Values: make([][]float64, rows)}
	for i := range m.Values {
		m.Values[i] = make([]float64, cols)
	}
	return m
}

func NewVector(n int) *Vector {
	return &Vector{Length: n, Values: make([]float64, n)}
}

func NewVectorWithValue(n int, v float64) *Vector {
	vec := NewVector(n)
	for i := range vec.Values {
		vec.Values[i] = v
	}
	return vec
}

// NewVectorFrom wraps a copy of values.
func NewVectorFrom(values []float64) *Vector {
	vec := NewVector(len(values))
	copy(vec.Values, values)
	return vec
}

func (m *Matrix) SetRow(i int, v *Vector) {
	copy(m.Values[i], v.Values)
}

func (m *Matrix) GetRow(i int) *Vector {
	return NewVectorFrom(m.Values[i])
}

func (m *Matrix) SetCol(j int, v *Vector) {
	for i := 0; i < m.Rows && i < v.Length; i++ {
		m.Values[i][j] = v.Values[i]
	}
}

// Sub returns m - o, or nil when the shapes differ.
func (m *Matrix) Sub(o *Matrix) *Matrix {
	if o == nil || m.Rows != o.Rows || m.Cols != o.Cols {
		return nil
	}
	out := NewMatrix(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Values[i][j] = m.Values[i][j] - o.Values[i][j]
		}
	}
	return out
}

// MulVector returns m·v, or nil when the shapes differ.
func (m *Matrix) MulVector(v *Vector) *Vector {
	if v == nil || m.Cols != v.Length {
		return nil
	}
	out := NewVector(m.Rows)
	for i := 0; i < m.Rows; i++ {
		sum := 0.0
		for j := 0; j < m.Cols; j++ {
			sum += m.Values[i][j] * v.Values[j]
		}
		out.Values[i] = sum
	}
	return out
}

// Rank is the number of singular values above the InverseSVD cutoff.
func (m *Matrix) Rank() int {
	var svd mat.SVD
	if !svd.Factorize(m.dense(), mat.SVDThin) {
		return 0
	}
	vals := svd.Values(nil)
	if len(vals) == 0 {
		return 0
	}
	rank := 0
	for _, s := range vals {
		if s > rcond*vals[0] {
			rank++
		}
	}
	return rank
}

// InverseSVD returns the Moore-Penrose pseudo-inverse of m, or nil if the
// decomposition fails. Singular values below rcond*max are treated as zero.
func (m *Matrix) InverseSVD() *Matrix {
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	var svd mat.SVD
	if !svd.Factorize(m.dense(), mat.SVDThin) {
		return nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	k := len(vals)
	sinv := mat.NewDiagDense(k, nil)
	for i, s := range vals {
		if s > rcond*vals[0] {
			sinv.SetDiag(i, 1/s)
		}
	}

	var vs, pinv mat.Dense
	vs.Mul(&v, sinv)
	pinv.Mul(&vs, u.T())
	return fromDense(&pinv)
}

func (m *Matrix) String() string {
	var b strings.Builder
	for _, row := range m.Values {
		for j, x := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", x)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m *Matrix) dense() *mat.Dense {
	d := mat.NewDense(m.Rows, m.Cols, nil)
	for i, row := range m.Values {
		d.SetRow(i, row)
	}
	return d
}

func fromDense(d *mat.Dense) *Matrix {
	r, c := d.Dims()
	out := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		mat.Row(out.Values[i], i, d)
	}
	return out
}
