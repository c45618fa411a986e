package nn

import (
	"errors"
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ErrShape is returned when matrix dimensions do not line up
var ErrShape = errors.New("shape mismatch")

// Matrix is a dense row-major matrix. Rows index batch entries.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// FromRows copies a slice of equally sized rows into a matrix
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), cols)
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

// At returns the element at row i, column j
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Set stores v at row i, column j
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[i*m.Cols+j] = v
}

// Row returns a view of row i; writes go through to the matrix
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Clone returns a deep copy
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// Fill sets every element to v
func (m *Matrix) Fill(v float64) {
	for i := range m.Data {
		m.Data[i] = v
	}
}

// Tensor copies the matrix into a rows x cols tensor
func (m *Matrix) Tensor() *tensor.Dense {
	return dense(m.Rows, m.Cols, m.Data)
}

func dense(rows, cols int, data []float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(rows, cols),
		tensor.WithBacking(append([]float64(nil), data...)),
	)
}

// Input places m on g as a named constant-valued matrix node. Names must be
// unique within a graph.
func Input(g *gorgonia.ExprGraph, name string, m *Matrix) *gorgonia.Node {
	return gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(m.Rows, m.Cols),
		gorgonia.WithName(name),
		gorgonia.WithValue(m.Tensor()),
	)
}

// Output copies the computed value of a matrix node
func Output(n *gorgonia.Node) (*Matrix, error) {
	shape := n.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: node %s has shape %v, want a matrix", ErrShape, n.Name(), shape)
	}
	data, err := values(n)
	if err != nil {
		return nil, err
	}
	out := NewMatrix(shape[0], shape[1])
	if len(data) != len(out.Data) {
		return nil, fmt.Errorf("%w: node %s holds %d values, want %d", ErrShape, n.Name(), len(data), len(out.Data))
	}
	copy(out.Data, data)
	return out, nil
}

// Scalar reads the computed value of a scalar node
func Scalar(n *gorgonia.Node) (float64, error) {
	v := n.Value()
	if v == nil {
		return 0, fmt.Errorf("node %s has not been evaluated", n.Name())
	}
	switch x := v.Data().(type) {
	case float64:
		return x, nil
	case []float64:
		if len(x) == 1 {
			return x[0], nil
		}
		return 0, fmt.Errorf("%w: node %s holds %d values, want 1", ErrShape, n.Name(), len(x))
	default:
		return 0, fmt.Errorf("node %s holds %T, want float64", n.Name(), x)
	}
}

func values(n *gorgonia.Node) ([]float64, error) {
	v := n.Value()
	if v == nil {
		return nil, fmt.Errorf("node %s has not been evaluated", n.Name())
	}
	data, ok := v.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("node %s holds %T, want []float64", n.Name(), v.Data())
	}
	return data, nil
}
