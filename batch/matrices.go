package batch

import (
	"gonum.org/v1/gonum/mat"
)

// Matrices is a batch of r-by-c matrices, one per environment, stored in one
// contiguous backing slice with dense views constructed up front.
type Matrices struct {
	data  []float64
	views []*mat.Dense
	n     int
	r, c  int
}

// NewMatrices allocates a zeroed batch of n matrices of size r-by-c.
func NewMatrices(n, r, c int) *Matrices {
	data := make([]float64, n*r*c)
	views := make([]*mat.Dense, n)
	for i := range views {
		views[i] = mat.NewDense(r, c, data[i*r*c:(i+1)*r*c])
	}
	return &Matrices{data: data, views: views, n: n, r: r, c: c}
}

// N returns the number of environments in the batch.
func (m *Matrices) N() int { return m.n }

// Dims returns the per-environment matrix dimensions.
func (m *Matrices) Dims() (int, int) { return m.r, m.c }

// Env returns a mutable view of environment i's matrix. The view aliases the
// backing storage.
func (m *Matrices) Env(i int) *mat.Dense {
	return m.views[i]
}

// Zero clears every matrix in the batch.
func (m *Matrices) Zero() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// SetAll copies src into every environment's matrix.
func (m *Matrices) SetAll(src mat.Matrix) {
	for i := 0; i < m.n; i++ {
		m.views[i].Copy(src)
	}
}
