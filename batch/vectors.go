// Package batch provides structure-of-arrays numeric buffers for math that is
// replicated over many parallel environment instances. Each field lives in one
// contiguous allocation indexed by environment, which keeps per-step work
// cache-friendly and view-based rather than copy-based.
package batch

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Vectors is a batch of fixed-width float vectors, one row per environment,
// backed by a single dense matrix.
type Vectors struct {
	dense *mat.Dense
	n     int
	width int
}

// NewVectors allocates a zeroed n-by-width batch.
func NewVectors(n, width int) *Vectors {
	return &Vectors{dense: mat.NewDense(n, width, nil), n: n, width: width}
}

// VectorsFrom wraps an existing dense matrix as a batch without copying.
func VectorsFrom(m *mat.Dense) *Vectors {
	r, c := m.Dims()
	return &Vectors{dense: m, n: r, width: c}
}

// N returns the number of environments in the batch.
func (v *Vectors) N() int { return v.n }

// Width returns the per-environment vector width.
func (v *Vectors) Width() int { return v.width }

// Row returns a mutable view of environment i's vector. The slice aliases the
// backing storage.
func (v *Vectors) Row(i int) []float64 {
	return v.dense.RawRowView(i)
}

// Dense returns the backing matrix.
func (v *Vectors) Dense() *mat.Dense { return v.dense }

// Zero clears every row.
func (v *Vectors) Zero() {
	v.dense.Zero()
}

// ZeroRows clears only the given environment rows.
func (v *Vectors) ZeroRows(ids []int) error {
	for _, id := range ids {
		if id < 0 || id >= v.n {
			return errors.Errorf("environment index %d out of range [0, %d)", id, v.n)
		}
	}
	for _, id := range ids {
		row := v.dense.RawRowView(id)
		for j := range row {
			row[j] = 0
		}
	}
	return nil
}

// CopyFrom copies src into the batch. Dimensions must match exactly.
func (v *Vectors) CopyFrom(src mat.Matrix) error {
	r, c := src.Dims()
	if r != v.n || c != v.width {
		return errors.Errorf("expected a %dx%d matrix, got %dx%d", v.n, v.width, r, c)
	}
	v.dense.Copy(src)
	return nil
}
