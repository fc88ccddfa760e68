package batch

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestVectorsRowAliasing(t *testing.T) {
	v := NewVectors(3, 4)
	test.That(t, v.N(), test.ShouldEqual, 3)
	test.That(t, v.Width(), test.ShouldEqual, 4)

	row := v.Row(1)
	row[2] = 7.5
	test.That(t, v.Dense().At(1, 2), test.ShouldEqual, 7.5)
	test.That(t, v.Dense().At(0, 2), test.ShouldEqual, 0)
}

func TestVectorsZeroRows(t *testing.T) {
	v := NewVectors(4, 2)
	for i := 0; i < 4; i++ {
		v.Row(i)[0] = float64(i + 1)
	}
	err := v.ZeroRows([]int{2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Row(0)[0], test.ShouldEqual, 1)
	test.That(t, v.Row(1)[0], test.ShouldEqual, 2)
	test.That(t, v.Row(2)[0], test.ShouldEqual, 0)
	test.That(t, v.Row(3)[0], test.ShouldEqual, 4)

	// out-of-range ids are rejected before any row is touched
	err = v.ZeroRows([]int{1, 9})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, v.Row(1)[0], test.ShouldEqual, 2)
}

func TestVectorsCopyFrom(t *testing.T) {
	v := NewVectors(2, 3)
	src := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	test.That(t, v.CopyFrom(src), test.ShouldBeNil)
	test.That(t, v.Row(1), test.ShouldResemble, []float64{4, 5, 6})

	bad := mat.NewDense(2, 2, nil)
	test.That(t, v.CopyFrom(bad), test.ShouldNotBeNil)
}

func TestMatricesEnvViews(t *testing.T) {
	m := NewMatrices(2, 2, 3)
	r, c := m.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 3)

	m.Env(1).Set(1, 2, 9)
	test.That(t, m.Env(1).At(1, 2), test.ShouldEqual, 9)
	test.That(t, m.Env(0).At(1, 2), test.ShouldEqual, 0)

	m.SetAll(mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}))
	test.That(t, m.Env(0).At(0, 0), test.ShouldEqual, 1)
	test.That(t, m.Env(1).At(1, 1), test.ShouldEqual, 1)

	m.Zero()
	test.That(t, mat.Norm(m.Env(1), 1), test.ShouldEqual, 0)
}
