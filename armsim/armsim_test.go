package armsim

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.armlab.dev/opspace/spatialmath"
)

func testArm(t *testing.T, numEnvs int) *SerialArm {
	t.Helper()
	arm, err := NewSerialArm(SerialArmConfig{
		NumEnvs:      numEnvs,
		LinkLengths:  []float64{0.4, 0.35, 0.3, 0.1, 0.1, 0.08},
		LinkMasses:   []float64{3, 2.5, 2, 0.8, 0.8, 0.5},
		Armature:     0.05,
		JointDamping: 1.0,
		GravityAccel: 9.81,
		HomePosition: []float64{0.3, -0.6, 0.9, 0.2, -0.4, 0.1},
	})
	test.That(t, err, test.ShouldBeNil)
	return arm
}

func TestSerialArmConfigValidation(t *testing.T) {
	_, err := NewSerialArm(SerialArmConfig{NumEnvs: 0})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSerialArm(SerialArmConfig{NumEnvs: 1, LinkLengths: []float64{1}, LinkMasses: []float64{1, 2}})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSerialArm(SerialArmConfig{NumEnvs: 1, LinkLengths: []float64{-1}, LinkMasses: []float64{1}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSerialArmJacobianMatchesFiniteDifference(t *testing.T) {
	arm := testArm(t, 1)
	q := append([]float64(nil), arm.q.Row(0)...)
	jac := arm.jac.Env(0)

	const h = 1e-6
	for j := 0; j < arm.NumJoints(); j++ {
		qp := append([]float64(nil), q...)
		qm := append([]float64(nil), q...)
		qp[j] += h
		qm[j] -= h
		plus := arm.forwardKinematics(qp)
		minus := arm.forwardKinematics(qm)

		// linear part against the position difference
		d := plus.ee.Point.Sub(minus.ee.Point).Mul(1 / (2 * h))
		test.That(t, jac.At(0, j), test.ShouldAlmostEqual, d.X, 1e-4)
		test.That(t, jac.At(1, j), test.ShouldAlmostEqual, d.Y, 1e-4)
		test.That(t, jac.At(2, j), test.ShouldAlmostEqual, d.Z, 1e-4)

		// angular part against the orientation difference
		aa := spatialmath.OrientationError(minus.ee.Quat, plus.ee.Quat).Mul(1 / (2 * h))
		test.That(t, jac.At(3, j), test.ShouldAlmostEqual, aa.X, 1e-4)
		test.That(t, jac.At(4, j), test.ShouldAlmostEqual, aa.Y, 1e-4)
		test.That(t, jac.At(5, j), test.ShouldAlmostEqual, aa.Z, 1e-4)
	}
}

func TestSerialArmMassMatrixSymmetricPositiveDefinite(t *testing.T) {
	arm := testArm(t, 1)
	m := arm.massMat.Env(0)
	n := arm.NumJoints()

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			test.That(t, m.At(i, j), test.ShouldAlmostEqual, m.At(j, i), 1e-12)
		}
	}

	var chol mat.Cholesky
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.At(i, j))
		}
	}
	test.That(t, chol.Factorize(sym), test.ShouldBeTrue)
}

func TestSerialArmGravityMatchesPotentialGradient(t *testing.T) {
	arm := testArm(t, 1)
	q := append([]float64(nil), arm.q.Row(0)...)
	grav := append([]float64(nil), arm.gravity.Row(0)...)

	potential := func(q []float64) float64 {
		st := arm.forwardKinematics(q)
		u := 0.0
		for k, p := range st.linkEnds {
			u += arm.cfg.LinkMasses[k] * arm.cfg.GravityAccel * p.Z
		}
		return u
	}

	const h = 1e-6
	for j := 0; j < arm.NumJoints(); j++ {
		qp := append([]float64(nil), q...)
		qm := append([]float64(nil), q...)
		qp[j] += h
		qm[j] -= h
		dU := (potential(qp) - potential(qm)) / (2 * h)
		test.That(t, grav[j], test.ShouldAlmostEqual, dU, 1e-4)
	}
}

func TestSerialArmHoldsStillUnderGravityTorques(t *testing.T) {
	arm := testArm(t, 2)
	startPose := append([]float64(nil), arm.pose.Row(0)...)

	// applying exactly the generalized gravity torques should keep the arm at rest
	efforts := mat.NewDense(2, arm.NumJoints(), nil)
	for step := 0; step < 200; step++ {
		for i := 0; i < 2; i++ {
			copy(efforts.RawRowView(i), arm.gravity.Row(i))
		}
		test.That(t, arm.Step(efforts, 0.002), test.ShouldBeNil)
	}
	endPose := arm.pose.Row(0)
	for i := 0; i < 3; i++ {
		test.That(t, endPose[i], test.ShouldAlmostEqual, startPose[i], 1e-3)
	}
}

func TestSerialArmResetIsolation(t *testing.T) {
	arm := testArm(t, 3)
	efforts := mat.NewDense(3, arm.NumJoints(), nil)
	efforts.Set(0, 0, 5)
	efforts.Set(1, 0, 5)
	efforts.Set(2, 0, 5)
	for step := 0; step < 50; step++ {
		test.That(t, arm.Step(efforts, 0.002), test.ShouldBeNil)
	}
	movedQ := append([]float64(nil), arm.q.Row(0)...)
	test.That(t, arm.Reset(1), test.ShouldBeNil)

	test.That(t, arm.q.Row(1)[0], test.ShouldAlmostEqual, arm.home[0])
	test.That(t, arm.qd.Row(1)[0], test.ShouldAlmostEqual, 0)
	// environments 0 and 2 keep their state
	test.That(t, arm.q.Row(0)[0], test.ShouldAlmostEqual, movedQ[0])
	test.That(t, arm.q.Row(2)[0], test.ShouldAlmostEqual, movedQ[0])
}

func TestFloatingBodyFreeFall(t *testing.T) {
	body, err := NewFloatingBody(FloatingBodyConfig{
		NumEnvs:      1,
		Mass:         2,
		GravityAccel: 9.81,
	})
	test.That(t, err, test.ShouldBeNil)

	// no applied effort: the body falls
	efforts := mat.NewDense(1, 6, nil)
	dt := 0.001
	for step := 0; step < 1000; step++ {
		test.That(t, body.Step(efforts, dt), test.ShouldBeNil)
	}
	// z ~= -g t^2 / 2 after one second
	test.That(t, body.EEPose().Row(0)[2], test.ShouldAlmostEqual, -9.81/2, 0.05)

	// compensating with the reported gravity torques holds it
	test.That(t, body.Reset(), test.ShouldBeNil)
	for i := 0; i < 6; i++ {
		efforts.Set(0, i, body.Gravity().Row(0)[i])
	}
	for step := 0; step < 1000; step++ {
		test.That(t, body.Step(efforts, dt), test.ShouldBeNil)
	}
	test.That(t, body.EEPose().Row(0)[2], test.ShouldAlmostEqual, 0, 1e-9)
}

func TestFloatingBodyWallContact(t *testing.T) {
	body, err := NewFloatingBody(FloatingBodyConfig{
		NumEnvs:       1,
		LinearDamping: 25,
		Wall:          &Wall{Axis: 2, Offset: 0, Stiffness: 1000},
	})
	test.That(t, err, test.ShouldBeNil)

	// push steadily against the wall: the measured force settles at the push
	efforts := mat.NewDense(1, 6, nil)
	efforts.Set(0, 2, 10)
	for step := 0; step < 4000; step++ {
		test.That(t, body.Step(efforts, 0.001), test.ShouldBeNil)
	}
	test.That(t, body.ContactForce().Row(0)[2], test.ShouldAlmostEqual, 10, 0.1)
}

func TestFloatingBodyRotationIntegration(t *testing.T) {
	body, err := NewFloatingBody(FloatingBodyConfig{NumEnvs: 1})
	test.That(t, err, test.ShouldBeNil)

	// constant torque about z then verify the accumulated rotation is about z
	efforts := mat.NewDense(1, 6, nil)
	efforts.Set(0, 5, 0.5)
	for step := 0; step < 100; step++ {
		test.That(t, body.Step(efforts, 0.01), test.ShouldBeNil)
	}
	pose := spatialmath.PoseFromRow(body.EEPose().Row(0))
	aa := spatialmath.QuatToAxisAngle(pose.Quat)
	test.That(t, aa.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, aa.Y, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, aa.Z, test.ShouldBeGreaterThan, 0)
	test.That(t, math.IsNaN(aa.Z), test.ShouldBeFalse)
}
