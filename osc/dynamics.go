package osc

import (
	stderrors "errors"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// tikhonovDamping regularizes the operational-space inertia inverse so
// near-singular Jacobians produce bounded torques instead of blowing up.
const tikhonovDamping = 1e-6

// dynScratch holds the joint-count-sized temporaries for the dynamics stage,
// reused across environments and steps.
type dynScratch struct {
	nJoints   int
	motion    *mat.VecDense // 6
	wrench    *mat.VecDense // 6
	weighted  *mat.VecDense // 6
	tauMotion *mat.VecDense // nJoints
	tauWrench *mat.VecDense // nJoints
	jointTmp  *mat.VecDense // nJoints
	massInv   *mat.Dense    // nJoints x nJoints
	jMassInv  *mat.Dense    // 6 x nJoints
	lambdaInv *mat.Dense    // 6 x 6
}

func newDynScratch(nJoints int) *dynScratch {
	return &dynScratch{
		nJoints:   nJoints,
		motion:    mat.NewVecDense(numAxes, nil),
		wrench:    mat.NewVecDense(numAxes, nil),
		weighted:  mat.NewVecDense(numAxes, nil),
		tauMotion: mat.NewVecDense(nJoints, nil),
		tauWrench: mat.NewVecDense(nJoints, nil),
		jointTmp:  mat.NewVecDense(nJoints, nil),
		massInv:   mat.NewDense(nJoints, nJoints, nil),
		jMassInv:  mat.NewDense(numAxes, nJoints, nil),
		lambdaInv: mat.NewDense(numAxes, numAxes, nil),
	}
}

// jointEfforts maps one environment's desired task-space motion and wrench
// terms to joint torques through the Jacobian, applying the configured
// compensation scheme:
//
//   - no inertial compensation: tau_m = J^T * m (unit task-space inertia)
//   - inertial, coupled: tau_m = M * J^T * m
//   - inertial, decoupled: tau_m = J^T * Lambda * m, with Lambda the damped
//     inverse of J * M^-1 * J^T
//
// The wrench half always bypasses the inertia weighting: it is a desired
// end-effector force, applied directly as J^T * w.
func (r *resolvedConfig) jointEfforts(s *dynScratch, jacobian, massMatrix *mat.Dense, gravity, motion, wrench, out []float64) error {
	copy(s.motion.RawVector().Data, motion)
	copy(s.wrench.RawVector().Data, wrench)

	s.tauWrench.MulVec(jacobian.T(), s.wrench)

	switch {
	case r.inertial && r.uncouple:
		if err := s.massInv.Inverse(massMatrix); err != nil && !acceptableCondition(err) {
			return errors.Wrap(ErrSingularConfiguration, "mass matrix inversion failed")
		}
		s.jMassInv.Mul(jacobian, s.massInv)
		s.lambdaInv.Mul(s.jMassInv, jacobian.T())
		if mat.Norm(s.lambdaInv, 1) == 0 {
			return errors.Wrap(ErrSingularConfiguration, "operational-space inertia is identically zero")
		}
		for i := 0; i < numAxes; i++ {
			s.lambdaInv.Set(i, i, s.lambdaInv.At(i, i)+tikhonovDamping)
		}
		if err := s.weighted.SolveVec(s.lambdaInv, s.motion); err != nil && !acceptableCondition(err) {
			return errors.Wrap(ErrSingularConfiguration, "operational-space inertia solve failed")
		}
		s.tauMotion.MulVec(jacobian.T(), s.weighted)
	case r.inertial:
		s.jointTmp.MulVec(jacobian.T(), s.motion)
		s.tauMotion.MulVec(massMatrix, s.jointTmp)
	default:
		s.tauMotion.MulVec(jacobian.T(), s.motion)
	}

	for i := 0; i < s.nJoints; i++ {
		v := s.tauMotion.AtVec(i) + s.tauWrench.AtVec(i)
		if r.gravityComp {
			v += gravity[i]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrSingularConfiguration, "non-finite torque on joint %d", i)
		}
		out[i] = v
	}
	return nil
}

// acceptableCondition reports whether a gonum numeric error is only an
// ill-conditioning warning whose result is still usable. The Tikhonov term and
// the final finiteness check decide whether the row actually fails.
func acceptableCondition(err error) bool {
	var cond mat.Condition
	return stderrors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}
