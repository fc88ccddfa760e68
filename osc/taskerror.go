package osc

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.armlab.dev/opspace/spatialmath"
)

// taskErrors computes one environment's desired task-space wrench, split into
// its motion and wrench halves so the dynamics stage can weight them
// differently. motion receives the selection-masked impedance response
// kp*err - kd*vel; wrench receives the selection-masked commanded (or
// force-corrected) wrench.
//
// Relative targets are resolved against the live pose passed in, not the pose
// at the time the command was set, so a relative command acts as a fresh nudge
// on every call.
func (r *resolvedConfig) taskErrors(cmdRow []float64, pose spatialmath.Pose, vel, force, kp, kd, motion, wrench []float64) error {
	var posErr, oriErr r3.Vector
	var cmdWrench [numAxes]float64

	for _, seg := range r.segments {
		target := cmdRow[seg.offset : seg.offset+seg.width]
		switch seg.kind {
		case PoseAbsolute:
			posErr, oriErr = spatialmath.PoseError(pose, spatialmath.PoseFromRow(target))
		case PoseRelative:
			posErr, oriErr = spatialmath.PoseError(pose, spatialmath.ApplyDeltaPose(pose, target))
		case PositionAbsolute:
			posErr = r3.Vector{X: target[0], Y: target[1], Z: target[2]}.Sub(pose.Point)
			oriErr = r3.Vector{}
		case PositionRelative:
			posErr = r3.Vector{X: target[0], Y: target[1], Z: target[2]}
			oriErr = r3.Vector{}
		case WrenchAbsolute:
			copy(cmdWrench[:], target)
			if r.closedLoopForce {
				// force error feedback on the linear axes only; torque is not
				// measurable and passes through open-loop
				for i := 0; i < 3; i++ {
					cmdWrench[i] += r.wrenchStiffness[i] * (target[i] - force[i])
				}
			}
		default:
			return errors.Wrapf(ErrUnsupportedCommandType, "%s", seg.kind)
		}
	}

	motionErr := [numAxes]float64{posErr.X, posErr.Y, posErr.Z, oriErr.X, oriErr.Y, oriErr.Z}
	for i := 0; i < numAxes; i++ {
		motion[i] = r.motionMask[i] * (kp[i]*motionErr[i] - kd[i]*vel[i])
		wrench[i] = r.wrenchMask[i] * cmdWrench[i]
	}
	return nil
}
