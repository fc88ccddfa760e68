package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// PoseLen is the flat width of a pose row: position followed by a scalar-first
// quaternion.
const PoseLen = 7

// Pose is a position and orientation pair.
type Pose struct {
	Point r3.Vector
	Quat  quat.Number
}

// NewZeroPose returns a pose at the origin with identity orientation.
func NewZeroPose() Pose {
	return Pose{Quat: quat.Number{Real: 1}}
}

// PoseFromRow reads a pose from a flat [x y z qw qx qy qz] row.
func PoseFromRow(row []float64) Pose {
	return Pose{
		Point: r3.Vector{X: row[0], Y: row[1], Z: row[2]},
		Quat:  quat.Number{Real: row[3], Imag: row[4], Jmag: row[5], Kmag: row[6]},
	}
}

// CopyToRow writes the pose into a flat [x y z qw qx qy qz] row.
func (p Pose) CopyToRow(row []float64) {
	row[0], row[1], row[2] = p.Point.X, p.Point.Y, p.Point.Z
	row[3], row[4], row[5], row[6] = p.Quat.Real, p.Quat.Imag, p.Quat.Jmag, p.Quat.Kmag
}

// PoseError returns the position error and shortest-rotation axis-angle
// orientation error taking current to target.
func PoseError(current, target Pose) (r3.Vector, r3.Vector) {
	return target.Point.Sub(current.Point), OrientationError(current.Quat, target.Quat)
}

// ApplyDeltaPose composes a six-element delta (position offset followed by an
// axis-angle rotation) onto a pose. The rotation delta is applied in the frame
// the pose is expressed in.
func ApplyDeltaPose(p Pose, delta []float64) Pose {
	dq := AxisAngleToQuat(r3.Vector{X: delta[3], Y: delta[4], Z: delta[5]})
	return Pose{
		Point: p.Point.Add(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]}),
		Quat:  Normalize(quat.Mul(dq, p.Quat)),
	}
}
