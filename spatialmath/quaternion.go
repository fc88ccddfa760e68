// Package spatialmath defines the spatial mathematical operations shared by the
// controller and the simulated plants: quaternion algebra, axis-angle
// conversions, and pose composition.
//
// Quaternions follow the scalar-first (w, x, y, z) convention throughout.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If a rotation angle is smaller than this, the axis is numerically meaningless
// and we fall back to the small-angle approximation.
const angleEpsilon = 1e-8

// Norm returns the norm of the vector part of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize scales a quaternion to unit length. The zero quaternion normalizes
// to the identity rotation.
func Normalize(q quat.Number) quat.Number {
	length := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if length == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/length, q)
}

// Rotate rotates vector v by unit quaternion q.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateInverse rotates vector v by the inverse of unit quaternion q, taking a
// world-frame vector into the frame described by q.
func RotateInverse(q quat.Number, v r3.Vector) r3.Vector {
	return Rotate(quat.Conj(q), v)
}

// AxisAngleToQuat converts an R3 axis-angle vector (axis scaled by the rotation
// angle in radians) to a unit quaternion.
func AxisAngleToQuat(aa r3.Vector) quat.Number {
	theta := aa.Norm()
	if theta < angleEpsilon {
		// sin(theta/2)/theta -> 0.5 as theta -> 0
		return Normalize(quat.Number{Real: 1, Imag: aa.X / 2, Jmag: aa.Y / 2, Kmag: aa.Z / 2})
	}
	axis := aa.Mul(1 / theta)
	s := math.Sin(theta / 2)
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// QuatToAxisAngle converts a unit quaternion to an R3 axis-angle vector,
// choosing the sign so the rotation is the shortest one.
func QuatToAxisAngle(q quat.Number) r3.Vector {
	// flipping to the positive-real hemisphere keeps the angle in [0, pi]
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	denom := Norm(q)
	angle := 2 * math.Atan2(denom, q.Real)
	if denom < angleEpsilon {
		// small-angle: theta*axis ~= 2*(imaginary part)
		return r3.Vector{X: 2 * q.Imag, Y: 2 * q.Jmag, Z: 2 * q.Kmag}
	}
	scale := angle / denom
	return r3.Vector{X: q.Imag * scale, Y: q.Jmag * scale, Z: q.Kmag * scale}
}

// OrientationError returns the axis-angle rotation taking current to target by
// the shortest path, expressed in the frame both quaternions are given in.
func OrientationError(current, target quat.Number) r3.Vector {
	return QuatToAxisAngle(quat.Mul(target, quat.Conj(current)))
}

// RotationMatrixToQuat converts a row-major 3x3 rotation matrix to a unit
// quaternion using Shepperd's method.
func RotationMatrixToQuat(m [9]float64) quat.Number {
	trace := m[0] + m[4] + m[8]
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		q = quat.Number{
			Real: 0.25 / s,
			Imag: (m[7] - m[5]) * s,
			Jmag: (m[2] - m[6]) * s,
			Kmag: (m[3] - m[1]) * s,
		}
	case m[0] > m[4] && m[0] > m[8]:
		s := 2.0 * math.Sqrt(1.0+m[0]-m[4]-m[8])
		q = quat.Number{
			Real: (m[7] - m[5]) / s,
			Imag: 0.25 * s,
			Jmag: (m[1] + m[3]) / s,
			Kmag: (m[2] + m[6]) / s,
		}
	case m[4] > m[8]:
		s := 2.0 * math.Sqrt(1.0+m[4]-m[0]-m[8])
		q = quat.Number{
			Real: (m[2] - m[6]) / s,
			Imag: (m[1] + m[3]) / s,
			Jmag: 0.25 * s,
			Kmag: (m[5] + m[7]) / s,
		}
	default:
		s := 2.0 * math.Sqrt(1.0+m[8]-m[0]-m[4])
		q = quat.Number{
			Real: (m[3] - m[1]) / s,
			Imag: (m[2] + m[6]) / s,
			Jmag: (m[5] + m[7]) / s,
			Kmag: 0.25 * s,
		}
	}
	return Normalize(q)
}
