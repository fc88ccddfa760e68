// Package armsim provides small analytic plants for exercising task-space
// controllers: a free-floating 6-DOF rigid body whose Jacobian is the
// identity, and a serial revolute arm with configuration-dependent dynamics.
// Both are batched over parallel environment instances and step under applied
// joint efforts with semi-implicit Euler integration. They are test plants,
// not physics engines: Coriolis terms are ignored.
package armsim

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.armlab.dev/opspace/batch"
	"go.armlab.dev/opspace/spatialmath"
)

const numAxes = 6

// Wall is a one-sided linear-spring contact surface normal to a coordinate
// axis. A body penetrating past Offset along Axis feels a proportional
// reaction, and the force it exerts on the wall is reported as the measured
// contact force.
type Wall struct {
	Axis      int // 0, 1 or 2
	Offset    float64
	Stiffness float64
}

// FloatingBodyConfig describes a batch of free-floating rigid bodies driven
// directly by task-space wrenches (the Jacobian is the 6x6 identity).
type FloatingBodyConfig struct {
	NumEnvs int
	// Mass is the translational mass, and Inertia the diagonal rotational
	// inertia per angular axis. Both default to 1.
	Mass    float64
	Inertia r3.Vector
	// LinearDamping and AngularDamping are viscous terms that let impedance
	// scenarios settle.
	LinearDamping  float64
	AngularDamping float64
	// GravityAccel, when positive, applies a -z gravity field of this
	// magnitude and reports the matching generalized gravity torques.
	GravityAccel float64
	// Wall, when non-nil, adds a contact surface for force-control scenarios.
	Wall *Wall
	// Home is the initial pose every environment starts and resets to.
	// The zero value means origin with identity orientation.
	Home spatialmath.Pose
}

// FloatingBody is a batch of free 6-DOF rigid bodies.
type FloatingBody struct {
	cfg  FloatingBodyConfig
	home spatialmath.Pose

	pose  *batch.Vectors // 7
	vel   *batch.Vectors // 6
	force *batch.Vectors // 3, measured contact force

	jac     *batch.Matrices // constant identity
	massMat *batch.Matrices // constant diagonal
	gravity *batch.Vectors  // constant
}

// NewFloatingBody builds the batch and initializes every environment at the
// home pose.
func NewFloatingBody(cfg FloatingBodyConfig) (*FloatingBody, error) {
	if cfg.NumEnvs <= 0 {
		return nil, errors.Errorf("environment count must be positive, got %d", cfg.NumEnvs)
	}
	if cfg.Mass == 0 {
		cfg.Mass = 1
	}
	if cfg.Mass < 0 {
		return nil, errors.Errorf("mass must be positive, got %f", cfg.Mass)
	}
	if cfg.Inertia == (r3.Vector{}) {
		cfg.Inertia = r3.Vector{X: 1, Y: 1, Z: 1}
	}
	if cfg.Wall != nil && (cfg.Wall.Axis < 0 || cfg.Wall.Axis > 2) {
		return nil, errors.Errorf("wall axis must be 0, 1 or 2, got %d", cfg.Wall.Axis)
	}
	home := cfg.Home
	home.Quat = spatialmath.Normalize(home.Quat)

	b := &FloatingBody{
		cfg:     cfg,
		home:    home,
		pose:    batch.NewVectors(cfg.NumEnvs, spatialmath.PoseLen),
		vel:     batch.NewVectors(cfg.NumEnvs, numAxes),
		force:   batch.NewVectors(cfg.NumEnvs, 3),
		jac:     batch.NewMatrices(cfg.NumEnvs, numAxes, numAxes),
		massMat: batch.NewMatrices(cfg.NumEnvs, numAxes, numAxes),
		gravity: batch.NewVectors(cfg.NumEnvs, numAxes),
	}

	identity := mat.NewDense(numAxes, numAxes, nil)
	massDiag := mat.NewDense(numAxes, numAxes, nil)
	inertia := []float64{cfg.Mass, cfg.Mass, cfg.Mass, cfg.Inertia.X, cfg.Inertia.Y, cfg.Inertia.Z}
	for i := 0; i < numAxes; i++ {
		identity.Set(i, i, 1)
		massDiag.Set(i, i, inertia[i])
	}
	b.jac.SetAll(identity)
	b.massMat.SetAll(massDiag)
	for i := 0; i < cfg.NumEnvs; i++ {
		// generalized gravity torque: what the controller must add to hold still
		b.gravity.Row(i)[2] = cfg.Mass * cfg.GravityAccel
	}
	b.Reset()
	return b, nil
}

// NumJoints returns the actuated dimension, which for a free body is the full
// task-space dimension.
func (b *FloatingBody) NumJoints() int { return numAxes }

// Jacobian returns the batched (identity) task Jacobian.
func (b *FloatingBody) Jacobian() *batch.Matrices { return b.jac }

// MassMatrix returns the batched constant mass matrix.
func (b *FloatingBody) MassMatrix() *batch.Matrices { return b.massMat }

// Gravity returns the batched generalized gravity torques.
func (b *FloatingBody) Gravity() *batch.Vectors { return b.gravity }

// EEPose returns the batched body poses.
func (b *FloatingBody) EEPose() *batch.Vectors { return b.pose }

// EEVelocity returns the batched body twists (linear then angular).
func (b *FloatingBody) EEVelocity() *batch.Vectors { return b.vel }

// ContactForce returns the batched measured contact force.
func (b *FloatingBody) ContactForce() *batch.Vectors { return b.force }

// Reset returns the given environments (or all, when none are given) to the
// home pose at rest.
func (b *FloatingBody) Reset(envIDs ...int) error {
	if len(envIDs) == 0 {
		envIDs = make([]int, b.cfg.NumEnvs)
		for i := range envIDs {
			envIDs[i] = i
		}
	}
	if err := b.vel.ZeroRows(envIDs); err != nil {
		return err
	}
	if err := b.force.ZeroRows(envIDs); err != nil {
		return err
	}
	for _, id := range envIDs {
		b.home.CopyToRow(b.pose.Row(id))
	}
	return nil
}

// Step advances every environment by dt under the applied efforts
// (numEnvs-by-6 task wrenches, since the Jacobian is the identity).
func (b *FloatingBody) Step(efforts *mat.Dense, dt float64) error {
	r, c := efforts.Dims()
	if r != b.cfg.NumEnvs || c != numAxes {
		return errors.Errorf("expected %dx%d efforts, got %dx%d", b.cfg.NumEnvs, numAxes, r, c)
	}
	inertia := []float64{
		b.cfg.Mass, b.cfg.Mass, b.cfg.Mass,
		b.cfg.Inertia.X, b.cfg.Inertia.Y, b.cfg.Inertia.Z,
	}
	for i := 0; i < b.cfg.NumEnvs; i++ {
		tau := efforts.RawRowView(i)
		vel := b.vel.Row(i)
		poseRow := b.pose.Row(i)
		grav := b.gravity.Row(i)
		measured := b.force.Row(i)

		var reaction [3]float64
		for j := range measured {
			measured[j] = 0
		}
		if w := b.cfg.Wall; w != nil {
			if pen := poseRow[w.Axis] - w.Offset; pen > 0 {
				f := w.Stiffness * pen
				measured[w.Axis] = f
				reaction[w.Axis] = -f
			}
		}

		for ax := 0; ax < numAxes; ax++ {
			damping := b.cfg.LinearDamping
			if ax >= 3 {
				damping = b.cfg.AngularDamping
			}
			accel := tau[ax] - grav[ax] - damping*vel[ax]
			if ax < 3 {
				accel += reaction[ax]
			}
			vel[ax] += dt * accel / inertia[ax]
		}

		pose := spatialmath.PoseFromRow(poseRow)
		pose.Point = pose.Point.Add(r3.Vector{X: vel[0], Y: vel[1], Z: vel[2]}.Mul(dt))
		omega := r3.Vector{X: vel[3], Y: vel[4], Z: vel[5]}.Mul(dt)
		pose.Quat = spatialmath.Normalize(quat.Mul(spatialmath.AxisAngleToQuat(omega), pose.Quat))
		pose.CopyToRow(poseRow)
	}
	return nil
}
