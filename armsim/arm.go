package armsim

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.armlab.dev/opspace/batch"
	"go.armlab.dev/opspace/spatialmath"
)

// SerialArmConfig describes a batch of serial revolute arms with point-mass
// links. Each joint rotates about a unit axis fixed in its parent frame and
// each link extends along the rotated local x axis.
type SerialArmConfig struct {
	NumEnvs     int
	LinkLengths []float64
	LinkMasses  []float64
	// JointAxes are the per-joint rotation axes in the parent frame. Nil
	// defaults to alternating z and y axes, which gives a non-degenerate
	// spatial chain.
	JointAxes []r3.Vector
	// Armature is a constant inertia added to the mass-matrix diagonal so the
	// matrix stays well conditioned near singular configurations.
	Armature float64
	// JointDamping is a viscous term on joint velocity.
	JointDamping float64
	// GravityAccel, when positive, applies a -z gravity field of this
	// magnitude.
	GravityAccel float64
	// HomePosition is the initial joint configuration, defaulting to zeros.
	HomePosition []float64
}

// SerialArm is a batch of serial revolute arms.
type SerialArm struct {
	cfg     SerialArmConfig
	nJoints int
	axes    []r3.Vector
	home    []float64

	q  *batch.Vectors
	qd *batch.Vectors

	pose    *batch.Vectors  // 7
	vel     *batch.Vectors  // 6
	force   *batch.Vectors  // 3, always zero (no contact model on the arm)
	jac     *batch.Matrices // 6 x nJoints
	massMat *batch.Matrices // nJoints x nJoints
	gravity *batch.Vectors  // nJoints

	// joint-space scratch reused across environments
	rhs   *mat.VecDense
	accel *mat.VecDense
}

// NewSerialArm builds the batch and initializes every environment at the home
// configuration.
func NewSerialArm(cfg SerialArmConfig) (*SerialArm, error) {
	if cfg.NumEnvs <= 0 {
		return nil, errors.Errorf("environment count must be positive, got %d", cfg.NumEnvs)
	}
	n := len(cfg.LinkLengths)
	if n == 0 {
		return nil, errors.New("at least one link is required")
	}
	if len(cfg.LinkMasses) != n {
		return nil, errors.Errorf("got %d link masses for %d links", len(cfg.LinkMasses), n)
	}
	for i := 0; i < n; i++ {
		if cfg.LinkLengths[i] <= 0 || cfg.LinkMasses[i] <= 0 {
			return nil, errors.Errorf("link %d must have positive length and mass", i)
		}
	}
	axes := cfg.JointAxes
	if axes == nil {
		axes = make([]r3.Vector, n)
		for i := range axes {
			if i%2 == 0 {
				axes[i] = r3.Vector{Z: 1}
			} else {
				axes[i] = r3.Vector{Y: 1}
			}
		}
	}
	if len(axes) != n {
		return nil, errors.Errorf("got %d joint axes for %d links", len(axes), n)
	}
	for i, a := range axes {
		if a.Norm() == 0 {
			return nil, errors.Errorf("joint %d has a zero axis", i)
		}
		axes[i] = a.Normalize()
	}
	home := cfg.HomePosition
	if home == nil {
		home = make([]float64, n)
	}
	if len(home) != n {
		return nil, errors.Errorf("got %d home positions for %d joints", len(home), n)
	}
	if cfg.Armature <= 0 {
		cfg.Armature = 1e-3
	}

	a := &SerialArm{
		cfg:     cfg,
		nJoints: n,
		axes:    axes,
		home:    append([]float64(nil), home...),
		q:       batch.NewVectors(cfg.NumEnvs, n),
		qd:      batch.NewVectors(cfg.NumEnvs, n),
		pose:    batch.NewVectors(cfg.NumEnvs, spatialmath.PoseLen),
		vel:     batch.NewVectors(cfg.NumEnvs, numAxes),
		force:   batch.NewVectors(cfg.NumEnvs, 3),
		jac:     batch.NewMatrices(cfg.NumEnvs, numAxes, n),
		massMat: batch.NewMatrices(cfg.NumEnvs, n, n),
		gravity: batch.NewVectors(cfg.NumEnvs, n),
		rhs:     mat.NewVecDense(n, nil),
		accel:   mat.NewVecDense(n, nil),
	}
	if err := a.Reset(); err != nil {
		return nil, err
	}
	return a, nil
}

// NumJoints returns the joint count.
func (a *SerialArm) NumJoints() int { return a.nJoints }

// Jacobian returns the batched geometric end-effector Jacobian.
func (a *SerialArm) Jacobian() *batch.Matrices { return a.jac }

// MassMatrix returns the batched configuration-dependent mass matrix.
func (a *SerialArm) MassMatrix() *batch.Matrices { return a.massMat }

// Gravity returns the batched generalized gravity torques.
func (a *SerialArm) Gravity() *batch.Vectors { return a.gravity }

// EEPose returns the batched end-effector poses.
func (a *SerialArm) EEPose() *batch.Vectors { return a.pose }

// EEVelocity returns the batched end-effector twists.
func (a *SerialArm) EEVelocity() *batch.Vectors { return a.vel }

// ContactForce returns the batched measured contact force, which is always
// zero for the arm plant.
func (a *SerialArm) ContactForce() *batch.Vectors { return a.force }

// JointPositions returns the batched joint positions.
func (a *SerialArm) JointPositions() *batch.Vectors { return a.q }

// Reset returns the given environments (or all, when none are given) to the
// home configuration at rest and refreshes the derived buffers.
func (a *SerialArm) Reset(envIDs ...int) error {
	if len(envIDs) == 0 {
		envIDs = make([]int, a.cfg.NumEnvs)
		for i := range envIDs {
			envIDs[i] = i
		}
	}
	if err := a.qd.ZeroRows(envIDs); err != nil {
		return err
	}
	for _, id := range envIDs {
		copy(a.q.Row(id), a.home)
		a.updateDerived(id)
	}
	return nil
}

// Step advances every environment by dt under the applied joint efforts
// (numEnvs-by-nJoints).
func (a *SerialArm) Step(efforts *mat.Dense, dt float64) error {
	r, c := efforts.Dims()
	if r != a.cfg.NumEnvs || c != a.nJoints {
		return errors.Errorf("expected %dx%d efforts, got %dx%d", a.cfg.NumEnvs, a.nJoints, r, c)
	}
	for i := 0; i < a.cfg.NumEnvs; i++ {
		tau := efforts.RawRowView(i)
		q := a.q.Row(i)
		qd := a.qd.Row(i)
		grav := a.gravity.Row(i)

		for j := 0; j < a.nJoints; j++ {
			a.rhs.SetVec(j, tau[j]-grav[j]-a.cfg.JointDamping*qd[j])
		}
		if err := a.accel.SolveVec(a.massMat.Env(i), a.rhs); err != nil {
			return errors.Wrapf(err, "environment %d dynamics solve failed", i)
		}
		for j := 0; j < a.nJoints; j++ {
			qd[j] += dt * a.accel.AtVec(j)
			q[j] += dt * qd[j]
		}
		a.updateDerived(i)
	}
	return nil
}

// chainState is the forward-kinematics result for one configuration: joint
// origins and world axes, link-end positions, and the end-effector pose.
type chainState struct {
	origins  []r3.Vector
	axes     []r3.Vector
	linkEnds []r3.Vector
	ee       spatialmath.Pose
}

func (a *SerialArm) forwardKinematics(q []float64) chainState {
	st := chainState{
		origins:  make([]r3.Vector, a.nJoints),
		axes:     make([]r3.Vector, a.nJoints),
		linkEnds: make([]r3.Vector, a.nJoints),
	}
	rot := quat.Number{Real: 1}
	pos := r3.Vector{}
	for i := 0; i < a.nJoints; i++ {
		st.origins[i] = pos
		st.axes[i] = spatialmath.Rotate(rot, a.axes[i])
		rot = spatialmath.Normalize(quat.Mul(spatialmath.AxisAngleToQuat(st.axes[i].Mul(q[i])), rot))
		pos = pos.Add(spatialmath.Rotate(rot, r3.Vector{X: a.cfg.LinkLengths[i]}))
		st.linkEnds[i] = pos
	}
	st.ee = spatialmath.Pose{Point: pos, Quat: rot}
	return st
}

// pointJacobianColumn returns the linear velocity contribution of joint j to a
// point p, given the chain state.
func pointJacobianColumn(st chainState, j int, p r3.Vector) r3.Vector {
	return st.axes[j].Cross(p.Sub(st.origins[j]))
}

// updateDerived refreshes the snapshot buffers for one environment from its
// joint state.
func (a *SerialArm) updateDerived(i int) {
	q := a.q.Row(i)
	qd := a.qd.Row(i)
	st := a.forwardKinematics(q)

	st.ee.CopyToRow(a.pose.Row(i))

	// geometric end-effector Jacobian
	jac := a.jac.Env(i)
	for j := 0; j < a.nJoints; j++ {
		lin := pointJacobianColumn(st, j, st.ee.Point)
		jac.Set(0, j, lin.X)
		jac.Set(1, j, lin.Y)
		jac.Set(2, j, lin.Z)
		jac.Set(3, j, st.axes[j].X)
		jac.Set(4, j, st.axes[j].Y)
		jac.Set(5, j, st.axes[j].Z)
	}

	// end-effector twist from the Jacobian
	vel := a.vel.Row(i)
	for ax := 0; ax < numAxes; ax++ {
		sum := 0.0
		for j := 0; j < a.nJoints; j++ {
			sum += jac.At(ax, j) * qd[j]
		}
		vel[ax] = sum
	}

	// point-mass composite dynamics: M = sum_k m_k Jv_k^T Jv_k + armature,
	// g_i = sum_k m_k g Jv_k[z, i]
	massM := a.massMat.Env(i)
	grav := a.gravity.Row(i)
	massM.Zero()
	for j := 0; j < a.nJoints; j++ {
		grav[j] = 0
	}
	for k := 0; k < a.nJoints; k++ {
		m := a.cfg.LinkMasses[k]
		for j := 0; j <= k; j++ {
			colJ := pointJacobianColumn(st, j, st.linkEnds[k])
			grav[j] += m * a.cfg.GravityAccel * colJ.Z
			for l := 0; l <= k; l++ {
				colL := pointJacobianColumn(st, l, st.linkEnds[k])
				massM.Set(j, l, massM.At(j, l)+m*colJ.Dot(colL))
			}
		}
	}
	for j := 0; j < a.nJoints; j++ {
		massM.Set(j, j, massM.At(j, j)+a.cfg.Armature)
	}
}
