// Package osc implements a batched operational-space impedance controller: it
// maps task-space pose, velocity, and wrench targets to joint-space actuator
// efforts using rigid-body dynamics quantities supplied by the caller each
// step. All state and math are batched over independent parallel environment
// instances.
package osc

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.armlab.dev/opspace/batch"
	"go.armlab.dev/opspace/spatialmath"
)

// Snapshot carries the per-step kinematic and dynamic quantities the
// controller consumes. The caller owns it; the controller never retains it
// beyond a Compute call.
//
// Poses are [x y z qw qx qy qz] rows, velocities are linear then angular, and
// the Jacobian, end-effector state, and measured force are all expressed in
// the same body frame.
type Snapshot struct {
	Jacobian   *batch.Matrices // 6 x nJoints per environment
	MassMatrix *batch.Matrices // nJoints x nJoints per environment
	Gravity    *batch.Vectors  // nJoints generalized gravity torques
	EEPose     *batch.Vectors  // 7
	EEVelocity *batch.Vectors  // 6
	EEForce    *batch.Vectors  // 3, measured contact force
}

// validate checks internal consistency and returns the joint count.
func (s *Snapshot) validate(numEnvs int) (int, error) {
	if s == nil || s.Jacobian == nil || s.MassMatrix == nil || s.Gravity == nil ||
		s.EEPose == nil || s.EEVelocity == nil || s.EEForce == nil {
		return 0, errors.Wrap(ErrSnapshotShape, "snapshot has nil fields")
	}
	jr, nJoints := s.Jacobian.Dims()
	if jr != numAxes {
		return 0, errors.Wrapf(ErrSnapshotShape, "jacobian must have %d rows, got %d", numAxes, jr)
	}
	mr, mc := s.MassMatrix.Dims()
	if mr != nJoints || mc != nJoints {
		return 0, errors.Wrapf(ErrSnapshotShape, "mass matrix must be %dx%d, got %dx%d", nJoints, nJoints, mr, mc)
	}
	for name, n := range map[string]int{
		"jacobian":    s.Jacobian.N(),
		"mass matrix": s.MassMatrix.N(),
		"gravity":     s.Gravity.N(),
		"ee pose":     s.EEPose.N(),
		"ee velocity": s.EEVelocity.N(),
		"ee force":    s.EEForce.N(),
	} {
		if n != numEnvs {
			return 0, errors.Wrapf(ErrSnapshotShape, "%s is batched over %d environments, controller has %d", name, n, numEnvs)
		}
	}
	for name, got := range map[string][2]int{
		"gravity":     {s.Gravity.Width(), nJoints},
		"ee pose":     {s.EEPose.Width(), spatialmath.PoseLen},
		"ee velocity": {s.EEVelocity.Width(), numAxes},
		"ee force":    {s.EEForce.Width(), 3},
	} {
		if got[0] != got[1] {
			return 0, errors.Wrapf(ErrSnapshotShape, "%s width must be %d, got %d", name, got[1], got[0])
		}
	}
	return nJoints, nil
}

// Controller is a batched operational-space impedance controller. It is
// driven once per simulation tick from a single goroutine: SetCommand and
// Reset write the command store that Compute reads, and no internal locking
// is performed.
type Controller struct {
	cfg     resolvedConfig
	numEnvs int
	logger  golog.Logger

	cmd      *batch.Vectors
	relative bool
	scratch  *dynScratch

	debugVis bool
}

// NewController validates the configuration and returns a controller batched
// over numEnvs environments.
func NewController(cfg Config, numEnvs int, logger golog.Logger) (*Controller, error) {
	if numEnvs <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "environment count must be positive, got %d", numEnvs)
	}
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:     resolved,
		numEnvs: numEnvs,
		logger:  logger,
		cmd:     batch.NewVectors(numEnvs, resolved.actionDim),
	}
	for _, seg := range resolved.segments {
		if seg.kind == PoseRelative || seg.kind == PositionRelative {
			c.relative = true
		}
	}
	logger.Debugw("operational-space controller configured",
		"numEnvs", numEnvs,
		"actionDim", resolved.actionDim,
		"impedanceMode", resolved.impedanceMode.String(),
		"closedLoopForce", resolved.closedLoopForce,
	)
	return c, nil
}

// ActionDim returns the flat width of a command row, so callers can size
// their own target buffers.
func (c *Controller) ActionDim() int { return c.cfg.actionDim }

// NumEnvs returns the environment batch size.
func (c *Controller) NumEnvs() int { return c.numEnvs }

// Reset zeroes the stored command for the given environments, or for every
// environment when none are given, so stale commands cannot leak into a newly
// reset episode.
func (c *Controller) Reset(envIDs ...int) error {
	if len(envIDs) == 0 {
		c.cmd.Zero()
		return nil
	}
	return c.cmd.ZeroRows(envIDs)
}

// SetCommand stores a batch of task-space targets, one row per environment,
// laid out per the configured command types. currentEEPose is required when
// any relative command type is configured; relative targets are resolved
// against the live pose on every Compute call, not frozen here.
func (c *Controller) SetCommand(command, currentEEPose *mat.Dense) error {
	if command == nil {
		return errors.Wrap(ErrCommandShape, "command is nil")
	}
	r, cols := command.Dims()
	if r != c.numEnvs || cols != c.cfg.actionDim {
		return errors.Wrapf(ErrCommandShape, "expected %dx%d, got %dx%d", c.numEnvs, c.cfg.actionDim, r, cols)
	}
	if c.relative {
		if currentEEPose == nil {
			return errors.Wrap(ErrCommandShape, "relative command types require the current end-effector pose")
		}
		pr, pc := currentEEPose.Dims()
		if pr != c.numEnvs || pc != spatialmath.PoseLen {
			return errors.Wrapf(ErrCommandShape, "expected %dx%d pose, got %dx%d", c.numEnvs, spatialmath.PoseLen, pr, pc)
		}
	}
	return c.cmd.CopyFrom(command)
}

// Compute runs one control step: gain scheduling, task-space error and
// selection, and dynamics compensation, returning joint efforts as a
// numEnvs-by-nJoints matrix. It is a pure numeric transform, safe to call
// every simulation tick.
//
// A singular configuration in one environment zeroes that environment's row
// and is reported through the returned error without corrupting sibling
// rows; the effort matrix is still returned alongside the aggregated error.
func (c *Controller) Compute(snap *Snapshot) (*mat.Dense, error) {
	nJoints, err := snap.validate(c.numEnvs)
	if err != nil {
		return nil, err
	}
	if c.scratch == nil || c.scratch.nJoints != nJoints {
		c.scratch = newDynScratch(nJoints)
	}

	efforts := mat.NewDense(c.numEnvs, nJoints, nil)
	var kp, kd, motion, wrench [numAxes]float64
	var errs error
	for i := 0; i < c.numEnvs; i++ {
		cmdRow := c.cmd.Row(i)
		c.cfg.scheduleGains(cmdRow, kp[:], kd[:])
		pose := spatialmath.PoseFromRow(snap.EEPose.Row(i))
		if err := c.cfg.taskErrors(
			cmdRow, pose, snap.EEVelocity.Row(i), snap.EEForce.Row(i),
			kp[:], kd[:], motion[:], wrench[:],
		); err != nil {
			// a configuration bug, not a per-environment numeric failure
			return nil, err
		}
		row := efforts.RawRowView(i)
		if err := c.cfg.jointEfforts(
			c.scratch, snap.Jacobian.Env(i), snap.MassMatrix.Env(i), snap.Gravity.Row(i),
			motion[:], wrench[:], row,
		); err != nil {
			for j := range row {
				row[j] = 0
			}
			errs = multierr.Append(errs, errors.Wrapf(err, "environment %d", i))
		}
	}
	return efforts, errs
}

// SetDebugVisualization toggles the debug-visualization flag queried by an
// external UI. It has no effect on Compute.
func (c *Controller) SetDebugVisualization(enabled bool) {
	c.debugVis = enabled
}

// DebugVisualizationEnabled reports whether debug visualization is requested.
func (c *Controller) DebugVisualizationEnabled() bool {
	return c.debugVis
}
