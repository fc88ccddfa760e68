package osc

import (
	"fmt"

	"github.com/pkg/errors"
)

// ImpedanceMode selects where the motion-control gains come from.
type ImpedanceMode int

// The supported impedance modes.
const (
	// ImpedanceFixed uses the configured stiffness and damping ratio.
	ImpedanceFixed ImpedanceMode = iota
	// ImpedanceVariableKp reads stiffness from the command row; the damping
	// ratio stays configured.
	ImpedanceVariableKp
	// ImpedanceVariable reads both stiffness and damping ratio from the
	// command row.
	ImpedanceVariable
)

func (m ImpedanceMode) String() string {
	switch m {
	case ImpedanceFixed:
		return "fixed"
	case ImpedanceVariableKp:
		return "variable_kp"
	case ImpedanceVariable:
		return "variable"
	default:
		return fmt.Sprintf("ImpedanceMode(%d)", int(m))
	}
}

// gainsWidth returns how many gain elements the mode appends to the command row.
func (m ImpedanceMode) gainsWidth() int {
	switch m {
	case ImpedanceVariableKp:
		return numAxes
	case ImpedanceVariable:
		return 2 * numAxes
	default:
		return 0
	}
}

// Limits is an inclusive [Min, Max] range commanded gains are clamped to.
type Limits struct {
	Min float64
	Max float64
}

// Default gains and limit ranges, matching common manipulator impedance setups.
var (
	defaultStiffness          = 100.0
	defaultDampingRatio       = 1.0
	defaultStiffnessLimits    = Limits{0, 1000}
	defaultDampingRatioLimits = Limits{0, 100}
)

// numAxes is the task-space dimension: three linear axes plus three angular.
const numAxes = 6

// Config describes an operational-space controller. It is read once at
// construction; the controller keeps its own resolved copy, so mutating a
// Config afterwards has no effect on a live controller.
type Config struct {
	// CommandTypes is the ordered, non-empty set of task-space target segments
	// making up a command row.
	CommandTypes []CommandType

	// ImpedanceMode selects fixed or commanded motion-control gains.
	ImpedanceMode ImpedanceMode

	// MotionControlAxes marks, per task-space axis, whether the axis is under
	// motion control (0 or 1 per element). Nil enables all six axes.
	MotionControlAxes []int
	// WrenchControlAxes marks, per task-space axis, whether the axis is under
	// wrench control. Nil disables all six axes. The axes are not required to
	// be exclusive with MotionControlAxes.
	WrenchControlAxes []int

	// UncoupleMotionWrench weights the motion contribution by the
	// operational-space inertia so the wrench contribution bypasses it.
	UncoupleMotionWrench bool
	// InertialCompensation converts motion-control errors through the joint
	// mass matrix instead of treating the manipulator as unit-mass.
	InertialCompensation bool
	// GravityCompensation adds the supplied gravity torques to the output.
	GravityCompensation bool

	// Stiffness is the positional gain, a scalar (length 1) broadcast to all
	// axes or one value per axis (length 6). Nil means 100 on every axis.
	Stiffness []float64
	// DampingRatio combines with Stiffness to form the velocity gain
	// kd = 2*sqrt(kp)*ratio. Scalar or per-axis like Stiffness; nil means 1.
	DampingRatio []float64

	// StiffnessLimits bounds commanded stiffness when ImpedanceMode is not
	// fixed. The zero value means [0, 1000].
	StiffnessLimits Limits
	// DampingRatioLimits bounds commanded damping ratios when ImpedanceMode is
	// variable. The zero value means [0, 100].
	DampingRatioLimits Limits

	// WrenchStiffness enables closed-loop force control when non-nil: the
	// measured force error is scaled by it and added to the commanded wrench.
	// Only the three force elements are ever applied, since torque cannot be
	// measured. Scalar or per-axis. Nil means open-loop wrench commands.
	WrenchStiffness []float64
}

// Validate checks the configuration without constructing a controller.
func (c Config) Validate() error {
	_, err := resolveConfig(c)
	return err
}

// resolvedConfig is a Config with defaults materialized, scalar gains
// broadcast, and command types laid out into row segments.
type resolvedConfig struct {
	segments    []segment
	gainsOffset int
	actionDim   int

	impedanceMode ImpedanceMode
	stiffness     [numAxes]float64
	dampingRatio  [numAxes]float64
	kpLimits      Limits
	ratioLimits   Limits

	motionMask [numAxes]float64
	wrenchMask [numAxes]float64

	// wrenchStiffness is all zeros when force control is open-loop.
	wrenchStiffness [numAxes]float64
	closedLoopForce bool

	uncouple    bool
	inertial    bool
	gravityComp bool
}

func resolveConfig(cfg Config) (resolvedConfig, error) {
	var r resolvedConfig

	if len(cfg.CommandTypes) == 0 {
		return r, errors.Wrap(ErrConfiguration, "at least one command type is required")
	}
	offset := 0
	for _, ct := range cfg.CommandTypes {
		w := ct.Width()
		if w == 0 {
			return r, errors.Wrapf(ErrConfiguration, "unknown command type %d", int(ct))
		}
		r.segments = append(r.segments, segment{kind: ct, offset: offset, width: w})
		offset += w
	}

	switch cfg.ImpedanceMode {
	case ImpedanceFixed, ImpedanceVariableKp, ImpedanceVariable:
		r.impedanceMode = cfg.ImpedanceMode
	default:
		return r, errors.Wrapf(ErrConfiguration, "unknown impedance mode %d", int(cfg.ImpedanceMode))
	}
	r.gainsOffset = offset
	r.actionDim = offset + cfg.ImpedanceMode.gainsWidth()

	var err error
	if r.stiffness, err = expandAxes(cfg.Stiffness, defaultStiffness, "stiffness"); err != nil {
		return r, err
	}
	if r.dampingRatio, err = expandAxes(cfg.DampingRatio, defaultDampingRatio, "damping ratio"); err != nil {
		return r, err
	}
	for i := 0; i < numAxes; i++ {
		if r.stiffness[i] < 0 {
			return r, errors.Wrapf(ErrConfiguration, "stiffness must be non-negative, got %f on axis %d", r.stiffness[i], i)
		}
		if r.dampingRatio[i] < 0 {
			return r, errors.Wrapf(ErrConfiguration, "damping ratio must be non-negative, got %f on axis %d", r.dampingRatio[i], i)
		}
	}

	if r.kpLimits, err = resolveLimits(cfg.StiffnessLimits, defaultStiffnessLimits, "stiffness"); err != nil {
		return r, err
	}
	if r.ratioLimits, err = resolveLimits(cfg.DampingRatioLimits, defaultDampingRatioLimits, "damping ratio"); err != nil {
		return r, err
	}

	if r.motionMask, err = resolveAxisMask(cfg.MotionControlAxes, 1, "motion"); err != nil {
		return r, err
	}
	if r.wrenchMask, err = resolveAxisMask(cfg.WrenchControlAxes, 0, "wrench"); err != nil {
		return r, err
	}

	if cfg.WrenchStiffness != nil {
		if r.wrenchStiffness, err = expandAxes(cfg.WrenchStiffness, 0, "wrench stiffness"); err != nil {
			return r, err
		}
		r.closedLoopForce = true
	}

	r.uncouple = cfg.UncoupleMotionWrench
	r.inertial = cfg.InertialCompensation
	r.gravityComp = cfg.GravityCompensation
	return r, nil
}

// expandAxes broadcasts a scalar-or-per-axis gain slice to all six axes,
// substituting the default when the slice is nil.
func expandAxes(vals []float64, def float64, name string) ([numAxes]float64, error) {
	var out [numAxes]float64
	switch len(vals) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case numAxes:
		copy(out[:], vals)
	default:
		return out, errors.Wrapf(ErrConfiguration, "%s must have length 1 or %d, got %d", name, numAxes, len(vals))
	}
	return out, nil
}

func resolveLimits(l, def Limits, name string) (Limits, error) {
	if l == (Limits{}) {
		return def, nil
	}
	if l.Min > l.Max {
		return l, errors.Wrapf(ErrConfiguration, "%s limits are inverted: [%f, %f]", name, l.Min, l.Max)
	}
	return l, nil
}

func resolveAxisMask(axes []int, def float64, name string) ([numAxes]float64, error) {
	var out [numAxes]float64
	if axes == nil {
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	if len(axes) != numAxes {
		return out, errors.Wrapf(ErrConfiguration, "%s control axes must have length %d, got %d", name, numAxes, len(axes))
	}
	for i, a := range axes {
		if a != 0 && a != 1 {
			return out, errors.Wrapf(ErrConfiguration, "%s control axes must be 0 or 1, got %d on axis %d", name, a, i)
		}
		out[i] = float64(a)
	}
	return out, nil
}
