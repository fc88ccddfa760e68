package osc

import "fmt"

// CommandType identifies one task-space target segment within a flat command
// row. A command row is the concatenation, in configured order, of one segment
// per command type, optionally followed by variable-impedance gains.
type CommandType int

// The supported task-space command types.
const (
	// PoseAbsolute is an absolute pose target: position plus scalar-first
	// quaternion, 7 elements.
	PoseAbsolute CommandType = iota
	// PoseRelative is a pose offset from the live end-effector pose: position
	// delta plus axis-angle rotation delta, 6 elements.
	PoseRelative
	// PositionAbsolute is an absolute position target, 3 elements.
	PositionAbsolute
	// PositionRelative is a position offset from the live end-effector
	// position, 3 elements.
	PositionRelative
	// WrenchAbsolute is a desired end-effector wrench: force plus torque,
	// 6 elements.
	WrenchAbsolute
)

// Width returns the number of command-row elements the type occupies.
func (t CommandType) Width() int {
	switch t {
	case PoseAbsolute:
		return 7
	case PoseRelative, WrenchAbsolute:
		return 6
	case PositionAbsolute, PositionRelative:
		return 3
	default:
		return 0
	}
}

func (t CommandType) String() string {
	switch t {
	case PoseAbsolute:
		return "pose_abs"
	case PoseRelative:
		return "pose_rel"
	case PositionAbsolute:
		return "position_abs"
	case PositionRelative:
		return "position_rel"
	case WrenchAbsolute:
		return "wrench_abs"
	default:
		return fmt.Sprintf("CommandType(%d)", int(t))
	}
}

// segment is a command type resolved to its slot in the command row, so the
// hot path never inspects type tags beyond a single integer switch.
type segment struct {
	kind   CommandType
	offset int
	width  int
}
