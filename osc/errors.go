package osc

import "errors"

// Domain errors for controller operations.
var (
	// ErrConfiguration indicates an invalid or incoherent controller configuration.
	ErrConfiguration = errors.New("osc: invalid controller configuration")

	// ErrCommandShape indicates a command buffer whose dimensions do not match
	// the controller's action dimension and environment count.
	ErrCommandShape = errors.New("osc: command shape mismatch")

	// ErrUnsupportedCommandType indicates a command type the controller does not
	// recognize. Seeing this after construction means the configuration was
	// mutated behind the controller's back.
	ErrUnsupportedCommandType = errors.New("osc: unsupported command type")

	// ErrSingularConfiguration indicates the manipulator reached a configuration
	// where the operational-space inertia could not be computed.
	ErrSingularConfiguration = errors.New("osc: singular manipulator configuration")

	// ErrSnapshotShape indicates a dynamics snapshot whose buffers do not agree
	// on the environment count or joint count.
	ErrSnapshotShape = errors.New("osc: snapshot shape mismatch")
)
