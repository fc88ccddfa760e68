package osc

import (
	"errors"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestActionDim(t *testing.T) {
	logger := golog.NewTestLogger(t)
	for _, c := range []struct {
		name string
		cfg  Config
		dim  int
	}{
		{"pose abs fixed", Config{CommandTypes: []CommandType{PoseAbsolute}}, 7},
		{"pose abs variable kp", Config{CommandTypes: []CommandType{PoseAbsolute}, ImpedanceMode: ImpedanceVariableKp}, 13},
		{"pose abs variable", Config{CommandTypes: []CommandType{PoseAbsolute}, ImpedanceMode: ImpedanceVariable}, 19},
		{"pose rel", Config{CommandTypes: []CommandType{PoseRelative}}, 6},
		{"position abs", Config{CommandTypes: []CommandType{PositionAbsolute}}, 3},
		{"position rel", Config{CommandTypes: []CommandType{PositionRelative}}, 3},
		{"wrench abs", Config{CommandTypes: []CommandType{WrenchAbsolute}}, 6},
		{"hybrid", Config{CommandTypes: []CommandType{PoseAbsolute, WrenchAbsolute}}, 13},
		{"hybrid variable kp", Config{CommandTypes: []CommandType{PoseAbsolute, WrenchAbsolute}, ImpedanceMode: ImpedanceVariableKp}, 19},
	} {
		t.Run(c.name, func(t *testing.T) {
			ctrl, err := NewController(c.cfg, 2, logger)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, ctrl.ActionDim(), test.ShouldEqual, c.dim)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	for _, c := range []struct {
		name string
		cfg  Config
	}{
		{"no command types", Config{}},
		{"unknown command type", Config{CommandTypes: []CommandType{CommandType(99)}}},
		{"unknown impedance mode", Config{CommandTypes: []CommandType{PoseAbsolute}, ImpedanceMode: ImpedanceMode(7)}},
		{"bad stiffness length", Config{CommandTypes: []CommandType{PoseAbsolute}, Stiffness: []float64{1, 2}}},
		{"negative stiffness", Config{CommandTypes: []CommandType{PoseAbsolute}, Stiffness: []float64{-5}}},
		{"negative damping ratio", Config{CommandTypes: []CommandType{PoseAbsolute}, DampingRatio: []float64{-1}}},
		{"inverted stiffness limits", Config{CommandTypes: []CommandType{PoseAbsolute}, StiffnessLimits: Limits{10, 5}}},
		{"bad motion axes length", Config{CommandTypes: []CommandType{PoseAbsolute}, MotionControlAxes: []int{1, 1, 1}}},
		{"non-binary wrench axes", Config{CommandTypes: []CommandType{PoseAbsolute}, WrenchControlAxes: []int{0, 0, 0, 0, 0, 2}}},
		{"bad wrench stiffness length", Config{CommandTypes: []CommandType{WrenchAbsolute}, WrenchStiffness: []float64{1, 2, 3}}},
	} {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrConfiguration), test.ShouldBeTrue)
		})
	}

	// a fully specified configuration passes
	err := Config{
		CommandTypes:      []CommandType{PoseAbsolute, WrenchAbsolute},
		ImpedanceMode:     ImpedanceVariable,
		MotionControlAxes: []int{0, 1, 1, 1, 1, 1},
		WrenchControlAxes: []int{1, 0, 0, 0, 0, 0},
		Stiffness:         []float64{100},
		DampingRatio:      []float64{1, 1, 1, 1, 1, 1},
		WrenchStiffness:   []float64{0.2},
	}.Validate()
	test.That(t, err, test.ShouldBeNil)
}

func TestControllerKeepsItsOwnConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := Config{
		CommandTypes: []CommandType{PoseAbsolute},
		Stiffness:    []float64{500},
	}
	ctrl, err := NewController(cfg, 1, logger)
	test.That(t, err, test.ShouldBeNil)

	// mutating the caller's slices after construction must not leak in
	cfg.Stiffness[0] = 1
	cfg.CommandTypes[0] = WrenchAbsolute
	test.That(t, ctrl.ActionDim(), test.ShouldEqual, 7)
	test.That(t, ctrl.cfg.stiffness[0], test.ShouldEqual, 500)
	test.That(t, ctrl.cfg.segments[0].kind, test.ShouldEqual, PoseAbsolute)
}

func TestCommandTypeStrings(t *testing.T) {
	test.That(t, PoseAbsolute.String(), test.ShouldEqual, "pose_abs")
	test.That(t, PoseRelative.String(), test.ShouldEqual, "pose_rel")
	test.That(t, PositionAbsolute.String(), test.ShouldEqual, "position_abs")
	test.That(t, PositionRelative.String(), test.ShouldEqual, "position_rel")
	test.That(t, WrenchAbsolute.String(), test.ShouldEqual, "wrench_abs")
	test.That(t, ImpedanceFixed.String(), test.ShouldEqual, "fixed")
	test.That(t, ImpedanceVariableKp.String(), test.ShouldEqual, "variable_kp")
	test.That(t, ImpedanceVariable.String(), test.ShouldEqual, "variable")
}
