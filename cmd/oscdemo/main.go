// Command oscdemo runs a batched operational-space controller against one of
// the analytic plants, cycling through a set of task-space goals and logging
// the remaining error per phase.
package main

import (
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"go.armlab.dev/opspace/armsim"
	"go.armlab.dev/opspace/osc"
	"go.armlab.dev/opspace/spatialmath"
)

var (
	numEnvs      int
	dt           float64
	stepsPerGoal int
	stiffness    float64
	dampingRatio float64
	plantKind    string
	scenarioFile string
	debug        bool
)

// scenario is the yaml-loadable description of a demo run. Flags override
// nothing here: a scenario file, when given, wins for the fields it sets.
type scenario struct {
	Plant        string      `yaml:"plant"` // "body" or "arm"
	NumEnvs      int         `yaml:"num_envs"`
	Dt           float64     `yaml:"dt"`
	StepsPerGoal int         `yaml:"steps_per_goal"`
	Stiffness    float64     `yaml:"stiffness"`
	DampingRatio float64     `yaml:"damping_ratio"`
	Goals        [][]float64 `yaml:"goals"` // [x y z yaw] per goal
}

func defaultScenario() *scenario {
	return &scenario{
		Plant:        "body",
		NumEnvs:      4,
		Dt:           0.005,
		StepsPerGoal: 500,
		Stiffness:    500,
		DampingRatio: 1,
		Goals: [][]float64{
			{0.4, -0.2, 0.3, 0.6},
			{-0.1, 0.5, -0.25, -0.4},
			{0.2, 0.2, 0.1, 0},
		},
	}
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := defaultScenario()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, errors.Wrapf(err, "parsing scenario %s", path)
	}
	return sc, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "oscdemo",
		Short: "operational-space controller demo scenarios",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "cycle a controller through a set of task-space goals",
		RunE:  runScenario,
	}
	runCmd.Flags().IntVar(&numEnvs, "envs", 4, "environment batch size")
	runCmd.Flags().Float64Var(&dt, "dt", 0.005, "timestep")
	runCmd.Flags().IntVar(&stepsPerGoal, "steps", 500, "steps per goal before advancing")
	runCmd.Flags().Float64Var(&stiffness, "stiffness", 500, "motion-control stiffness")
	runCmd.Flags().Float64Var(&dampingRatio, "damping-ratio", 1, "motion-control damping ratio")
	runCmd.Flags().StringVar(&plantKind, "plant", "body", "plant: body or arm")
	runCmd.Flags().StringVar(&scenarioFile, "scenario", "", "scenario file path (yaml)")
	runCmd.Flags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// plant is what a demo scenario needs from either analytic plant.
type plant interface {
	NumJoints() int
	Reset(envIDs ...int) error
	Step(efforts *mat.Dense, dt float64) error
}

func runScenario(cmd *cobra.Command, args []string) error {
	logger := golog.NewLogger("oscdemo")
	if debug {
		logger = golog.NewDebugLogger("oscdemo")
	}

	sc := defaultScenario()
	if scenarioFile != "" {
		loaded, err := loadScenario(scenarioFile)
		if err != nil {
			return err
		}
		sc = loaded
	} else {
		sc.Plant = plantKind
		sc.NumEnvs = numEnvs
		sc.Dt = dt
		sc.StepsPerGoal = stepsPerGoal
		sc.Stiffness = stiffness
		sc.DampingRatio = dampingRatio
	}

	ctrl, err := osc.NewController(osc.Config{
		CommandTypes: []osc.CommandType{osc.PoseAbsolute},
		Stiffness:    []float64{sc.Stiffness},
		DampingRatio: []float64{sc.DampingRatio},
	}, sc.NumEnvs, logger)
	if err != nil {
		return err
	}

	var (
		p    plant
		snap *osc.Snapshot
	)
	switch sc.Plant {
	case "body":
		body, err := armsim.NewFloatingBody(armsim.FloatingBodyConfig{NumEnvs: sc.NumEnvs})
		if err != nil {
			return err
		}
		p = body
		snap = &osc.Snapshot{
			Jacobian:   body.Jacobian(),
			MassMatrix: body.MassMatrix(),
			Gravity:    body.Gravity(),
			EEPose:     body.EEPose(),
			EEVelocity: body.EEVelocity(),
			EEForce:    body.ContactForce(),
		}
	case "arm":
		arm, err := armsim.NewSerialArm(armsim.SerialArmConfig{
			NumEnvs:      sc.NumEnvs,
			LinkLengths:  []float64{0.3, 0.3, 0.25, 0.2, 0.15, 0.1},
			LinkMasses:   []float64{2, 2, 1.5, 1, 0.5, 0.3},
			JointDamping: 1,
		})
		if err != nil {
			return err
		}
		p = arm
		snap = &osc.Snapshot{
			Jacobian:   arm.Jacobian(),
			MassMatrix: arm.MassMatrix(),
			Gravity:    arm.Gravity(),
			EEPose:     arm.EEPose(),
			EEVelocity: arm.EEVelocity(),
			EEForce:    arm.ContactForce(),
		}
	default:
		return errors.Errorf("unknown plant %q, want body or arm", sc.Plant)
	}

	logger.Infow("scenario starting",
		"plant", sc.Plant,
		"numEnvs", sc.NumEnvs,
		"goals", len(sc.Goals),
		"stepsPerGoal", sc.StepsPerGoal,
		"dt", sc.Dt,
	)

	for g, goal := range sc.Goals {
		if len(goal) != 4 {
			return errors.Errorf("goal %d must be [x y z yaw], got %d values", g, len(goal))
		}
		target := spatialmath.Pose{
			Point: r3.Vector{X: goal[0], Y: goal[1], Z: goal[2]},
			Quat:  spatialmath.AxisAngleToQuat(r3.Vector{Z: goal[3]}),
		}

		if err := p.Reset(); err != nil {
			return err
		}
		if err := ctrl.Reset(); err != nil {
			return err
		}

		command := mat.NewDense(sc.NumEnvs, ctrl.ActionDim(), nil)
		for i := 0; i < sc.NumEnvs; i++ {
			target.CopyToRow(command.RawRowView(i))
		}
		if err := ctrl.SetCommand(command, nil); err != nil {
			return err
		}

		for s := 0; s < sc.StepsPerGoal; s++ {
			efforts, err := ctrl.Compute(snap)
			if err != nil {
				return err
			}
			if err := p.Step(efforts, sc.Dt); err != nil {
				return err
			}
		}

		var maxPos, maxOri float64
		for i := 0; i < sc.NumEnvs; i++ {
			pose := spatialmath.PoseFromRow(snap.EEPose.Row(i))
			posErr, oriErr := spatialmath.PoseError(pose, target)
			if n := posErr.Norm(); n > maxPos {
				maxPos = n
			}
			if n := oriErr.Norm(); n > maxOri {
				maxOri = n
			}
		}
		logger.Infow("goal phase complete",
			"goal", g,
			"maxPositionError", maxPos,
			"maxOrientationError", maxOri,
		)
	}
	return nil
}
