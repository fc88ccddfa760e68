package osc

import "math"

// scheduleGains fills the per-axis proportional and derivative gains for one
// environment. Commanded gains are read from the tail of the command row and
// silently clamped into their configured limits; the derivative gain is always
// derived as kd = 2*sqrt(kp)*dampingRatio.
func (r *resolvedConfig) scheduleGains(cmdRow, kp, kd []float64) {
	switch r.impedanceMode {
	case ImpedanceVariableKp:
		tail := cmdRow[r.gainsOffset:]
		for i := 0; i < numAxes; i++ {
			kp[i] = clamp(tail[i], r.kpLimits)
			kd[i] = 2 * math.Sqrt(kp[i]) * r.dampingRatio[i]
		}
	case ImpedanceVariable:
		tail := cmdRow[r.gainsOffset:]
		for i := 0; i < numAxes; i++ {
			kp[i] = clamp(tail[i], r.kpLimits)
			ratio := clamp(tail[numAxes+i], r.ratioLimits)
			kd[i] = 2 * math.Sqrt(kp[i]) * ratio
		}
	default:
		for i := 0; i < numAxes; i++ {
			kp[i] = r.stiffness[i]
			kd[i] = 2 * math.Sqrt(kp[i]) * r.dampingRatio[i]
		}
	}
}

func clamp(v float64, l Limits) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}
