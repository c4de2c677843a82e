// Package estimator converts raw photodetector intensities into heart rate and
// blood oxygen estimates.
//
// Both formulas are simplified placeholders. SpO2 uses a linear model of the
// red/infrared ratio and heart rate is a fixed scaling of the infrared level;
// no beat detection (peak timing, autocorrelation) is performed.
package estimator

// Calibration constants of the linear SpO2 model: spo2 = A - B*R
const (
	SpO2A = 110.0
	SpO2B = 25.0

	SpO2Min = 70.0
	SpO2Max = 100.0
)

// HRScale converts an infrared intensity into a heart rate figure.
const HRScale = 0.0006862

// EstimateSpO2 returns the oxygen saturation for one intensity pair,
// clamped to [SpO2Min, SpO2Max]. A zero infrared reading has no defined
// ratio and yields 0.
func EstimateSpO2(ir, red float64) float64 {
	if ir == 0 {
		return 0
	}

	r := red / ir
	return clamp(SpO2A-SpO2B*r, SpO2Min, SpO2Max)
}

// EstimateHeartRate returns the placeholder heart rate for an infrared intensity.
func EstimateHeartRate(ir float64) float64 {
	return ir * HRScale
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
