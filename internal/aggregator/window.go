package aggregator

import (
	"errors"
	"time"

	"iot-oximeter/internal/estimator"
	"iot-oximeter/internal/models"
)

// ErrInsufficientSamples is returned when too few samples survived the discard window
var ErrInsufficientSamples = errors.New("unstable: insufficient samples")

// WindowConfig bounds one stability-filtered measurement
type WindowConfig struct {
	SampleWindow  time.Duration // total session length
	DiscardWindow time.Duration // warm-up excluded from the average
	MinSamples    int           // qualifying samples required for a reading
}

// Window accumulates heart rate and SpO2 estimates over one session.
// Samples taken during the discard window only prove liveness and are
// not averaged.
type Window struct {
	cfg     WindowConfig
	hrSum   float64
	spo2Sum float64
	count   int
}

// NewWindow creates an empty accumulator
func NewWindow(cfg WindowConfig) *Window {
	return &Window{cfg: cfg}
}

// Open reports whether a sample taken at elapsed still belongs to the session
func (w *Window) Open(elapsed time.Duration) bool {
	return elapsed < w.cfg.SampleWindow
}

// Add folds in a sample taken elapsed after the session started.
// It returns true if the sample counted towards the average.
func (w *Window) Add(elapsed time.Duration, ir, red float64) bool {
	if elapsed <= w.cfg.DiscardWindow {
		return false
	}
	w.hrSum += estimator.EstimateHeartRate(ir)
	w.spo2Sum += estimator.EstimateSpO2(ir, red)
	w.count++
	return true
}

// Count returns the number of qualifying samples so far
func (w *Window) Count() int { return w.count }

// Reading returns the averaged reading, or ErrInsufficientSamples
func (w *Window) Reading() (models.Reading, error) {
	if w.count < w.cfg.MinSamples || w.count == 0 {
		return models.Reading{}, ErrInsufficientSamples
	}
	n := float64(w.count)
	return models.Reading{
		HeartRate: w.hrSum / n,
		SpO2:      w.spo2Sum / n,
	}, nil
}
