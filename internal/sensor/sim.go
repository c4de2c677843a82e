package sensor

import (
	"errors"
	"math"
	"time"
)

// SimConfig describes the synthetic photoplethysmogram produced by Sim
type SimConfig struct {
	IRLevel   float64 // DC level of the infrared channel with a finger on
	RedLevel  float64 // DC level of the red channel with a finger on
	Amplitude float64 // pulsatile component, fraction of the DC level
	BPM       float64
	Ambient   float64 // level of both channels with no finger

	// Finger schedule: present for FingerOn, then absent for FingerOff.
	// FingerOff == 0 keeps the finger on forever.
	FingerOn  time.Duration
	FingerOff time.Duration
}

// DefaultSimConfig returns a healthy-looking signal with a finger always present
func DefaultSimConfig() SimConfig {
	return SimConfig{
		IRLevel:   50000,
		RedLevel:  40000,
		Amplitude: 0.02,
		BPM:       72,
		Ambient:   800,
		FingerOn:  time.Minute,
	}
}

// Sim is a deterministic stand-in for the optical sensor driver.
// It is not clinical; it only has to look like a finger to the sampler.
type Sim struct {
	cfg   SimConfig
	now   func() time.Time
	start time.Time
	ready bool
}

// NewSim creates a simulator driven by the given time source
func NewSim(cfg SimConfig, now func() time.Time) *Sim {
	if now == nil {
		now = time.Now
	}
	return &Sim{cfg: cfg, now: now}
}

// Init validates the configuration and starts the finger schedule
func (s *Sim) Init() error {
	if s.cfg.IRLevel <= 0 || s.cfg.RedLevel <= 0 {
		return errors.New("sensor sim: channel levels must be > 0")
	}
	if s.cfg.BPM <= 0 {
		return errors.New("sensor sim: bpm must be > 0")
	}
	if s.cfg.FingerOff > 0 && s.cfg.FingerOn <= 0 {
		return errors.New("sensor sim: finger-on period must be > 0 when finger-off is set")
	}
	s.start = s.now()
	s.ready = true
	return nil
}

// Read returns the current synthetic sample
func (s *Sim) Read() (ir, red float64) {
	if !s.ready {
		return 0, 0
	}

	elapsed := s.now().Sub(s.start)
	if !s.fingerOn(elapsed) {
		return s.cfg.Ambient, s.cfg.Ambient
	}

	// pulse plus a small deterministic ripple
	phase := 2 * math.Pi * s.cfg.BPM / 60 * elapsed.Seconds()
	pulse := s.cfg.Amplitude * math.Sin(phase)
	ripple := 0.002 * math.Sin(7.3*phase)

	ir = s.cfg.IRLevel * (1 + pulse + ripple)
	red = s.cfg.RedLevel * (1 + 0.8*pulse + ripple)
	return ir, red
}

func (s *Sim) fingerOn(elapsed time.Duration) bool {
	if s.cfg.FingerOff <= 0 {
		return true
	}
	cycle := s.cfg.FingerOn + s.cfg.FingerOff
	return elapsed%cycle < s.cfg.FingerOn
}
