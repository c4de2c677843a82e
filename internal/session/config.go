package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SamplingMode selects how the Measuring state uses the control loop
type SamplingMode int

const (
	// Blocking runs the whole sampling window inside one tick
	Blocking SamplingMode = iota
	// Yielding takes at most one sample per tick
	Yielding
)

func (m SamplingMode) String() string {
	if m == Yielding {
		return "yielding"
	}
	return "blocking"
}

// ParseSamplingMode parses "blocking" or "yielding"
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blocking":
		return Blocking, nil
	case "yielding":
		return Yielding, nil
	default:
		return Blocking, fmt.Errorf("unknown sampling mode %q", s)
	}
}

// Config holds the timing of a measurement session
type Config struct {
	MeasurementInterval  time.Duration
	RequestTimeout       time.Duration
	SampleWindow         time.Duration
	DiscardWindow        time.Duration
	SampleSpacing        time.Duration
	MinQualifyingSamples int
	Mode                 SamplingMode

	// ConfirmationTimeout bounds AwaitingConfirmation. Zero waits forever;
	// otherwise the unconfirmed reading is buffered for replay on expiry.
	ConfirmationTimeout time.Duration
}

// DefaultConfig returns the reference session timing
func DefaultConfig() Config {
	return Config{
		MeasurementInterval:  10 * time.Minute,
		RequestTimeout:       5 * time.Minute,
		SampleWindow:         15 * time.Second,
		DiscardWindow:        5 * time.Second,
		SampleSpacing:        200 * time.Millisecond,
		MinQualifyingSamples: 10,
		Mode:                 Blocking,
	}
}

// Validate checks the session timing for consistency
func (c Config) Validate() error {
	switch {
	case c.MeasurementInterval < 0:
		return errors.New("session: measurement interval must be >= 0")
	case c.RequestTimeout <= 0:
		return errors.New("session: request timeout must be > 0")
	case c.SampleWindow <= 0:
		return errors.New("session: sample window must be > 0")
	case c.DiscardWindow < 0 || c.DiscardWindow >= c.SampleWindow:
		return fmt.Errorf("session: discard window %v must be within sample window %v", c.DiscardWindow, c.SampleWindow)
	case c.SampleSpacing <= 0:
		return errors.New("session: sample spacing must be > 0")
	case c.MinQualifyingSamples < 1:
		return errors.New("session: min qualifying samples must be >= 1")
	case c.ConfirmationTimeout < 0:
		return errors.New("session: confirmation timeout must be >= 0")
	}
	return nil
}
