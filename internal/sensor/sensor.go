package sensor

// Sensor abstracts the two-channel photodetector driver.
// Read returns a single instantaneous sample with no internal averaging.
type Sensor interface {
	Init() error
	Read() (ir, red float64)
}

// DefaultFingerThreshold is the reference presence threshold on an ~18-bit raw scale.
const DefaultFingerThreshold = 10000

// Sampler reads the sensor and decides whether a finger is on it.
// The threshold is fixed at construction, not adaptive.
type Sampler struct {
	sensor    Sensor
	threshold float64
}

// NewSampler creates a sampler over an initialised sensor
func NewSampler(s Sensor, threshold float64) *Sampler {
	if threshold <= 0 {
		threshold = DefaultFingerThreshold
	}
	return &Sampler{sensor: s, threshold: threshold}
}

// Read returns one raw (ir, red) pair
func (s *Sampler) Read() (ir, red float64) {
	return s.sensor.Read()
}

// FingerPresent reports whether both channels exceed the threshold.
// No finger is a normal reading, not an error.
func (s *Sampler) FingerPresent(ir, red float64) bool {
	return ir > s.threshold && red > s.threshold
}

// Threshold returns the configured presence threshold
func (s *Sampler) Threshold() float64 {
	return s.threshold
}
