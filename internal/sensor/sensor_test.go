package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSensor struct{ ir, red float64 }

func (f *fixedSensor) Init() error              { return nil }
func (f *fixedSensor) Read() (float64, float64) { return f.ir, f.red }

func TestSampler_FingerPresent(t *testing.T) {
	s := NewSampler(&fixedSensor{}, DefaultFingerThreshold)

	assert.True(t, s.FingerPresent(50000, 40000))
	assert.False(t, s.FingerPresent(50000, 9000), "red below threshold")
	assert.False(t, s.FingerPresent(9000, 50000), "ir below threshold")
	assert.False(t, s.FingerPresent(10000, 10000), "threshold is exclusive")
}

func TestSampler_DefaultThreshold(t *testing.T) {
	s := NewSampler(&fixedSensor{}, 0)
	assert.Equal(t, float64(DefaultFingerThreshold), s.Threshold())
}

func TestSampler_ReadPassesThrough(t *testing.T) {
	s := NewSampler(&fixedSensor{ir: 123, red: 456}, 1)
	ir, red := s.Read()
	assert.Equal(t, 123.0, ir)
	assert.Equal(t, 456.0, red)
}

func TestSim_FingerSchedule(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }

	cfg := DefaultSimConfig()
	cfg.FingerOn = 10 * time.Second
	cfg.FingerOff = 5 * time.Second

	sim := NewSim(cfg, clock)
	require.NoError(t, sim.Init())
	sampler := NewSampler(sim, DefaultFingerThreshold)

	now = now.Add(2 * time.Second)
	assert.True(t, sampler.FingerPresent(sim.Read()))

	now = now.Add(10 * time.Second) // 12s: inside the off period
	assert.False(t, sampler.FingerPresent(sim.Read()))

	now = now.Add(4 * time.Second) // 16s: next cycle
	assert.True(t, sampler.FingerPresent(sim.Read()))
}

func TestSim_ReadBeforeInit(t *testing.T) {
	sim := NewSim(DefaultSimConfig(), nil)
	ir, red := sim.Read()
	assert.Zero(t, ir)
	assert.Zero(t, red)
}

func TestSim_InitRejectsBadConfig(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.BPM = 0
	assert.Error(t, NewSim(cfg, nil).Init())

	cfg = DefaultSimConfig()
	cfg.IRLevel = 0
	assert.Error(t, NewSim(cfg, nil).Init())
}
