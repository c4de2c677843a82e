package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceConfig() WindowConfig {
	return WindowConfig{
		SampleWindow:  15 * time.Second,
		DiscardWindow: 5 * time.Second,
		MinSamples:    10,
	}
}

func TestWindow_DiscardsWarmup(t *testing.T) {
	w := NewWindow(referenceConfig())

	assert.False(t, w.Add(0, 50000, 40000))
	assert.False(t, w.Add(5*time.Second, 50000, 40000), "discard boundary is inclusive")
	assert.True(t, w.Add(5*time.Second+time.Millisecond, 50000, 40000))
	assert.Equal(t, 1, w.Count())
}

func TestWindow_Open(t *testing.T) {
	w := NewWindow(referenceConfig())
	assert.True(t, w.Open(14999*time.Millisecond))
	assert.False(t, w.Open(15*time.Second))
}

func TestWindow_Average(t *testing.T) {
	w := NewWindow(referenceConfig())
	for i := 0; i < 10; i++ {
		w.Add(6*time.Second, 50000, 40000)
	}

	r, err := w.Reading()
	require.NoError(t, err)
	assert.InDelta(t, 90.0, r.SpO2, 1e-9)
	assert.InDelta(t, 34.31, r.HeartRate, 1e-9)
}

func TestWindow_AveragesMixedSamples(t *testing.T) {
	cfg := referenceConfig()
	cfg.MinSamples = 2
	w := NewWindow(cfg)

	w.Add(6*time.Second, 50000, 40000) // 90
	w.Add(7*time.Second, 40000, 40000) // 85

	r, err := w.Reading()
	require.NoError(t, err)
	assert.InDelta(t, 87.5, r.SpO2, 1e-9)
}

func TestWindow_InsufficientSamples(t *testing.T) {
	w := NewWindow(referenceConfig())
	for i := 0; i < 9; i++ {
		w.Add(6*time.Second, 50000, 40000)
	}

	_, err := w.Reading()
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestWindow_ZeroMinimumStillNeedsOneSample(t *testing.T) {
	cfg := referenceConfig()
	cfg.MinSamples = 0
	_, err := NewWindow(cfg).Reading()
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}
