package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-oximeter/internal/clock"
	"iot-oximeter/internal/models"
	"iot-oximeter/internal/storage"
)

type publishCall struct {
	topic, payload string
	at             time.Time
}

type fakeTransport struct {
	connected bool
	fail      bool
	clock     clock.Clock
	calls     []publishCall
}

func (f *fakeTransport) IsConnected() bool { return f.connected }

func (f *fakeTransport) Publish(topic, payload string) bool {
	f.calls = append(f.calls, publishCall{topic: topic, payload: payload, at: f.clock.Now()})
	return !f.fail
}

var start = time.Unix(1_700_000_000, 0)

func setup(t *testing.T, capacity int) (*Controller, *fakeTransport, *storage.RecordStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(start)
	store, err := storage.NewRecordStore(storage.NewMemRegion(storage.RequiredSize(capacity)), capacity, clk.Now)
	require.NoError(t, err)

	tr := &fakeTransport{clock: clk}
	cfg := DefaultConfig()
	cfg.Topic = "oximeter/node-1/reading"
	return NewController(cfg, tr, store, clk), tr, store, clk
}

var reading = models.Reading{HeartRate: 75, SpO2: 98.5}

func TestDeliver_Connected(t *testing.T) {
	c, tr, store, _ := setup(t, 4)

	assert.Equal(t, Delivered, c.Deliver(reading, true))
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "oximeter/node-1/reading", tr.calls[0].topic)
	assert.Equal(t, "75.0,98.5", tr.calls[0].payload)
	assert.Equal(t, 0, store.Count())
}

func TestDeliver_PublishFailureBuffers(t *testing.T) {
	c, tr, store, _ := setup(t, 4)
	tr.fail = true

	assert.Equal(t, Buffered, c.Deliver(reading, true))
	assert.Equal(t, 1, store.Count())
}

func TestDeliver_OfflineBuffersUntilFull(t *testing.T) {
	const capacity = 5
	c, tr, store, _ := setup(t, capacity)

	for i := 0; i < capacity-1; i++ {
		require.NoError(t, store.Append("60.0,95.0"))
	}

	assert.Equal(t, Buffered, c.Deliver(reading, false))
	assert.Equal(t, capacity, store.Count())

	assert.Equal(t, Dropped, c.Deliver(reading, false))
	assert.Equal(t, capacity, store.Count())
	assert.Empty(t, tr.calls, "offline delivery never touches the transport")
}

func TestBuffer_StampsCaptureTime(t *testing.T) {
	c, _, store, clk := setup(t, 4)
	captured := clk.Now()
	clk.Advance(10 * time.Minute)

	assert.Equal(t, Buffered, c.Buffer("75.0,98.5", captured))
	recs, err := store.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(captured.Unix()), recs[0].Timestamp)
}

func TestReplay_PacedAndOrdered(t *testing.T) {
	c, tr, store, clk := setup(t, 8)
	for _, p := range []string{"1.0,91.0", "2.0,92.0", "3.0,93.0"} {
		require.NoError(t, store.Append(p))
	}
	tr.connected = true

	n, err := c.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.Pending())

	require.Len(t, tr.calls, 3)
	assert.Equal(t, "1.0,91.0", tr.calls[0].payload)
	assert.Equal(t, "3.0,93.0", tr.calls[2].payload)
	assert.Equal(t, 1100*time.Millisecond, tr.calls[1].at.Sub(tr.calls[0].at))
	assert.Equal(t, 2200*time.Millisecond, clk.Slept())
}

func TestReplay_Empty(t *testing.T) {
	c, tr, _, clk := setup(t, 2)

	n, err := c.Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, tr.calls)
	assert.Zero(t, clk.Slept())
}

func TestReplay_DropsExpired(t *testing.T) {
	c, tr, store, clk := setup(t, 4)
	require.NoError(t, store.Append("old"))
	clk.Advance(25 * time.Hour)
	require.NoError(t, store.Append("new"))

	n, err := c.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "new", tr.calls[0].payload)
	assert.Equal(t, 0, store.Count())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "buffered", Buffered.String())
	assert.Equal(t, "dropped", Dropped.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
