package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newStore(t *testing.T, capacity int) (*RecordStore, *MemRegion) {
	t.Helper()
	region := NewMemRegion(RequiredSize(capacity))
	s, err := NewRecordStore(region, capacity, fixedNow(epoch))
	require.NoError(t, err)
	return s, region
}

func TestNewRecordStore_ErasedRegionIsEmpty(t *testing.T) {
	s, _ := newStore(t, DefaultMaxRecords)
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, DefaultMaxRecords, s.Capacity())
}

func TestNewRecordStore_CorruptCountIsEmpty(t *testing.T) {
	region := NewMemRegion(RequiredSize(5))
	require.NoError(t, region.Write(CountOffset, []byte{6, 0}))

	s, err := NewRecordStore(region, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestNewRecordStore_RegionTooSmall(t *testing.T) {
	_, err := NewRecordStore(NewMemRegion(RequiredSize(10)-1), 10, nil)
	assert.ErrorIs(t, err, ErrRegionTooSmall)

	_, err = NewRecordStore(NewMemRegion(64), 0, nil)
	assert.Error(t, err)
}

func TestAppend_Layout(t *testing.T) {
	s, region := newStore(t, 4)
	require.NoError(t, s.Append("75.0,98.5"))

	raw, err := region.Read(0, RequiredSize(1))
	require.NoError(t, err)

	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(raw[CountOffset:]))
	assert.Equal(t, uint32(epoch.Unix()), binary.LittleEndian.Uint32(raw[Base:]))
	assert.Equal(t, "75.0,98.5", string(raw[Base+4:Base+4+9]))
	assert.Equal(t, byte(0), raw[Base+4+9], "payload is NUL padded")
}

func TestAppendAt_KeepsCaptureTime(t *testing.T) {
	s, _ := newStore(t, 4)
	captured := epoch.Add(-time.Hour)
	require.NoError(t, s.AppendAt("75.0,98.5", captured))

	recs, err := s.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint32(captured.Unix()), recs[0].Timestamp)
	assert.Equal(t, time.Hour, recs[0].Age(epoch))
}

func TestAppend_PayloadTooLarge(t *testing.T) {
	s, _ := newStore(t, 4)
	err := s.Append("0123456789012345678901234")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, 0, s.Count())
}

func TestAppend_FullDropsIncoming(t *testing.T) {
	const capacity = 3
	s, _ := newStore(t, capacity)
	for i := 0; i < capacity; i++ {
		require.NoError(t, s.Append(fmt.Sprintf("%d.0,90.0", i)))
	}

	before, err := s.Records()
	require.NoError(t, err)

	assert.ErrorIs(t, s.Append("99.0,99.0"), ErrFull)
	assert.Equal(t, capacity, s.Count())

	after, err := s.Records()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAppend_CountNeverExceedsCapacity(t *testing.T) {
	s, region := newStore(t, 2)
	for i := 0; i < 10; i++ {
		_ = s.Append("1.0,90.0")
		assert.LessOrEqual(t, s.Count(), 2)
	}
	raw, err := region.Read(CountOffset, 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(raw))
}

func TestReplayAndClear_OrderAndReset(t *testing.T) {
	s, region := newStore(t, 10)
	for _, p := range []string{"1.0,91.0", "2.0,92.0", "3.0,93.0"} {
		require.NoError(t, s.Append(p))
	}

	var got []string
	n, err := s.ReplayAndClear(context.Background(), func(p string) bool {
		got = append(got, p)
		return true
	}, epoch, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1.0,91.0", "2.0,92.0", "3.0,93.0"}, got)
	assert.Equal(t, 0, s.Count())

	raw, err := region.Read(CountOffset, 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(raw))
}

func TestReplayAndClear_SkipsExpired(t *testing.T) {
	region := NewMemRegion(RequiredSize(10))
	clock := epoch
	s, err := NewRecordStore(region, 10, func() time.Time { return clock })
	require.NoError(t, err)

	require.NoError(t, s.Append("old"))
	clock = clock.Add(20 * time.Hour)
	require.NoError(t, s.Append("new"))

	replayAt := epoch.Add(25 * time.Hour) // "old" is 25h, "new" is 5h
	var got []string
	n, err := s.ReplayAndClear(context.Background(), func(p string) bool {
		got = append(got, p)
		return true
	}, replayAt, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"new"}, got)
	assert.Equal(t, 0, s.Count(), "expired record is removed too")
}

func TestReplayAndClear_MaxAgeIsInclusive(t *testing.T) {
	s, _ := newStore(t, 2)
	require.NoError(t, s.Append("edge"))

	n, err := s.ReplayAndClear(context.Background(), func(string) bool { return true }, epoch.Add(24*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplayAndClear_ClearsEvenOnTransportFailure(t *testing.T) {
	s, _ := newStore(t, 4)
	require.NoError(t, s.Append("1.0,90.0"))
	require.NoError(t, s.Append("2.0,90.0"))

	n, err := s.ReplayAndClear(context.Background(), func(string) bool { return false }, epoch, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, s.Count())
}

func TestReplayAndClear_CancelledKeepsBuffer(t *testing.T) {
	s, _ := newStore(t, 4)
	require.NoError(t, s.Append("1.0,90.0"))
	require.NoError(t, s.Append("2.0,90.0"))

	ctx, cancel := context.WithCancel(context.Background())
	n, err := s.ReplayAndClear(ctx, func(string) bool {
		cancel()
		return true
	}, epoch, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, s.Count())
}

func TestRecordStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.bin")

	region, err := OpenFileRegion(path, RequiredSize(8))
	require.NoError(t, err)
	s, err := NewRecordStore(region, 8, fixedNow(epoch))
	require.NoError(t, err)
	require.NoError(t, s.Append("75.0,98.5"))
	require.NoError(t, s.Append("80.0,97.0"))
	require.NoError(t, region.Close())

	region, err = OpenFileRegion(path, RequiredSize(8))
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })

	s, err = NewRecordStore(region, 8, fixedNow(epoch))
	require.NoError(t, err)
	require.Equal(t, 2, s.Count())

	recs, err := s.Records()
	require.NoError(t, err)
	assert.Equal(t, "75.0,98.5", recs[0].Payload)
	assert.Equal(t, "80.0,97.0", recs[1].Payload)
	assert.Equal(t, uint32(epoch.Unix()), recs[1].Timestamp)
}
