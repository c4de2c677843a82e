// Package storage holds the power-loss-durable buffer of readings that could
// not be published.
//
// The byte layout below is a compatibility surface shared with existing
// device images and offline tooling; do not reorder it.
//
//	offset 0            count, little-endian uint16
//	offset 2            reserved
//	Base + i*RecordSize slot i: uint32 LE epoch seconds, 24 byte NUL-padded payload, 4 reserved
package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"time"

	"iot-oximeter/internal/models"
)

// Storage layout
const (
	CountOffset     = 0
	Base            = 4
	RecordSize      = 32
	PayloadSize     = 24
	timestampOffset = 0
	payloadOffset   = 4

	// DefaultMaxRecords is the reference capacity of the buffer
	DefaultMaxRecords = 300
	// MaxCapacity is the largest capacity the uint16 count can express
	MaxCapacity = 0xFFFE
)

var (
	ErrFull            = errors.New("record store full")
	ErrPayloadTooLarge = errors.New("payload exceeds record slot")
	ErrRegionTooSmall  = errors.New("region too small for record store")
)

// RequiredSize returns the region size needed for maxRecords slots
func RequiredSize(maxRecords int) int {
	return Base + maxRecords*RecordSize
}

// RecordStore is a fixed-capacity FIFO of pending payloads.
// It is not safe for concurrent use; the node's control loop owns it.
type RecordStore struct {
	region     Region
	maxRecords int
	count      int
	now        func() time.Time
}

// NewRecordStore loads the store from region. A stored count outside
// 0..maxRecords (erased or corrupt) is treated as an empty buffer.
func NewRecordStore(region Region, maxRecords int, now func() time.Time) (*RecordStore, error) {
	if maxRecords <= 0 || maxRecords > MaxCapacity {
		return nil, fmt.Errorf("record store: capacity must be 1..%d, got %d", MaxCapacity, maxRecords)
	}
	if region.Size() < RequiredSize(maxRecords) {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrRegionTooSmall, region.Size(), RequiredSize(maxRecords))
	}
	if now == nil {
		now = time.Now
	}

	s := &RecordStore{region: region, maxRecords: maxRecords, now: now}

	raw, err := region.Read(CountOffset, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to read record count: %w", err)
	}
	stored := int(binary.LittleEndian.Uint16(raw))
	if stored > maxRecords {
		log.Printf("RecordStore: stored count %d out of range (max %d), treating buffer as empty", stored, maxRecords)
		stored = 0
	}
	s.count = stored

	return s, nil
}

// Count returns the number of buffered records
func (s *RecordStore) Count() int { return s.count }

// Capacity returns the fixed number of slots
func (s *RecordStore) Capacity() int { return s.maxRecords }

// Append stores payload with the current timestamp. When the buffer is full
// the incoming record is dropped and ErrFull returned; existing records are
// never evicted.
func (s *RecordStore) Append(payload string) error {
	return s.AppendAt(payload, s.now())
}

// AppendAt is Append with an explicit capture time, so a reading buffered
// late still ages from when it was taken.
func (s *RecordStore) AppendAt(payload string, capturedAt time.Time) error {
	if len(payload) > PayloadSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), PayloadSize)
	}
	if s.count >= s.maxRecords {
		return ErrFull
	}

	slot := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(slot[timestampOffset:], uint32(capturedAt.Unix()))
	copy(slot[payloadOffset:payloadOffset+PayloadSize], payload)

	if err := s.region.Write(slotOffset(s.count), slot); err != nil {
		return fmt.Errorf("failed to write record slot %d: %w", s.count, err)
	}
	// count moves only after the slot is durable
	if err := s.writeCount(s.count + 1); err != nil {
		return err
	}
	s.count++
	return nil
}

// Records returns the buffered records, oldest first
func (s *RecordStore) Records() ([]models.Record, error) {
	out := make([]models.Record, 0, s.count)
	for i := 0; i < s.count; i++ {
		rec, err := s.readSlot(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReplayAndClear hands every record younger than maxAge to publish, oldest
// first, and then empties the buffer. Expired records are skipped but still
// removed. Publish results are not retried. If ctx is cancelled mid-pass the
// buffer is left intact so the next pass starts over.
func (s *RecordStore) ReplayAndClear(ctx context.Context, publish func(payload string) bool, now time.Time, maxAge time.Duration) (int, error) {
	delivered, expired, failed := 0, 0, 0

	for i := 0; i < s.count; i++ {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		rec, err := s.readSlot(i)
		if err != nil {
			return delivered, err
		}

		if rec.Age(now) > maxAge {
			expired++
			continue
		}

		if !publish(rec.Payload) {
			failed++
		}
		delivered++
	}

	// a pass interrupted inside the last publish is not complete either
	if err := ctx.Err(); err != nil {
		return delivered, err
	}

	if err := s.writeCount(0); err != nil {
		return delivered, err
	}
	s.count = 0

	log.Printf("RecordStore: replay complete (sent=%d, expired=%d, transport_failures=%d)", delivered, expired, failed)
	return delivered, nil
}

func (s *RecordStore) readSlot(i int) (models.Record, error) {
	raw, err := s.region.Read(slotOffset(i), RecordSize)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to read record slot %d: %w", i, err)
	}

	payload := raw[payloadOffset : payloadOffset+PayloadSize]
	if n := bytes.IndexByte(payload, 0); n >= 0 {
		payload = payload[:n]
	}

	return models.Record{
		Timestamp: binary.LittleEndian.Uint32(raw[timestampOffset:]),
		Payload:   string(payload),
	}, nil
}

func (s *RecordStore) writeCount(n int) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(n))
	if err := s.region.Write(CountOffset, buf); err != nil {
		return fmt.Errorf("failed to persist record count: %w", err)
	}
	return nil
}

func slotOffset(i int) int {
	return Base + i*RecordSize
}
