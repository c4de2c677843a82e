package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPayload is returned when a reading payload is not "<hr>,<spo2>"
var ErrMalformedPayload = errors.New("malformed reading payload")

// Reading represents one completed, stability-filtered measurement
type Reading struct {
	HeartRate float64 `json:"heart_rate"` // beats per minute (placeholder estimate)
	SpO2      float64 `json:"spo2"`       // percentage 70-100
}

// Record is a buffered reading that has not been delivered yet
type Record struct {
	Timestamp uint32 // epoch seconds at capture
	Payload   string // wire payload, at most 24 bytes
}

// Age returns how old the record is relative to now
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(int64(r.Timestamp), 0))
}

// Measurement is a reading as stored by the ingestion side
type Measurement struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"device_id"`
	HeartRate  float64   `json:"heart_rate"`
	SpO2       float64   `json:"spo2"`
	RawPayload string    `json:"raw_payload"`
}

// FormatPayload renders a reading in the wire format "<heart_rate>,<spo2>"
// with one decimal place each, e.g. "75.0,98.5".
func FormatPayload(r Reading) string {
	return strconv.FormatFloat(r.HeartRate, 'f', 1, 64) + "," +
		strconv.FormatFloat(r.SpO2, 'f', 1, 64)
}

// ParsePayload is the inverse of FormatPayload
func ParsePayload(payload string) (Reading, error) {
	hr, spo2, ok := strings.Cut(strings.TrimSpace(payload), ",")
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}

	heartRate, err := strconv.ParseFloat(hr, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: heart rate %q", ErrMalformedPayload, hr)
	}
	sat, err := strconv.ParseFloat(spo2, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: spo2 %q", ErrMalformedPayload, spo2)
	}

	return Reading{HeartRate: heartRate, SpO2: sat}, nil
}
