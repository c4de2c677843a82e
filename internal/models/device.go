package models

import "time"

// Device represents a sensor node known to the ingestion side
type Device struct {
	DeviceID         string    `json:"device_id"`
	RegisteredAt     time.Time `json:"registered_at"`
	LastSeen         time.Time `json:"last_seen"`
	MeasurementCount uint64    `json:"measurement_count"`
}
