package services

import (
	"context"
	"log"
	"sync"
	"time"

	"iot-oximeter/internal/models"
	"iot-oximeter/internal/mqtt"
)

// MeasurementStore persists acknowledged readings
type MeasurementStore interface {
	SaveMeasurement(m *models.Measurement) error
	UpsertDevice(device *models.Device) error
}

// Acknowledger publishes confirmation events back to the node
type Acknowledger interface {
	Publish(topic, payload string) bool
}

// IngestServiceConfig holds configuration for the ingest service
type IngestServiceConfig struct {
	AckTopic    string // per-device pattern, e.g. "oximeter/{device_id}/ack"
	AckPayload  string
	ChannelSize int
}

// DefaultIngestServiceConfig returns default configuration
func DefaultIngestServiceConfig() IngestServiceConfig {
	return IngestServiceConfig{
		AckTopic:    "oximeter/{device_id}/ack",
		AckPayload:  "ok",
		ChannelSize: 100,
	}
}

// IngestService stores readings published by sensor nodes and confirms each
// stored reading on the node's acknowledgement topic
type IngestService struct {
	store MeasurementStore
	acker Acknowledger
	cfg   IngestServiceConfig

	// Input channel from the MQTT subscriber
	ReadingChan chan *models.Measurement

	mu      sync.Mutex
	devices map[string]*models.Device
}

// NewIngestService creates a new ingest service
func NewIngestService(store MeasurementStore, acker Acknowledger, cfg IngestServiceConfig) *IngestService {
	return &IngestService{
		store:       store,
		acker:       acker,
		cfg:         cfg,
		ReadingChan: make(chan *models.Measurement, cfg.ChannelSize),
		devices:     make(map[string]*models.Device),
	}
}

// Start processes readings until the context is cancelled or the channel closes
func (s *IngestService) Start(ctx context.Context) {
	log.Println("IngestService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("IngestService: Shutting down...")
			return
		case m, ok := <-s.ReadingChan:
			if !ok {
				log.Println("IngestService: Reading channel closed, shutting down...")
				return
			}
			s.processReading(m)
		}
	}
}

// processReading saves one reading and confirms it. A reading that could
// not be stored is not confirmed.
func (s *IngestService) processReading(m *models.Measurement) bool {
	if err := s.store.SaveMeasurement(m); err != nil {
		log.Printf("Error saving measurement from %s: %v", m.DeviceID, err)
		return false
	}

	log.Printf("Saved measurement: device=%s, heart_rate=%.1f, spo2=%.1f%%", m.DeviceID, m.HeartRate, m.SpO2)

	topic := mqtt.FormatTopic(s.cfg.AckTopic, m.DeviceID)
	if !s.acker.Publish(topic, s.cfg.AckPayload) {
		log.Printf("Error confirming measurement for %s on %s", m.DeviceID, topic)
	}

	s.registerDevice(m.DeviceID, m.Timestamp)
	return true
}

// registerDevice tracks a device and refreshes its registry row
func (s *IngestService) registerDevice(deviceID string, seen time.Time) {
	s.mu.Lock()
	device, ok := s.devices[deviceID]
	if !ok {
		device = &models.Device{DeviceID: deviceID, RegisteredAt: seen}
		s.devices[deviceID] = device
		log.Printf("IngestService: Now tracking device %s", deviceID)
	}
	device.LastSeen = seen
	device.MeasurementCount++
	snapshot := *device
	s.mu.Unlock()

	// Best effort - don't fail if registration fails
	if err := s.store.UpsertDevice(&snapshot); err != nil {
		log.Printf("Error registering device %s: %v", deviceID, err)
	}
}

// GetTrackedDevices returns all tracked device IDs
func (s *IngestService) GetTrackedDevices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]string, 0, len(s.devices))
	for deviceID := range s.devices {
		devices = append(devices, deviceID)
	}
	return devices
}
