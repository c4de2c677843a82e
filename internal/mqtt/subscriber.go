package mqtt

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"iot-oximeter/internal/models"
)

// ConfirmationSubscriber forwards ingestion acknowledgements to the session.
// Any message on the confirmation topic counts as one confirmation.
type ConfirmationSubscriber struct {
	client    *Client
	topic     string
	onConfirm func()
}

// NewConfirmationSubscriber creates a subscriber for the node's ack topic
func NewConfirmationSubscriber(client *Client, topic string, onConfirm func()) *ConfirmationSubscriber {
	return &ConfirmationSubscriber{client: client, topic: topic, onConfirm: onConfirm}
}

// Subscribe registers the confirmation handler
func (s *ConfirmationSubscriber) Subscribe() error {
	if err := s.client.Subscribe(s.topic, 1, s.handleConfirmation); err != nil {
		return fmt.Errorf("failed to subscribe to confirmation topic: %w", err)
	}
	log.Printf("Subscribed to confirmation topic: %s", s.topic)
	return nil
}

func (s *ConfirmationSubscriber) handleConfirmation(client mqtt.Client, msg mqtt.Message) {
	log.Printf("Received confirmation on %s: %q", msg.Topic(), string(msg.Payload()))
	s.onConfirm()
}

// Subscriber handles reading subscriptions on the ingestion side and writes
// parsed measurements to a channel
type Subscriber struct {
	client *Client

	// Output channel (written by subscriber, read by the ingest service)
	ReadingChan chan *models.Measurement

	// Topic pattern, e.g. "oximeter/{device_id}/reading"
	readingTopic string
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	ReadingTopic string
}

// NewSubscriber creates a new MQTT reading subscriber
func NewSubscriber(client *Client, config SubscriberConfig, readingChan chan *models.Measurement) *Subscriber {
	return &Subscriber{
		client:       client,
		ReadingChan:  readingChan,
		readingTopic: config.ReadingTopic,
	}
}

// SubscribeAll subscribes to readings from every device
func (s *Subscriber) SubscribeAll() error {
	topic := SubscriptionTopic(s.readingTopic)
	if err := s.client.Subscribe(topic, 1, s.handleReading); err != nil {
		return fmt.Errorf("failed to subscribe to reading topic: %w", err)
	}
	log.Printf("Subscribed to reading topic: %s", topic)
	return nil
}

// handleReading parses a "<hr>,<spo2>" payload and writes it to the channel
func (s *Subscriber) handleReading(client mqtt.Client, msg mqtt.Message) {
	m, err := s.parseMessage(msg.Topic(), msg.Payload())
	if err != nil {
		log.Printf("Error parsing reading: %v", err)
		return
	}

	log.Printf("Received reading from %s: heart_rate=%.1f spo2=%.1f%%", m.DeviceID, m.HeartRate, m.SpO2)

	// Write to channel (non-blocking with timeout)
	select {
	case s.ReadingChan <- m:
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Reading channel full, dropping message from %s", m.DeviceID)
	}
}

func (s *Subscriber) parseMessage(topic string, payload []byte) (*models.Measurement, error) {
	deviceID := ExtractDeviceID(topic, s.readingTopic)
	if deviceID == "" {
		return nil, fmt.Errorf("could not extract device ID from topic: %s", topic)
	}

	reading, err := models.ParsePayload(string(payload))
	if err != nil {
		return nil, err
	}

	// Generate timestamp server-side
	return &models.Measurement{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		DeviceID:   deviceID,
		HeartRate:  reading.HeartRate,
		SpO2:       reading.SpO2,
		RawPayload: string(payload),
	}, nil
}
