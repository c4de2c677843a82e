package mqtt

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes text payloads and reports plain success or failure,
// which is all the node's delivery logic needs from the transport
type Publisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	QoS     byte
	Timeout time.Duration // how long to wait for the broker to accept a publish
}

// NewPublisher creates a new MQTT publisher
func NewPublisher(client mqtt.Client, config PublisherConfig) *Publisher {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Publisher{
		client:  client,
		qos:     config.QoS,
		timeout: config.Timeout,
	}
}

// IsConnected reports whether the underlying connection is up
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends payload to topic and waits for the broker to accept it
func (p *Publisher) Publish(topic, payload string) bool {
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		log.Printf("MQTT Publisher: Timed out publishing to %s", topic)
		return false
	}
	if err := token.Error(); err != nil {
		log.Printf("MQTT Publisher: Failed to publish to %s: %v", topic, err)
		return false
	}
	return true
}
