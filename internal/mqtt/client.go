package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client manages the MQTT connection (low-level connection management only)
// For subscribing and publishing, use the subscribers and Publisher
type Client struct {
	client mqtt.Client
	config ClientConfig

	// Subscriptions are replayed on every (re)connect
	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler mqtt.MessageHandler
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// ConnectRetry keeps retrying the initial connection in the background
	// instead of failing. The node uses this: no broker at boot is just the
	// offline branch.
	ConnectRetry   bool
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// NewClient creates a new MQTT client connection
func NewClient(config ClientConfig) (*Client, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	c := &Client{
		config: config,
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(config.ConnectTimeout)
	if config.ConnectRetry {
		opts.SetConnectRetry(true)
		if config.RetryInterval > 0 {
			opts.SetConnectRetryInterval(config.RetryInterval)
		}
	}

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if config.ConnectRetry {
		// with retry enabled the token only completes once connected
		if !token.WaitTimeout(config.ConnectTimeout) {
			log.Printf("MQTT Client: Broker %s not reachable yet, retrying in background", config.Broker)
			return c, nil
		}
	} else {
		token.Wait()
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Println("MQTT Client: Connected to broker:", config.Broker)
	return c, nil
}

// GetNativeClient returns the underlying paho MQTT client
func (c *Client) GetNativeClient() mqtt.Client {
	return c.client
}

// IsConnected reports whether the connection is currently up.
// A client in the middle of reconnecting counts as disconnected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Subscribe registers handler for topic. The subscription is made now if
// the client is connected and repeated after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		log.Printf("MQTT Client: Offline, subscription to %s deferred until connected", topic)
		return nil
	}
	return c.subscribe(c.client, topic, subscription{qos: qos, handler: handler})
}

func (c *Client) subscribe(client mqtt.Client, topic string, sub subscription) error {
	token := client.Subscribe(topic, sub.qos, sub.handler)
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Println("MQTT Client: Disconnected")
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Println("MQTT: Connection established")

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	// paho calls this on its own goroutine; waiting on tokens here is fine
	for topic, sub := range subs {
		if err := c.subscribe(client, topic, sub); err != nil {
			log.Printf("MQTT: Resubscribe failed: %v", err)
			continue
		}
		log.Printf("MQTT: Subscribed to %s", topic)
	}
}

// Connection event handlers
var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Printf("MQTT: Received message from topic: %s", msg.Topic())
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("MQTT: Connection lost: %v", err)
}
