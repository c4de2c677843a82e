package delivery

import (
	"context"
	"errors"
	"log"
	"time"

	"iot-oximeter/internal/clock"
	"iot-oximeter/internal/models"
	"iot-oximeter/internal/storage"
)

// Outcome is the result of handing one reading to the controller
type Outcome int

const (
	// Delivered means the reading was published and awaits confirmation
	Delivered Outcome = iota
	// Buffered means the reading was stored for later replay
	Buffered
	// Dropped means the reading was lost because the buffer was full or unwritable
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Buffered:
		return "buffered"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Transport is the publish side of the network link
type Transport interface {
	IsConnected() bool
	Publish(topic, payload string) bool
}

// Store is the durable buffer of undelivered payloads
type Store interface {
	AppendAt(payload string, capturedAt time.Time) error
	Count() int
	ReplayAndClear(ctx context.Context, publish func(payload string) bool, now time.Time, maxAge time.Duration) (int, error)
}

// Config holds delivery settings
type Config struct {
	Topic        string        // readings topic, already resolved for this device
	MaxRecordAge time.Duration // older buffered records are discarded on replay
	ReplayPacing time.Duration // gap between consecutive replayed publishes
}

// DefaultConfig returns the reference delivery settings
func DefaultConfig() Config {
	return Config{
		MaxRecordAge: 24 * time.Hour,
		ReplayPacing: 1100 * time.Millisecond,
	}
}

// Controller publishes readings when online and buffers them otherwise
type Controller struct {
	cfg       Config
	transport Transport
	store     Store
	clock     clock.Clock
}

// NewController creates a delivery controller
func NewController(cfg Config, transport Transport, store Store, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	return &Controller{cfg: cfg, transport: transport, store: store, clock: clk}
}

// Deliver publishes the reading if connected. A failed publish is treated
// like being offline and the reading is buffered instead.
func (c *Controller) Deliver(reading models.Reading, connected bool) Outcome {
	payload := models.FormatPayload(reading)

	if connected {
		if c.transport.Publish(c.cfg.Topic, payload) {
			log.Printf("Delivery: published %s to %s", payload, c.cfg.Topic)
			return Delivered
		}
		log.Printf("Delivery: publish of %s failed, buffering", payload)
	}

	return c.Buffer(payload, c.clock.Now())
}

// Buffer appends payload to the durable store, stamped with capturedAt
func (c *Controller) Buffer(payload string, capturedAt time.Time) Outcome {
	if err := c.store.AppendAt(payload, capturedAt); err != nil {
		if errors.Is(err, storage.ErrFull) {
			log.Printf("Delivery: buffer full, dropping reading %s", payload)
		} else {
			log.Printf("Delivery: failed to buffer reading %s: %v", payload, err)
		}
		return Dropped
	}

	log.Printf("Delivery: buffered reading %s (%d pending)", payload, c.store.Count())
	return Buffered
}

// Pending returns the number of buffered readings
func (c *Controller) Pending() int {
	return c.store.Count()
}

// Replay sends every buffered reading, paced to respect downstream rate
// limits, and clears the buffer.
func (c *Controller) Replay(ctx context.Context) (int, error) {
	pending := c.store.Count()
	if pending == 0 {
		return 0, nil
	}
	log.Printf("Delivery: replaying %d buffered readings", pending)

	first := true
	publish := func(payload string) bool {
		if !first {
			if err := c.clock.Sleep(ctx, c.cfg.ReplayPacing); err != nil {
				return false
			}
		}
		first = false
		return c.transport.Publish(c.cfg.Topic, payload)
	}

	return c.store.ReplayAndClear(ctx, publish, c.clock.Now(), c.cfg.MaxRecordAge)
}
