package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"iot-oximeter/internal/aggregator"
	"iot-oximeter/internal/clock"
	"iot-oximeter/internal/delivery"
	"iot-oximeter/internal/models"
)

var (
	// ErrFingerRemoved aborts a measurement when contact is lost mid-window
	ErrFingerRemoved = errors.New("unstable: finger removed")
	// ErrInsufficientSamples fails a measurement with too few post-discard samples
	ErrInsufficientSamples = aggregator.ErrInsufficientSamples
)

// State of the measurement session
type State int

const (
	Idle State = iota
	Requesting
	Measuring
	AwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Measuring:
		return "measuring"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sampler reads the optical sensor
type Sampler interface {
	Read() (ir, red float64)
	FingerPresent(ir, red float64) bool
}

// Deliverer hands completed readings to the network or the buffer
type Deliverer interface {
	Deliver(reading models.Reading, connected bool) delivery.Outcome
	Buffer(payload string, capturedAt time.Time) delivery.Outcome
}

// Link reports network connectivity
type Link interface {
	IsConnected() bool
}

// Indicator signals the user to present a finger
type Indicator interface {
	Prompt(on bool)
}

// Stats counts session outcomes since boot
type Stats struct {
	Requests  int
	Timeouts  int
	Aborted   int
	Completed int
	Delivered int
	Buffered  int
	Dropped   int
	Confirmed int
}

// Snapshot is a point-in-time view of the machine
type Snapshot struct {
	State       State
	LastReading *models.Reading
	LastError   error
	Stats       Stats
}

// Machine is the cooperative session controller. Tick must be called from a
// single goroutine; Confirm may be called from any goroutine.
type Machine struct {
	cfg       Config
	sampler   Sampler
	deliverer Deliverer
	link      Link
	indicator Indicator
	clock     clock.Clock

	state           State
	lastMeasurement time.Time
	requestStart    time.Time

	// Measuring sub-state
	measureStart time.Time
	nextSample   time.Time
	window       *aggregator.Window

	// AwaitingConfirmation sub-state
	awaitStart      time.Time
	pendingPayload  string
	pendingCaptured time.Time

	confirmCh chan struct{}

	lastReading *models.Reading
	lastErr     error
	stats       Stats
}

// New creates a machine in Idle. The measurement interval is counted from now.
func New(cfg Config, sampler Sampler, deliverer Deliverer, link Link, indicator Indicator, clk clock.Clock) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil || deliverer == nil || link == nil {
		return nil, errors.New("session: sampler, deliverer and link are required")
	}
	if indicator == nil {
		indicator = LogIndicator{}
	}
	if clk == nil {
		clk = clock.Real()
	}

	return &Machine{
		cfg:             cfg,
		sampler:         sampler,
		deliverer:       deliverer,
		link:            link,
		indicator:       indicator,
		clock:           clk,
		state:           Idle,
		lastMeasurement: clk.Now(),
		confirmCh:       make(chan struct{}, 1),
	}, nil
}

// State returns the current state
func (m *Machine) State() State { return m.state }

// Confirm records a confirmation event from the ingestion side. It never
// blocks; several confirmations before the next tick count as one.
func (m *Machine) Confirm() {
	select {
	case m.confirmCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the current state, last reading and counters
func (m *Machine) Snapshot() Snapshot {
	snap := Snapshot{State: m.state, LastError: m.lastErr, Stats: m.stats}
	if m.lastReading != nil {
		r := *m.lastReading
		snap.LastReading = &r
	}
	return snap
}

// Tick advances the machine by at most one transition and returns the
// resulting state. In Blocking mode a tick in Measuring runs the full
// sampling window.
func (m *Machine) Tick(ctx context.Context) State {
	confirmed := m.takeConfirmation()
	if confirmed && m.state != AwaitingConfirmation {
		log.Printf("Session: ignoring confirmation received while %s", m.state)
	}

	now := m.clock.Now()

	switch m.state {
	case Idle:
		if now.Sub(m.lastMeasurement) >= m.cfg.MeasurementInterval {
			m.arm(now)
		}

	case Requesting:
		if now.Sub(m.requestStart) >= m.cfg.RequestTimeout {
			m.stats.Timeouts++
			log.Printf("Session: no finger within %v, giving up", m.cfg.RequestTimeout)
			m.indicator.Prompt(false)
			m.transition(Idle)
			break
		}
		if m.sampler.FingerPresent(m.sampler.Read()) {
			m.indicator.Prompt(false)
			m.beginMeasuring(now)
		}

	case Measuring:
		if m.cfg.Mode == Yielding {
			m.stepMeasurement(now)
		} else {
			reading, err := m.measureBlocking(ctx)
			m.finishMeasurement(reading, err)
		}

	case AwaitingConfirmation:
		if confirmed {
			m.stats.Confirmed++
			log.Println("Session: reading confirmed by ingestion")
			m.pendingPayload = ""
			m.transition(Idle)
			break
		}
		if m.cfg.ConfirmationTimeout > 0 && now.Sub(m.awaitStart) >= m.cfg.ConfirmationTimeout {
			log.Printf("Session: no confirmation within %v, buffering %s", m.cfg.ConfirmationTimeout, m.pendingPayload)
			m.countOutcome(m.deliverer.Buffer(m.pendingPayload, m.pendingCaptured))
			m.pendingPayload = ""
			m.transition(Idle)
		}
	}

	return m.state
}

func (m *Machine) takeConfirmation() bool {
	select {
	case <-m.confirmCh:
		return true
	default:
		return false
	}
}

func (m *Machine) arm(now time.Time) {
	m.lastMeasurement = now
	m.requestStart = now
	m.stats.Requests++
	log.Println("Session: measurement due, please place a finger on the sensor")
	m.indicator.Prompt(true)
	m.transition(Requesting)
}

func (m *Machine) beginMeasuring(now time.Time) {
	m.measureStart = now
	m.nextSample = now
	m.window = aggregator.NewWindow(aggregator.WindowConfig{
		SampleWindow:  m.cfg.SampleWindow,
		DiscardWindow: m.cfg.DiscardWindow,
		MinSamples:    m.cfg.MinQualifyingSamples,
	})
	m.transition(Measuring)
}

// measureBlocking polls the sensor every SampleSpacing until the window closes.
func (m *Machine) measureBlocking(ctx context.Context) (models.Reading, error) {
	for {
		elapsed := m.clock.Now().Sub(m.measureStart)
		if !m.window.Open(elapsed) {
			break
		}

		ir, red := m.sampler.Read()
		if !m.sampler.FingerPresent(ir, red) {
			return models.Reading{}, ErrFingerRemoved
		}
		m.window.Add(elapsed, ir, red)

		if err := m.clock.Sleep(ctx, m.cfg.SampleSpacing); err != nil {
			return models.Reading{}, err
		}
	}
	return m.window.Reading()
}

// stepMeasurement takes at most one sample, completing the session once the
// window has elapsed.
func (m *Machine) stepMeasurement(now time.Time) {
	elapsed := now.Sub(m.measureStart)
	if !m.window.Open(elapsed) {
		m.finishMeasurement(m.window.Reading())
		return
	}
	if now.Before(m.nextSample) {
		return
	}

	ir, red := m.sampler.Read()
	if !m.sampler.FingerPresent(ir, red) {
		m.finishMeasurement(models.Reading{}, ErrFingerRemoved)
		return
	}
	m.window.Add(elapsed, ir, red)
	m.nextSample = now.Add(m.cfg.SampleSpacing)
}

func (m *Machine) finishMeasurement(reading models.Reading, err error) {
	m.window = nil
	m.lastErr = err

	if err != nil {
		m.stats.Aborted++
		log.Printf("Session: measurement failed: %v", err)
		m.transition(Idle)
		return
	}

	m.stats.Completed++
	m.lastReading = &reading
	log.Printf("Session: measurement complete: heart_rate=%.1f spo2=%.1f", reading.HeartRate, reading.SpO2)

	// An ack queued while measuring belongs to an earlier publish, not this one.
	if m.takeConfirmation() {
		log.Println("Session: discarding confirmation received while measuring")
	}

	captured := m.clock.Now()
	outcome := m.deliverer.Deliver(reading, m.link.IsConnected())
	m.countOutcome(outcome)

	if outcome == delivery.Delivered {
		m.awaitStart = m.clock.Now()
		m.pendingPayload = models.FormatPayload(reading)
		m.pendingCaptured = captured
		m.transition(AwaitingConfirmation)
		return
	}
	m.transition(Idle)
}

func (m *Machine) countOutcome(o delivery.Outcome) {
	switch o {
	case delivery.Delivered:
		m.stats.Delivered++
	case delivery.Buffered:
		m.stats.Buffered++
	case delivery.Dropped:
		m.stats.Dropped++
	}
}

func (m *Machine) transition(to State) {
	if m.state == to {
		return
	}
	log.Printf("Session: %s -> %s", m.state, to)
	m.state = to
}

// LogIndicator signals the finger prompt through the log
type LogIndicator struct{}

func (LogIndicator) Prompt(on bool) {
	if on {
		log.Println("Indicator: prompt ON")
		return
	}
	log.Println("Indicator: prompt OFF")
}
