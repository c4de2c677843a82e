package services

import (
	"context"
	"log"
	"time"

	"iot-oximeter/internal/clock"
	"iot-oximeter/internal/session"
)

// SessionMachine is the part of session.Machine the node loop drives
type SessionMachine interface {
	Tick(ctx context.Context) session.State
	Snapshot() session.Snapshot
}

// Replayer flushes buffered readings once the link is back
type Replayer interface {
	Pending() int
	Replay(ctx context.Context) (int, error)
}

// Link reports network connectivity
type Link interface {
	IsConnected() bool
}

// NodeServiceConfig holds configuration for the node control loop
type NodeServiceConfig struct {
	LoopInterval   time.Duration // pause between iterations
	StatusInterval time.Duration // how often to log a status line, 0 disables
}

// DefaultNodeServiceConfig returns default configuration
func DefaultNodeServiceConfig() NodeServiceConfig {
	return NodeServiceConfig{
		LoopInterval:   50 * time.Millisecond,
		StatusInterval: time.Minute,
	}
}

// NodeService is the sensor node's single control loop: one session tick
// per iteration plus replay of buffered readings whenever the link is up
type NodeService struct {
	cfg      NodeServiceConfig
	machine  SessionMachine
	replayer Replayer
	link     Link
	clock    clock.Clock

	lastStatus time.Time
}

// NewNodeService creates the node control loop
func NewNodeService(cfg NodeServiceConfig, machine SessionMachine, replayer Replayer, link Link, clk clock.Clock) *NodeService {
	if clk == nil {
		clk = clock.Real()
	}
	return &NodeService{
		cfg:        cfg,
		machine:    machine,
		replayer:   replayer,
		link:       link,
		clock:      clk,
		lastStatus: clk.Now(),
	}
}

// Start runs the control loop until the context is cancelled
func (ns *NodeService) Start(ctx context.Context) {
	log.Printf("NodeService: Starting control loop (interval=%v)", ns.cfg.LoopInterval)

	for {
		ns.RunOnce(ctx)

		if err := ns.clock.Sleep(ctx, ns.cfg.LoopInterval); err != nil {
			log.Println("NodeService: Context cancelled, shutting down...")
			return
		}
	}
}

// RunOnce performs exactly one loop iteration
func (ns *NodeService) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	state := ns.machine.Tick(ctx)

	if replayAllowed(state) && ns.link.IsConnected() && ns.replayer.Pending() > 0 {
		n, err := ns.replayer.Replay(ctx)
		if err != nil {
			log.Printf("NodeService: Replay interrupted after %d readings: %v", n, err)
		} else {
			log.Printf("NodeService: Replayed %d buffered readings", n)
		}
	}

	ns.logStatus()
}

// replayAllowed holds replay back while a session is sampling or waiting for
// its ack. A replay blocks the loop for Pending*ReplayPacing, and acks carry no
// tag, so replayed acks must not land while a live reading is outstanding.
func replayAllowed(state session.State) bool {
	return state != session.Measuring && state != session.AwaitingConfirmation
}

func (ns *NodeService) logStatus() {
	if ns.cfg.StatusInterval <= 0 {
		return
	}
	now := ns.clock.Now()
	if now.Sub(ns.lastStatus) < ns.cfg.StatusInterval {
		return
	}
	ns.lastStatus = now

	snap := ns.machine.Snapshot()
	s := snap.Stats
	log.Printf("NodeService: state=%s connected=%t pending=%d requests=%d completed=%d aborted=%d timeouts=%d delivered=%d buffered=%d dropped=%d confirmed=%d",
		snap.State, ns.link.IsConnected(), ns.replayer.Pending(),
		s.Requests, s.Completed, s.Aborted, s.Timeouts, s.Delivered, s.Buffered, s.Dropped, s.Confirmed)
}
