package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"netlayers/internal/domain"
	"netlayers/internal/topology"
)

// Request describes one discovery run
type Request struct {
	Target    string        `json:"target" validate:"required"`
	Producer  string        `json:"producer,omitempty"`
	ScanPorts bool          `json:"scan_ports"`
	Ports     []int         `json:"ports,omitempty" validate:"omitempty,dive,min=1,max=65535"`
	Timeout   time.Duration `json:"timeout,omitempty"`
}

// Reporter receives what a producer finds while it runs
type Reporter interface {
	Found(h domain.DiscoveredHost)
	Progress(done, total int)
}

// Producer probes the network and reports hosts as it finds them. It must
// return promptly once ctx is cancelled.
type Producer interface {
	Name() string
	Discover(ctx context.Context, req Request, out Reporter) error
}

// State of a discovery session
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Status is a snapshot of the current or last session
type Status struct {
	ID         string     `json:"id,omitempty"`
	Target     string     `json:"target,omitempty"`
	Producer   string     `json:"producer,omitempty"`
	State      State      `json:"state"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	Found      int        `json:"found"`
	Created    int        `json:"created"`
	Skipped    int        `json:"skipped"`
	Invalid    int        `json:"invalid"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitzero"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Manager runs at most one discovery session at a time and feeds its
// records through the Merger
type Manager struct {
	merger *Merger
	bus    *topology.EventBus

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager bound to a merger
func NewManager(merger *Merger, bus *topology.EventBus) *Manager {
	return &Manager{
		merger: merger,
		bus:    bus,
		status: Status{State: StateIdle},
	}
}

// Start launches producer in the background and returns the session id.
// ctx bounds the session lifetime; Cancel stops it early. A second Start
// while a session runs fails with a ConflictError.
func (m *Manager) Start(ctx context.Context, req Request, producer Producer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == StateRunning {
		return "", &domain.ConflictError{Kind: "discovery session", Key: m.status.ID}
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.status = Status{
		ID:        id,
		Target:    req.Target,
		Producer:  producer.Name(),
		State:     StateRunning,
		StartedAt: time.Now().UTC(),
	}

	m.bus.Publish(topology.Event{
		Type:    topology.EventDiscoveryStarted,
		Payload: map[string]any{"id": id, "target": req.Target, "producer": producer.Name()},
	})
	log.Printf("Discovery %s started: target=%s producer=%s", id, req.Target, producer.Name())

	go m.run(runCtx, id, req, producer, m.done)
	return id, nil
}

func (m *Manager) run(ctx context.Context, id string, req Request, producer Producer, done chan struct{}) {
	defer close(done)

	rep := &sessionReporter{m: m, id: id, ctx: ctx}
	err := producer.Discover(ctx, req, rep)

	// wait for every submitted record to be applied before reporting
	rep.pending.Wait()

	m.mu.Lock()
	now := time.Now().UTC()
	m.status.FinishedAt = &now
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		m.status.State = StateCancelled
	case err != nil:
		m.status.State = StateFailed
		m.status.Error = err.Error()
	default:
		m.status.State = StateCompleted
	}
	final := m.status
	m.cancel = nil
	m.mu.Unlock()

	eventType := topology.EventDiscoveryComplete
	if final.State == StateCancelled {
		eventType = topology.EventDiscoveryCanceled
	}
	m.bus.Publish(topology.Event{Type: eventType, Payload: final})
	log.Printf("Discovery %s %s: found=%d created=%d skipped=%d invalid=%d",
		id, final.State, final.Found, final.Created, final.Skipped, final.Invalid)
}

// Cancel stops the running session. Nodes already merged stay.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Wait blocks until the current session finished or ctx ends
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the current or last session
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Running reports whether a session is active
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.State == StateRunning
}

// sessionReporter forwards records into the merge queue and keeps counts
type sessionReporter struct {
	m       *Manager
	id      string
	ctx     context.Context
	pending sync.WaitGroup
}

func (r *sessionReporter) Found(h domain.DiscoveredHost) {
	r.m.mu.Lock()
	r.m.status.Found++
	r.m.mu.Unlock()

	r.pending.Add(1)
	err := r.m.merger.Submit(r.ctx, h, func(o Outcome, nodeID int) {
		defer r.pending.Done()
		r.m.mu.Lock()
		switch o {
		case OutcomeCreated:
			r.m.status.Created++
		case OutcomeDuplicate:
			r.m.status.Skipped++
		default:
			r.m.status.Invalid++
		}
		r.m.mu.Unlock()

		r.m.bus.Publish(topology.Event{
			Type: topology.EventDiscoveryProgress,
			Payload: map[string]any{
				"id":      r.id,
				"ip":      h.IP,
				"outcome": o.String(),
				"node_id": nodeID,
				"message": fmt.Sprintf("%s: %s", h.IP, o),
			},
		})
	})
	if err != nil {
		r.pending.Done()
	}
}

func (r *sessionReporter) Progress(done, total int) {
	r.m.mu.Lock()
	r.m.status.Done, r.m.status.Total = done, total
	r.m.mu.Unlock()
}
