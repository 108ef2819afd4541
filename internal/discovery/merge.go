package discovery

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"strings"
	"sync"

	"netlayers/internal/domain"
	"netlayers/internal/topology"
	"netlayers/internal/validation"
)

// Placement bounds for discovered nodes: the visible canvas
const (
	CanvasMinX = 50.0
	CanvasMaxX = 600.0
	CanvasMinY = 50.0
	CanvasMaxY = 400.0
)

// DefaultQueueSize bounds the number of records waiting to be merged
const DefaultQueueSize = 256

// ErrMergerStopped is returned by Submit once Run has returned
var ErrMergerStopped = errors.New("discovery merger stopped")

// Outcome is what happened to one record
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeDuplicate
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "invalid"
	}
}

// MergeResult summarises a merge run
type MergeResult struct {
	Created []int `json:"created"`
	Skipped int   `json:"skipped"`
	Invalid int   `json:"invalid"`
}

func (r *MergeResult) add(o Outcome, id int) {
	switch o {
	case OutcomeCreated:
		r.Created = append(r.Created, id)
	case OutcomeDuplicate:
		r.Skipped++
	default:
		r.Invalid++
	}
}

type queued struct {
	host domain.DiscoveredHost
	done func(Outcome, int)
}

// Merger turns discovered hosts into store nodes, one record at a time.
// Producers hand records to Submit; Run is the single consumer.
type Merger struct {
	store *topology.Store
	queue chan queued

	// submitMu is held shared by Submit and exclusively once while Run
	// shuts down, so no record lands in the queue after the final drain
	submitMu sync.RWMutex
	stopped  bool
	stop     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMerger creates a merger with a buffered queue. A non-zero seed makes
// placements reproducible.
func NewMerger(store *topology.Store, queueSize int, seed uint64) *Merger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	return &Merger{
		store: store,
		queue: make(chan queued, queueSize),
		stop:  make(chan struct{}),
		rng:   rng,
	}
}

// Merge applies hosts in order and returns what happened. Records whose
// address is already held by a node, including one created earlier in the
// same batch, are skipped. Invalid records are counted and skipped.
func (m *Merger) Merge(ctx context.Context, hosts []domain.DiscoveredHost) MergeResult {
	var res MergeResult
	for _, h := range hosts {
		if ctx.Err() != nil {
			break
		}
		outcome, id := m.apply(h)
		res.add(outcome, id)
	}
	return res
}

// Submit queues a record for the consumer. done, when non-nil, is called
// from the consumer goroutine after the record was applied, or with
// OutcomeInvalid if the merger stopped before getting to it.
func (m *Merger) Submit(ctx context.Context, h domain.DiscoveredHost, done func(Outcome, int)) error {
	m.submitMu.RLock()
	defer m.submitMu.RUnlock()

	if m.stopped {
		return ErrMergerStopped
	}
	select {
	case m.queue <- queued{host: h, done: done}:
		return nil
	case <-m.stop:
		return ErrMergerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes the queue until ctx is cancelled. Records still queued at
// that point are not applied; their callbacks get OutcomeInvalid.
func (m *Merger) Run(ctx context.Context) {
	log.Printf("Discovery merger started (queue=%d)", cap(m.queue))
	for {
		if ctx.Err() != nil {
			dropped := m.shutdown()
			log.Printf("Discovery merger stopped (dropped=%d)", dropped)
			return
		}
		select {
		case <-ctx.Done():
			dropped := m.shutdown()
			log.Printf("Discovery merger stopped (dropped=%d)", dropped)
			return
		case item := <-m.queue:
			outcome, id := m.apply(item.host)
			if item.done != nil {
				item.done(outcome, id)
			}
		}
	}
}

func (m *Merger) shutdown() int {
	m.stopOnce.Do(func() { close(m.stop) })

	m.submitMu.Lock()
	m.stopped = true
	m.submitMu.Unlock()

	dropped := 0
	for {
		select {
		case item := <-m.queue:
			dropped++
			if item.done != nil {
				item.done(OutcomeInvalid, 0)
			}
		default:
			return dropped
		}
	}
}

func (m *Merger) apply(h domain.DiscoveredHost) (Outcome, int) {
	h.IP = strings.TrimSpace(h.IP)
	if err := validation.DiscoveredHost(&h); err != nil {
		log.Printf("Discovery: skipping invalid record %q: %v", h.IP, err)
		return OutcomeInvalid, 0
	}

	spec := m.nodeSpec(h)
	id, created, err := m.store.CreateNodeIfAddressFree(spec)
	if err != nil {
		log.Printf("Discovery: could not create node for %s: %v", h.IP, err)
		return OutcomeInvalid, 0
	}
	if !created {
		return OutcomeDuplicate, 0
	}
	return OutcomeCreated, id
}

// nodeSpec maps a record onto the node schema
func (m *Merger) nodeSpec(h domain.DiscoveredHost) domain.NodeSpec {
	name := h.DefaultName()

	typ := domain.ParseDeviceType(h.Type)
	if h.Type == "" {
		typ = InferDeviceType(h.Ports)
	}
	status := domain.ParseStatus(h.Status)

	mask := h.Mask
	if mask == "" {
		mask = domain.DefaultMask
	}

	m.mu.Lock()
	x := CanvasMinX + m.rng.Float64()*(CanvasMaxX-CanvasMinX)
	y := CanvasMinY + m.rng.Float64()*(CanvasMaxY-CanvasMinY)
	m.mu.Unlock()

	spec := domain.NodeSpec{
		Name:   &name,
		Type:   &typ,
		Status: &status,
		X:      &x,
		Y:      &y,
		L3:     &domain.L3Attrs{IP: h.IP, Mask: mask},
	}
	if h.MAC != "" {
		spec.L2 = &domain.L2Attrs{MAC: h.MAC, VLAN: domain.DefaultVLAN}
	}
	if len(h.Ports) > 0 {
		spec.L1 = &domain.L1Attrs{Ports: append([]int(nil), h.Ports...)}
	}
	return spec
}
