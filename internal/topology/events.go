package topology

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventNodeCreated       EventType = "node_created"
	EventNodeUpdated       EventType = "node_updated"
	EventNodeDeleted       EventType = "node_deleted"
	EventConnectionCreated EventType = "connection_created"
	EventConnectionUpdated EventType = "connection_updated"
	EventConnectionDeleted EventType = "connection_deleted"
	EventPositionsUpdated  EventType = "positions_updated"
	EventTopologyLoaded    EventType = "topology_loaded"
	EventDiscoveryStarted  EventType = "discovery_started"
	EventDiscoveryProgress EventType = "discovery_progress"
	EventDiscoveryComplete EventType = "discovery_complete"
	EventDiscoveryCanceled EventType = "discovery_cancelled"
	EventProjectSaved      EventType = "project_saved"
	EventProjectOpened     EventType = "project_opened"
)

// Mutating reports whether events of this type change the document
func (t EventType) Mutating() bool {
	switch t {
	case EventNodeCreated, EventNodeUpdated, EventNodeDeleted,
		EventConnectionCreated, EventConnectionUpdated, EventConnectionDeleted,
		EventPositionsUpdated:
		return true
	}
	return false
}

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
	listeners   map[int]func(Event)
	nextID      int
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
		listeners:   make(map[int]func(Event)),
	}
}

// Subscribe adds a subscriber and returns a func removing it again
func (eb *EventBus) Subscribe(ch chan<- Event) func() {
	eb.mu.Lock()
	eb.subscribers = append(eb.subscribers, ch)
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		for i, sub := range eb.subscribers {
			if sub == ch {
				eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Listen registers fn to be called on the publishing goroutine for every
// event and returns a func removing it. fn must not block or call back into
// the store.
func (eb *EventBus) Listen(fn func(Event)) func() {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	eb.listeners[id] = fn
	eb.mu.Unlock()

	return func() {
		eb.mu.Lock()
		delete(eb.listeners, id)
		eb.mu.Unlock()
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, fn := range eb.listeners {
		fn(event)
	}
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
