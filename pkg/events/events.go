package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventJobEnqueued       EventType = "job.enqueued"
	EventJobCompleted      EventType = "job.completed"
	EventJobFailed         EventType = "job.failed"
	EventInstanceCreated   EventType = "instance.created"
	EventInstanceRemoved   EventType = "instance.removed"
	EventInstanceScaled    EventType = "instance.scaled"
	EventRollbackAttempt   EventType = "instance.rollback"
	EventMachineRestored   EventType = "machine.restored"
	EventRestoreFailed     EventType = "machine.restore_failed"
	EventCertIssued        EventType = "certificate.issued"
	EventCertRevoked       EventType = "certificate.revoked"
	EventCertRenewalQueued EventType = "certificate.renewal_queued"
)

// Event represents an orchestration event. Job results are ignored by
// callers, so failure events are the durable trace of what went wrong.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Publish sends an event to all subscribers. Publishing never blocks: a
// full broker buffer drops the event.
func (b *Broker) Publish(event *Event) {
	select {
	case b.eventCh <- event:
	default:
	}
}

// Subscribe registers a new subscriber channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscriber channel
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// run distributes events to subscribers
func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

// broadcast delivers an event to every subscriber without blocking on slow
// consumers.
func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}
