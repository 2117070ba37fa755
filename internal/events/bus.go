package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventCallCreated         EventType = "CALL_CREATED"
	EventCallResolved        EventType = "CALL_RESOLVED"
	EventCallExpired         EventType = "CALL_EXPIRED"
	EventTickCompleted       EventType = "TICK_COMPLETED"
	EventSignalReceived      EventType = "SIGNAL_RECEIVED"
	EventPaymentReceived     EventType = "PAYMENT_RECEIVED"
	EventSubscriptionUpdated EventType = "SUBSCRIPTION_UPDATED"
	EventPricingUpdated      EventType = "PRICING_UPDATED"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run on their own
// goroutines so a slow consumer never blocks the publisher.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for _, sub := range eb.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishData is a convenience wrapper building the Event from a type and data map
func (eb *EventBus) PublishData(eventType EventType, data map[string]interface{}) {
	eb.Publish(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
