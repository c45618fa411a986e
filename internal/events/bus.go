package events

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// EventBus delivers training events synchronously on the publishing
// goroutine. Subscribers are called in registration order, then function
// handlers for the event's type.
type EventBus struct {
	subscribers []Subscriber
	handlers    map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

var _ Bus = (*EventBus)(nil)

// NewEventBus creates a new event bus instance
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
		logger:   logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe adds a subscriber. A subscriber with the same ID is replaced in place.
func (eb *EventBus) Subscribe(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	i := eb.indexOf(subscriber.ID())
	if i >= 0 {
		eb.subscribers[i] = subscriber
	} else {
		eb.subscribers = append(eb.subscribers, subscriber)
	}
	eb.logger.Debug().
		Str("subscriber_id", subscriber.ID()).
		Bool("replaced", i >= 0).
		Msg("Subscriber added to event bus")
}

// Unsubscribe removes a subscriber; unknown IDs are ignored
func (eb *EventBus) Unsubscribe(subscriberID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if i := eb.indexOf(subscriberID); i >= 0 {
		eb.subscribers = slices.Delete(eb.subscribers, i, i+1)
		eb.logger.Debug().
			Str("subscriber_id", subscriberID).
			Msg("Subscriber removed from event bus")
	}
}

func (eb *EventBus) indexOf(id string) int {
	return slices.IndexFunc(eb.subscribers, func(s Subscriber) bool { return s.ID() == id })
}

// SubscribeFunc adds a handler for one event type
func (eb *EventBus) SubscribeFunc(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debug().
		Str("event_type", eventType).
		Int("handlers", len(eb.handlers[eventType])).
		Msg("Function handler added to event bus")
}

// OnEpochCompleted calls fn after every finished epoch
func (eb *EventBus) OnEpochCompleted(fn func(*EpochCompletedEvent)) {
	eb.SubscribeFunc(TypeEpochCompleted, func(e Event) {
		if ec, ok := e.(*EpochCompletedEvent); ok {
			fn(ec)
		}
	})
}

// OnRunFailed calls fn when a run aborts
func (eb *EventBus) OnRunFailed(fn func(*RunFailedEvent)) {
	eb.SubscribeFunc(TypeRunFailed, func(e Event) {
		if rf, ok := e.(*RunFailedEvent); ok {
			fn(rf)
		}
	})
}

// Publish sends an event to all interested subscribers synchronously
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	subscribers := slices.Clone(eb.subscribers)
	handlers := slices.Clone(eb.handlers[event.Type()])
	eb.mu.RUnlock()

	eventType := event.Type()
	eb.logger.Debug().
		Str("event_type", eventType).
		Str("run_id", event.RunID()).
		Time("timestamp", event.Timestamp()).
		Msg("Publishing event")

	for _, subscriber := range subscribers {
		if !subscriber.InterestedIn(eventType) {
			continue
		}
		eb.deliver(eventType, subscriber.ID(), subscriber.HandleEvent, event)
	}
	for _, handler := range handlers {
		eb.deliver(eventType, "", handler, event)
	}
}

// deliver runs one handler, logging instead of propagating a panic
func (eb *EventBus) deliver(eventType, subscriberID string, handle EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error().
				Str("subscriber_id", subscriberID).
				Str("event_type", eventType).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	handle(event)
}
