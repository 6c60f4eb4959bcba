// Package events provides the engine's internal pub/sub bus: the
// dispatcher, lifecycle manager, and orchestrator publish signal/trade/
// position/error events to any registered subscriber (no package in this
// module subscribes). Adapted from the teacher's EventBus, trimmed to the event
// vocabulary this engine actually emits.
package events

import (
	"sync"
	"time"
)

// EventType represents a kind of engine event.
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventTradeOpened     EventType = "TRADE_OPENED"
	EventTradeClosed     EventType = "TRADE_CLOSED"
	EventPositionUpdate  EventType = "POSITION_UPDATE"
	EventOrderPlaced     EventType = "ORDER_PLACED"
	EventRegimeChanged   EventType = "REGIME_CHANGED"
	EventCircuitTripped  EventType = "CIRCUIT_TRIPPED"
	EventError           EventType = "ERROR"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles a published Event.
type Subscriber func(Event)

// EventBus fans published events out to subscribers, one goroutine per
// delivery so a slow subscriber never blocks the publisher (the
// dispatcher's per-bar hot path).
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus constructs an EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for one event type.
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event type.
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish delivers event to every matching subscriber.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a dispatcher detection.
func (eb *EventBus) PublishSignal(symbol, kind, side string, price, technicalStop float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":         symbol,
			"kind":           kind,
			"side":           side,
			"price":          price,
			"technical_stop": technicalStop,
		},
	})
}

// PublishTradeOpened publishes a twin-order fill.
func (eb *EventBus) PublishTradeOpened(symbol, side string, entryPrice, quantity float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"side":        side,
			"entry_price": entryPrice,
			"quantity":    quantity,
		},
	})
}

// PublishTradeClosed publishes a position close.
func (eb *EventBus) PublishTradeClosed(symbol, reason string, entryPrice, exitPrice, quantity, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"reason":      reason,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl":         pnl,
		},
	})
}

// PublishRegimeChanged publishes a MarketState transition.
func (eb *EventBus) PublishRegimeChanged(symbol, from, to string) {
	eb.Publish(Event{
		Type: EventRegimeChanged,
		Data: map[string]interface{}{
			"symbol": symbol,
			"from":   from,
			"to":     to,
		},
	})
}

// PublishCircuitTripped publishes a risk circuit-breaker trip.
func (eb *EventBus) PublishCircuitTripped(reason string) {
	eb.Publish(Event{Type: EventCircuitTripped, Data: map[string]interface{}{"reason": reason}})
}

// PublishError publishes an engine-level error.
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{"source": source, "message": message}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventError, Data: data})
}
