// Package notify publishes pipeline lifecycle events to in-process
// subscribers and an optional outbound webhook.
package notify

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies the kind of pipeline event.
type EventType string

const (
	// EventDetected fires after each cycle that processed a non-empty batch.
	EventDetected EventType = "anomalies_detected"
	// EventStopped fires once when the pipeline shuts down.
	EventStopped EventType = "pipeline_stopped"
)

// Event describes one pipeline occurrence.
type Event struct {
	ID                  string    `json:"id"`
	Type                EventType `json:"type"`
	Timestamp           time.Time `json:"timestamp"`
	AnomalyCount        int       `json:"anomaly_count"`
	DataPointsProcessed int       `json:"data_points_processed"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(t EventType, anomalies, processed int) Event {
	return Event{
		ID:                  uuid.NewString(),
		Type:                t,
		Timestamp:           time.Now().UTC(),
		AnomalyCount:        anomalies,
		DataPointsProcessed: processed,
	}
}

// Bus fans events out to subscribers over buffered channels. Publishing
// never blocks the pipeline: when a subscriber's buffer is full the event
// is dropped and logged.
type Bus struct {
	subs []chan Event
}

// NewBus creates a bus with the given number of pre-registered subscriber
// channels, each buffered to size buffer.
func NewBus(subscribers, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	subs := make([]chan Event, subscribers)
	for i := range subs {
		subs[i] = make(chan Event, buffer)
	}
	return &Bus{subs: subs}
}

// Subscribe returns the channel for the given subscriber slot.
func (b *Bus) Subscribe(i int) <-chan Event {
	return b.subs[i]
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			zap.L().Warn("notify: subscriber buffer full, dropping event",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
			)
		}
	}
}

// Close closes all subscriber channels. Publish must not be called after
// Close.
func (b *Bus) Close() {
	for _, ch := range b.subs {
		close(ch)
	}
}
