package app

import (
	"sync"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/shared/logging"
)

// DefaultClientBuffer is the channel capacity handed to stream clients.
const DefaultClientBuffer = 32

// EventBroadcaster implements ports.EventPublisher and fans feedback events out to
// connected dashboard streams. Publishing never blocks: a client whose buffer is
// full misses the event.
type EventBroadcaster struct {
	clients map[chan feedback.Event]struct{}
	mu      sync.RWMutex
	logger  logging.Logger

	metrics broadcasterMetrics
}

type broadcasterMetrics struct {
	mu sync.RWMutex

	totalEventsSent   int64
	droppedEvents     int64
	totalConnections  int64
	activeConnections int64
}

// BroadcasterMetrics is a snapshot of delivery counters.
type BroadcasterMetrics struct {
	TotalEventsSent   int64 `json:"total_events_sent"`
	DroppedEvents     int64 `json:"dropped_events"`
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[chan feedback.Event]struct{}),
		logger:  logging.NewComponentLogger("EventBroadcaster"),
	}
}

// RegisterClient subscribes ch to every subsequent event.
func (b *EventBroadcaster) RegisterClient(ch chan feedback.Event) {
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	b.metrics.mu.Lock()
	b.metrics.totalConnections++
	b.metrics.activeConnections = int64(count)
	b.metrics.mu.Unlock()
	b.logger.Debug("Stream client registered (active=%d)", count)
}

// UnregisterClient removes ch. The channel is not closed; its owner drains it.
func (b *EventBroadcaster) UnregisterClient(ch chan feedback.Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	count := len(b.clients)
	b.mu.Unlock()

	b.metrics.mu.Lock()
	b.metrics.activeConnections = int64(count)
	b.metrics.mu.Unlock()
	b.logger.Debug("Stream client unregistered (active=%d)", count)
}

// Publish delivers event to every registered client without blocking.
func (b *EventBroadcaster) Publish(event feedback.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sent, dropped int64
	for ch := range b.clients {
		select {
		case ch <- event:
			sent++
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.logger.Warn("Dropped %s event for %d slow stream client(s)", event.Type, dropped)
	}

	b.metrics.mu.Lock()
	b.metrics.totalEventsSent += sent
	b.metrics.droppedEvents += dropped
	b.metrics.mu.Unlock()
}

// ClientCount returns the number of registered clients.
func (b *EventBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// GetMetrics returns a copy of the delivery counters.
func (b *EventBroadcaster) GetMetrics() BroadcasterMetrics {
	b.metrics.mu.RLock()
	defer b.metrics.mu.RUnlock()
	return BroadcasterMetrics{
		TotalEventsSent:   b.metrics.totalEventsSent,
		DroppedEvents:     b.metrics.droppedEvents,
		TotalConnections:  b.metrics.totalConnections,
		ActiveConnections: b.metrics.activeConnections,
	}
}
