package app

import (
	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
)

// MultiPublisher fans events out to multiple publishers.
type MultiPublisher struct {
	publishers []ports.EventPublisher
}

// NewMultiPublisher creates a publisher that forwards events to all provided publishers.
func NewMultiPublisher(publishers ...ports.EventPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish implements ports.EventPublisher.
func (m *MultiPublisher) Publish(event feedback.Event) {
	for _, p := range m.publishers {
		if p != nil {
			p.Publish(event)
		}
	}
}
