// Package events carries client-side notifications from the auth wrapper and the
// submission orchestrator to whatever UI is listening.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/shared/logging"
)

// Kind names a notification.
type Kind string

const (
	KindTokenRefreshed  Kind = "token-refreshed"
	KindLoggedOut       Kind = "logout"
	KindFeedbackCreated Kind = "feedback-created"
)

// LogoutReason explains why the local session ended.
type LogoutReason string

const (
	ReasonExpired LogoutReason = "expired"
	ReasonInvalid LogoutReason = "invalid"
	ReasonMissing LogoutReason = "missing"
	ReasonUser    LogoutReason = "user"
)

// Notification is a tagged variant; only the fields for Kind are set.
type Notification struct {
	Kind   Kind
	Token  string
	Reason LogoutReason
	Record *feedback.Record
	At     time.Time
}

func TokenRefreshed(token string) Notification {
	return Notification{Kind: KindTokenRefreshed, Token: token, At: time.Now()}
}

func LoggedOut(reason LogoutReason) Notification {
	return Notification{Kind: KindLoggedOut, Reason: reason, At: time.Now()}
}

func FeedbackCreated(record feedback.Record) Notification {
	return Notification{Kind: KindFeedbackCreated, Record: &record, At: time.Now()}
}

// Publisher accepts notifications without blocking.
type Publisher interface {
	Publish(Notification)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Publish(Notification) {}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Bus fans notifications out to subscribers. A full subscriber misses the
// notification; publishers never block.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Notification
	next    int
	buffer  int
	dropped atomic.Int64
	logger  logging.Logger
}

// NewBus creates a bus whose subscriber channels hold buffer notifications.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[int]chan Notification),
		buffer: buffer,
		logger: logging.NewComponentLogger("EventBus"),
	}
}

// Subscribe returns a receive channel and a function that closes it.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, b.buffer)

	b.mu.Lock()
	key := b.next
	b.next++
	b.subs[key] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers n to every subscriber with room for it.
func (b *Bus) Publish(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for key, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.dropped.Add(1)
			b.logger.Warn("Subscriber %d is full, dropped %s notification", key, n.Kind)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
