package session

import (
	"sync"
	"time"

	"polyglot/internal/client/events"
	authAdapters "polyglot/internal/infra/auth/adapters"
	"polyglot/internal/shared/logging"
)

// Session wraps a Store and ends the session locally once the token's exp passes,
// so the UI reacts without waiting for the next request to fail.
type Session struct {
	store     Store
	publisher events.Publisher
	now       func() time.Time
	logger    logging.Logger

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	expiresAt time.Time
}

// New wraps store. publisher may be nil.
func New(store Store, publisher events.Publisher) *Session {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Session{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    logging.NewComponentLogger("Session"),
	}
}

// WithNow overrides the clock used to schedule expiry.
func (s *Session) WithNow(now func() time.Time) *Session {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Session) Token() string {
	return s.store.Token()
}

// Save persists token and reschedules the expiry timer.
func (s *Session) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(token); err != nil {
		return err
	}
	s.scheduleLocked(token)
	return nil
}

// Clear removes the token and stops the timer. It does not publish; callers that
// end a session report why.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return s.store.Clear()
}

// Restore schedules expiry for a token persisted by an earlier process.
func (s *Session) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token := s.store.Token(); token != "" {
		s.scheduleLocked(token)
	}
}

// ExpiresAt reports the exp claim of the current token.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, !s.expiresAt.IsZero()
}

// Close stops the timer without touching the store.
func (s *Session) Close() {
	s.stop()
}

// Store writes happen under mu, so an expiry callback that still holds the
// current generation cannot clear a token saved after it was scheduled.
func (s *Session) scheduleLocked(token string) {
	s.stopLocked()
	if token == "" {
		return
	}

	claims, err := authAdapters.ParseUnverified(token)
	if err != nil {
		s.logger.Warn("Stored token is not a readable JWT; expiry is left to the server: %v", err)
		return
	}
	s.expiresAt = claims.ExpiresAt
	gen := s.gen
	s.timer = time.AfterFunc(max(claims.ExpiresAt.Sub(s.now()), 0), func() {
		s.expire(gen)
	})
}

// expire publishes under mu so the logout is ordered before any later Save.
// Publishers must not call back into the Session.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.stopLocked()
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("Failed to clear expired token: %v", err)
	}
	s.logger.Info("Session expired")
	s.publisher.Publish(events.LoggedOut(events.ReasonExpired))
}

func (s *Session) stop() {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

// stopLocked invalidates any pending expiry callback.
func (s *Session) stopLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.expiresAt = time.Time{}
}

var _ Store = (*Session)(nil)
