package adapters

import (
	"context"
	"sync"
	"time"

	auth "polyglot/internal/domain/auth"
	"polyglot/internal/domain/auth/ports"
)

// MemoryCredentialStore keeps credentials in a map. Used in development and tests.
type MemoryCredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]auth.Credential
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{credentials: map[string]auth.Credential{}}
}

func (s *MemoryCredentialStore) Create(_ context.Context, credential auth.Credential) (auth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[credential.Username]; exists {
		return auth.Credential{}, auth.ErrCredentialExists
	}
	s.credentials[credential.Username] = credential
	return credential, nil
}

func (s *MemoryCredentialStore) FindByUsername(_ context.Context, username string) (auth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if credential, ok := s.credentials[username]; ok {
		return credential, nil
	}
	return auth.Credential{}, auth.ErrCredentialNotFound
}

func (s *MemoryCredentialStore) UpdatePassword(_ context.Context, username, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[username]
	if !ok {
		return auth.ErrCredentialNotFound
	}
	credential.PasswordHash = passwordHash
	credential.UpdatedAt = updatedAt
	s.credentials[username] = credential
	return nil
}

var _ ports.CredentialStore = (*MemoryCredentialStore)(nil)
