package client

import (
	"sync"

	"github.com/google/uuid"
)

// Credentials are the tokens of a signed-in user
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       uuid.UUID
}

// CredentialStore holds the current user's credentials
type CredentialStore interface {
	Token() string
	Set(creds Credentials)
	Clear()
}

// MemoryCredentials is a process-local CredentialStore
type MemoryCredentials struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryCredentials creates a store holding accessToken, which may be empty
func NewMemoryCredentials(accessToken string) *MemoryCredentials {
	return &MemoryCredentials{creds: Credentials{AccessToken: accessToken}}
}

func (m *MemoryCredentials) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds.AccessToken
}

func (m *MemoryCredentials) Set(creds Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = creds
}

func (m *MemoryCredentials) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
}

// Get returns a copy of the stored credentials
func (m *MemoryCredentials) Get() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}
