package matchsvc

import (
	"sync"

	"github.com/hyperengineering/grantscan/internal/types"
)

// TokenSource holds the bearer credentials attached to requests.
type TokenSource interface {
	// Tokens returns the current access and refresh tokens; either may be empty.
	Tokens() (access, refresh string)
	// Store replaces both tokens after a successful refresh.
	Store(pair types.TokenPair)
	// Clear forgets both tokens after a failed refresh.
	Clear()
}

// MemoryTokens is an in-process TokenSource.
type MemoryTokens struct {
	mu   sync.RWMutex
	pair types.TokenPair
}

// NewMemoryTokens returns a TokenSource seeded with the given tokens.
func NewMemoryTokens(access, refresh string) *MemoryTokens {
	return &MemoryTokens{pair: types.TokenPair{AccessToken: access, RefreshToken: refresh}}
}

func (m *MemoryTokens) Tokens() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken, m.pair.RefreshToken
}

func (m *MemoryTokens) Store(pair types.TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
}

func (m *MemoryTokens) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = types.TokenPair{}
}
