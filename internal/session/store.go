// Package session stores short-lived wallet authentication nonces. A client
// requests a challenge nonce, signs it with its wallet, and exchanges the
// signature for a token; nonces are single-use and expire quickly.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNonceNotFound = errors.New("session: nonce not found or expired")

// DefaultNonceTTL bounds how long a challenge stays valid.
const DefaultNonceTTL = 5 * time.Minute

// NonceStore persists challenge nonces keyed by wallet address.
type NonceStore interface {
	// SaveNonce stores the nonce for the wallet, replacing any previous one.
	SaveNonce(ctx context.Context, wallet, nonce string, ttl time.Duration) error
	// TakeNonce returns the stored nonce and deletes it in the same call, so
	// a challenge can be redeemed at most once.
	TakeNonce(ctx context.Context, wallet string) (string, error)
}

// NewNonce returns a 32-byte hex challenge.
func NewNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type memoryEntry struct {
	nonce     string
	expiresAt time.Time
}

// MemoryNonceStore is the in-process store used in development and tests.
// Expired entries are dropped lazily on access.
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var _ NonceStore = (*MemoryNonceStore)(nil)

func (s *MemoryNonceStore) SaveNonce(_ context.Context, wallet, nonce string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[wallet] = memoryEntry{nonce: nonce, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryNonceStore) TakeNonce(_ context.Context, wallet string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	entry, ok := s.entries[wallet]
	if !ok {
		return "", ErrNonceNotFound
	}
	delete(s.entries, wallet)
	return entry.nonce, nil
}

func (s *MemoryNonceStore) sweepLocked() {
	now := s.now()
	for wallet, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, wallet)
		}
	}
}
