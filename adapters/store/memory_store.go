package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/taksu/core"
	"github.com/layer-3/taksu/ports"
)

// MemoryStore is an in-memory implementation of the NonceStore interface,
// good for a single instance and for tests.
type MemoryStore struct {
	mu     sync.Mutex
	nonces map[string]core.Challenge // nonce -> issuance record
	nowFn  func() time.Time
}

// NewMemoryStore creates a new in-memory nonce store
func NewMemoryStore() ports.NonceStore {
	return &MemoryStore{
		nonces: make(map[string]core.Challenge),
		nowFn:  time.Now,
	}
}

// Save records the nonce until it is consumed or expires
func (s *MemoryStore) Save(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	s.purgeLocked(now)
	s.nonces[nonce] = core.Challenge{
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

// Consume removes the nonce and reports whether it was still live. A nonce
// is gone after the first call no matter the verdict.
func (s *MemoryStore) Consume(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.nonces[nonce]
	if !exists {
		return false, nil
	}
	delete(s.nonces, nonce)

	if ch.Expired(s.nowFn()) {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for nonce, ch := range s.nonces {
		if ch.Expired(now) {
			delete(s.nonces, nonce)
		}
	}
}
