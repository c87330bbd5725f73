package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xgov/x402/types"
)

// Store holds verified payments keyed by proof token. Implementations do not
// interpret timestamps; staleness is decided by Cache.
type Store interface {
	Get(ctx context.Context, token string) (*types.VerifiedPayment, bool, error)
	Set(ctx context.Context, payment *types.VerifiedPayment) error
	// Evict removes the entry for token only if it is still the one verified
	// at verifiedAt, so an entry stored since the caller's read survives.
	// It reports whether an entry was removed.
	Evict(ctx context.Context, token string, verifiedAt time.Time) (bool, error)
	Len(ctx context.Context) (int, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]types.VerifiedPayment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]types.VerifiedPayment)}
}

func (s *MemoryStore) Get(_ context.Context, token string) (*types.VerifiedPayment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.entries[token]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (s *MemoryStore) Set(_ context.Context, payment *types.VerifiedPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[payment.ProofToken] = *payment
	return nil
}

func (s *MemoryStore) Evict(_ context.Context, token string, verifiedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[token]
	if !ok || !p.VerifiedAt.Equal(verifiedAt) {
		return false, nil
	}
	delete(s.entries, token)
	return true, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}
