package cache

import (
	"context"
	"time"

	"github.com/xgov/x402/types"
)

// DefaultTTL is how long a verified payment is honored without re-reading
// the ledger.
const DefaultTTL = time.Hour

// Cache maps proof tokens to verified payments. An entry whose age reaches the
// TTL is evicted when it is next read.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(c *Cache) {
		if s != nil {
			c.store = s
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		store: NewMemoryStore(),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the fresh entry for token. A stale entry is evicted and
// reported as a miss; an entry replaced after the read is left in place.
func (c *Cache) Lookup(ctx context.Context, token string) (*types.VerifiedPayment, bool, error) {
	p, ok, err := c.store.Get(ctx, token)
	if err != nil || !ok {
		return nil, false, err
	}
	if c.now().Sub(p.VerifiedAt) >= c.ttl {
		if _, err := c.store.Evict(ctx, token, p.VerifiedAt); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return p, true, nil
}

// Put stores payment, replacing any previous entry for the same token.
func (c *Cache) Put(ctx context.Context, payment *types.VerifiedPayment) error {
	return c.store.Set(ctx, payment)
}

func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

// Now is the cache's clock, used to stamp new entries.
func (c *Cache) Now() time.Time {
	return c.now()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}
