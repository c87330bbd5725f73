//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/xgov/x402/types"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	store     *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	store, err := NewRedisStoreFromURL(ctx, url, time.Hour)
	s.Require().NoError(err)
	s.store = store
	s.client = store.client
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisStoreSuite) TestRoundTripAndLen() {
	ctx := context.Background()
	verifiedAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Set(ctx, &types.VerifiedPayment{
		ProofToken:     "sig-1",
		AmountReceived: 5_000_000,
		Payer:          "payer",
		VerifiedAt:     verifiedAt,
	}))

	p, ok, err := s.store.Get(ctx, "sig-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(uint64(5_000_000), p.AmountReceived)
	s.True(verifiedAt.Equal(p.VerifiedAt))

	n, err := s.store.Len(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	ttl, err := s.client.TTL(ctx, defaultKeyPrefix+"sig-1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisStoreSuite) TestStaleEntryEvictedThroughCache() {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(WithStore(s.store), WithClock(func() time.Time { return now }))

	s.Require().NoError(c.Put(ctx, &types.VerifiedPayment{ProofToken: "old", VerifiedAt: now.Add(-2 * time.Hour)}))

	_, ok, err := c.Lookup(ctx, "old")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, err = s.store.Get(ctx, "old")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisStoreSuite) TestEvictComparesVerifiedAt() {
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 10, 0, 0, 123456789, time.UTC)
	fresh := old.Add(2 * time.Hour)

	s.Require().NoError(s.store.Set(ctx, &types.VerifiedPayment{ProofToken: "sig", VerifiedAt: fresh}))

	removed, err := s.store.Evict(ctx, "sig", old)
	s.Require().NoError(err)
	s.False(removed)
	_, ok, err := s.store.Get(ctx, "sig")
	s.Require().NoError(err)
	s.True(ok)

	stored, _, err := s.store.Get(ctx, "sig")
	s.Require().NoError(err)
	removed, err = s.store.Evict(ctx, "sig", stored.VerifiedAt)
	s.Require().NoError(err)
	s.True(removed)
	_, ok, err = s.store.Get(ctx, "sig")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisStoreSuite) TestMissingKey() {
	_, ok, err := s.store.Get(context.Background(), "nope")
	s.Require().NoError(err)
	s.False(ok)
}
