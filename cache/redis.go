package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xgov/x402/types"
)

const defaultKeyPrefix = "x402:payment:"

// evictScript deletes KEYS[1] only while its verifiedAt still equals ARGV[1].
var evictScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local entry = cjson.decode(raw)
if entry["verifiedAt"] ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

// RedisStore shares verified payments between provider replicas. Keys expire
// on the server after the configured TTL so abandoned entries do not pile up.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. A zero ttl keeps keys until deleted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix, ttl: ttl}
}

// NewRedisStoreFromURL connects using a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, types.NewConfigError("invalid REDIS_URL: %v", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisStore) Get(ctx context.Context, token string) (*types.VerifiedPayment, bool, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var p types.VerifiedPayment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached payment: %w", err)
	}
	return &p, true, nil
}

func (s *RedisStore) Set(ctx context.Context, payment *types.VerifiedPayment) error {
	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode cached payment: %w", err)
	}
	if err := s.client.Set(ctx, s.key(payment.ProofToken), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Evict runs as a server-side script so the comparison and the delete see the
// same value. verifiedAt is matched in the form encoding/json writes it.
func (s *RedisStore) Evict(ctx context.Context, token string, verifiedAt time.Time) (bool, error) {
	n, err := evictScript.Run(ctx, s.client, []string{s.key(token)}, verifiedAt.Format(time.RFC3339Nano)).Int()
	if err != nil {
		return false, fmt.Errorf("redis evict: %w", err)
	}
	return n > 0, nil
}

// Len counts keys under the store prefix with SCAN.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		n      int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 256).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		n += len(keys)
		cursor = next
		if cursor == 0 {
			return n, nil
		}
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
