package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the rate limit state.
type Store interface {
	// Load returns the current state. A store without data returns a zero state.
	Load(ctx context.Context) (*RateLimitState, error)

	// Extend moves BlockedUntil forward to until (never backwards),
	// increments the hit counter, and stamps LastUpdate with now.
	Extend(ctx context.Context, until, now time.Time) error
}

// MemoryStore keeps the state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state RateLimitState
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (*RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	return &state, nil
}

// Extend implements Store.
func (m *MemoryStore) Extend(_ context.Context, until, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until.After(m.state.BlockedUntil) {
		m.state.BlockedUntil = until
	}
	m.state.Hits++
	m.state.LastUpdate = now
	return nil
}

// extendScript only ever moves the cooldown forward, so concurrent
// writers with shorter Retry-After values cannot shorten it.
var extendScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > current then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
end
redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[3], ARGV[2])
return 1
`)

// RedisStore shares the state between processes through Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*RateLimitState, error) {
	values, err := r.redis.MGet(ctx, RedisKeyBlockedUntil, RedisKeyHits, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget rate limit state: %w", err)
	}

	blockedUntil, err := parseMillis(values[0])
	if err != nil {
		return nil, fmt.Errorf("parse blocked until: %w", err)
	}
	hits, err := parseInt(values[1])
	if err != nil {
		return nil, fmt.Errorf("parse hits: %w", err)
	}
	lastUpdate, err := parseMillis(values[2])
	if err != nil {
		return nil, fmt.Errorf("parse last update: %w", err)
	}

	return &RateLimitState{
		BlockedUntil: blockedUntil,
		Hits:         hits,
		LastUpdate:   lastUpdate,
	}, nil
}

// Extend implements Store.
func (r *RedisStore) Extend(ctx context.Context, until, now time.Time) error {
	ttl := until.Sub(now).Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	keys := []string{RedisKeyBlockedUntil, RedisKeyHits, RedisKeyLastUpdate}
	if err := extendScript.Run(ctx, r.redis, keys, until.UnixMilli(), now.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

func parseInt(value any) (int64, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseMillis(value any) (time.Time, error) {
	ms, err := parseInt(value)
	if err != nil || ms == 0 {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
