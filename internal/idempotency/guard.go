package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard records which event ids a consumer has already handled. Marks expire
// after a bounded TTL; absence only means "not recently processed".
type Guard interface {
	Seen(ctx context.Context, consumer, eventID string) (bool, error)
	Mark(ctx context.Context, consumer, eventID string) error
}

const keyPrefix = "processed_event"

func guardKey(consumer, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, consumer, eventID)
}

// RedisGuard stores marks as Redis keys with a TTL.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a guard backed by the given client.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Seen(ctx context.Context, consumer, eventID string) (bool, error) {
	n, err := g.client.Exists(ctx, guardKey(consumer, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *RedisGuard) Mark(ctx context.Context, consumer, eventID string) error {
	return g.client.SetNX(ctx, guardKey(consumer, eventID), "1", g.ttl).Err()
}

// MemoryGuard is an in-process guard used in tests and when Redis is
// unavailable. Expired marks are dropped lazily on lookup.
type MemoryGuard struct {
	mu      sync.Mutex
	marks   map[string]time.Time
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryGuard creates an in-memory guard with the given TTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		marks:   make(map[string]time.Time),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (g *MemoryGuard) Seen(_ context.Context, consumer, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	expiry, ok := g.marks[guardKey(consumer, eventID)]
	if !ok {
		return false, nil
	}
	if g.nowFunc().After(expiry) {
		delete(g.marks, guardKey(consumer, eventID))
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Mark(_ context.Context, consumer, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks[guardKey(consumer, eventID)] = g.nowFunc().Add(g.ttl)
	return nil
}
