package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shineyder/ticket-system/internal/domain"
	"github.com/shineyder/ticket-system/internal/repository"
)

// listTagKey is the shared tag set holding every cached list key, so one
// invalidation call drops all sort permutations.
const listTagKey = "tickets:list:keys"

// Client is the slice of the go-redis client the cache layer needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TicketReadCache is a cache-aside decorator over the read repository,
// caching list queries only. It is composed explicitly at startup.
type TicketReadCache struct {
	inner  repository.TicketReadRepository
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketReadCache wraps the given repository.
func NewTicketReadCache(inner repository.TicketReadRepository, client Client, ttl time.Duration, logger *zap.Logger) *TicketReadCache {
	return &TicketReadCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Save delegates to the inner store. Invalidation is the projector's call,
// made after the save succeeded.
func (c *TicketReadCache) Save(ctx context.Context, doc *domain.TicketReadModel) error {
	return c.inner.Save(ctx, doc)
}

// FindByID is a direct read, never cached.
func (c *TicketReadCache) FindByID(ctx context.Context, ticketID string) (*domain.TicketReadModel, error) {
	return c.inner.FindByID(ctx, ticketID)
}

// FindAll checks the cache under a key derived from the normalized sort
// parameters and falls back to the inner store on miss, populating the cache
// and registering the key under the shared invalidation tag. Cache errors
// degrade to the source of truth.
func (c *TicketReadCache) FindAll(ctx context.Context, orderBy, orderDirection string) ([]domain.TicketReadModel, error) {
	orderBy, orderDirection = repository.SanitizeSort(orderBy, orderDirection)
	key := listCacheKey(orderBy, orderDirection)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var docs []domain.TicketReadModel
		if unmarshalErr := json.Unmarshal([]byte(cached), &docs); unmarshalErr == nil {
			return docs, nil
		}
		c.logger.Warn("dropping unreadable cache entry", zap.String("key", key))
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("list cache read failed", zap.String("key", key), zap.Error(err))
	}

	docs, err := c.inner.FindAll(ctx, orderBy, orderDirection)
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(docs); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn("list cache write failed", zap.String("key", key), zap.Error(setErr))
		} else if tagErr := c.client.SAdd(ctx, listTagKey, key).Err(); tagErr != nil {
			c.logger.Warn("list cache tag registration failed", zap.String("key", key), zap.Error(tagErr))
		}
	}
	return docs, nil
}

// InvalidateList drops every cached list entry registered under the shared
// tag, regardless of how many sort permutations were cached.
func (c *TicketReadCache) InvalidateList(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, listTagKey).Result()
	if err != nil {
		return err
	}
	keys = append(keys, listTagKey)
	return c.client.Del(ctx, keys...).Err()
}

func listCacheKey(orderBy, orderDirection string) string {
	return fmt.Sprintf("tickets:all:%s:%s", orderBy, orderDirection)
}
