package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

const webhooksCacheKey = "webhooks"

type webhookLister interface {
	ListWebhooks(ctx context.Context) ([]domain.Webhook, error)
}

// WebhookCache wraps the webhook registry with a Redis-backed TTL cache.
// Registrations change rarely and every mutation reads them, so a short
// TTL removes a query from the hot path.
type WebhookCache struct {
	base  webhookLister
	redis *redis.Client
	ttl   time.Duration
}

// NewWebhookCache creates a caching wrapper. A nil client degrades to
// pass-through reads.
func NewWebhookCache(base webhookLister, client *redis.Client, ttl time.Duration) *WebhookCache {
	if base == nil {
		panic("storage.NewWebhookCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &WebhookCache{base: base, redis: client, ttl: ttl}
}

func (c *WebhookCache) ListWebhooks(ctx context.Context) ([]domain.Webhook, error) {
	if hooks, ok := c.loadFromCache(ctx); ok {
		return hooks, nil
	}
	hooks, err := c.base.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, hooks)
	return hooks, nil
}

// Evict drops the cached registry, used when registrations change.
func (c *WebhookCache) Evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, webhooksCacheKey).Err()
}

func (c *WebhookCache) loadFromCache(ctx context.Context) ([]domain.Webhook, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, webhooksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, webhooksCacheKey).Err()
		}
		return nil, false
	}
	var hooks []domain.Webhook
	if err := json.Unmarshal(data, &hooks); err != nil {
		_ = c.redis.Del(ctx, webhooksCacheKey).Err()
		return nil, false
	}
	return hooks, true
}

func (c *WebhookCache) store(ctx context.Context, hooks []domain.Webhook) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(hooks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, webhooksCacheKey, data, c.ttl).Err()
}
