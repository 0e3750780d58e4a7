package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type countingLister struct {
	hooks []domain.Webhook
	err   error
	calls int
}

func (l *countingLister) ListWebhooks(context.Context) ([]domain.Webhook, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.hooks, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestWebhookCacheMissThenHit(t *testing.T) {
	_, client := newTestRedis(t)
	base := &countingLister{hooks: []domain.Webhook{
		{ID: 1, Name: "ci", URL: "https://ci.example.com/hook", Enabled: true},
	}}
	cache := NewWebhookCache(base, client, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		hooks, err := cache.ListWebhooks(ctx)
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if len(hooks) != 1 || hooks[0].URL != "https://ci.example.com/hook" {
			t.Fatalf("list %d: unexpected hooks %+v", i, hooks)
		}
	}
	if base.calls != 1 {
		t.Fatalf("expected one backing query got %d", base.calls)
	}
}

func TestWebhookCacheExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	base := &countingLister{hooks: []domain.Webhook{{ID: 1, URL: "https://example.com"}}}
	cache := NewWebhookCache(base, client, time.Minute)
	ctx := context.Background()

	if _, err := cache.ListWebhooks(ctx); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.ListWebhooks(ctx); err != nil {
		t.Fatal(err)
	}
	if base.calls != 2 {
		t.Fatalf("expected two backing queries after expiry got %d", base.calls)
	}
}

func TestWebhookCacheEvict(t *testing.T) {
	_, client := newTestRedis(t)
	base := &countingLister{hooks: []domain.Webhook{{ID: 1, URL: "https://example.com"}}}
	cache := NewWebhookCache(base, client, time.Minute)
	ctx := context.Background()

	if _, err := cache.ListWebhooks(ctx); err != nil {
		t.Fatal(err)
	}
	cache.Evict(ctx)
	if _, err := cache.ListWebhooks(ctx); err != nil {
		t.Fatal(err)
	}
	if base.calls != 2 {
		t.Fatalf("expected backing query after evict got %d", base.calls)
	}
}

func TestWebhookCacheCorruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	base := &countingLister{hooks: []domain.Webhook{{ID: 1, URL: "https://example.com"}}}
	cache := NewWebhookCache(base, client, time.Minute)
	ctx := context.Background()

	if err := mr.Set(webhooksCacheKey, "{not json"); err != nil {
		t.Fatal(err)
	}
	hooks, err := cache.ListWebhooks(ctx)
	if err != nil {
		t.Fatalf("corrupt entry must not fail reads: %v", err)
	}
	if len(hooks) != 1 || base.calls != 1 {
		t.Fatalf("expected fallback to backing storage, hooks=%+v calls=%d", hooks, base.calls)
	}
	if mr.Exists(webhooksCacheKey) {
		got, _ := mr.Get(webhooksCacheKey)
		if got == "{not json" {
			t.Fatal("corrupt entry was not replaced")
		}
	}
}

func TestWebhookCacheNilClient(t *testing.T) {
	base := &countingLister{hooks: []domain.Webhook{{ID: 1, URL: "https://example.com"}}}
	cache := NewWebhookCache(base, nil, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.ListWebhooks(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if base.calls != 2 {
		t.Fatalf("nil client must pass through, got %d calls", base.calls)
	}
}

func TestWebhookCacheBackendError(t *testing.T) {
	_, client := newTestRedis(t)
	base := &countingLister{err: context.DeadlineExceeded}
	cache := NewWebhookCache(base, client, time.Minute)

	if _, err := cache.ListWebhooks(context.Background()); err == nil {
		t.Fatal("expected backing storage error to propagate")
	}
}
