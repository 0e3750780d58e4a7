package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

type staticRegistry struct{ hooks []domain.Webhook }

func (r staticRegistry) ListWebhooks(context.Context) ([]domain.Webhook, error) {
	return r.hooks, nil
}

func testConfig() Config {
	return Config{
		BufferSize:     16,
		WorkerCount:    2,
		RequestTimeout: 2 * time.Second,
		RetryInitial:   time.Millisecond,
		RetryMax:       10 * time.Millisecond,
		MaxAttempts:    3,
	}
}

func testData() domain.WebhookData {
	return domain.WebhookData{
		Item: domain.TaskMembership{ID: 100, TaskID: 50, UserID: 3},
	}
}

func TestSendDelivers(t *testing.T) {
	var mu sync.Mutex
	var received []domain.WebhookPayload
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p domain.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
	}))
	defer srv.Close()

	reg := staticRegistry{hooks: []domain.Webhook{
		{ID: 1, URL: srv.URL, AccessToken: "s3cret", Enabled: true},
	}}
	s := NewSender(testConfig(), reg, log.New())
	s.Start()

	s.Send(domain.WebhookTaskMembershipCreate, testData(), domain.UserRef{ID: 7, Name: "edna"})
	s.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one delivery got %d", len(received))
	}
	p := received[0]
	if p.Event != domain.WebhookTaskMembershipCreate {
		t.Fatalf("unexpected event %q", p.Event)
	}
	if p.Data.Item.ID != 100 || p.User.ID != 7 || p.User.Name != "edna" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.DeliveryID == "" || p.OccurredAt.IsZero() {
		t.Fatalf("missing delivery metadata: %+v", p)
	}
	if auths[0] != "Bearer s3cret" {
		t.Fatalf("unexpected auth header %q", auths[0])
	}
}

func TestSendFansOutToAllHooks(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name]++
			mu.Unlock()
		}
	}
	first := httptest.NewServer(handler("first"))
	defer first.Close()
	second := httptest.NewServer(handler("second"))
	defer second.Close()

	reg := staticRegistry{hooks: []domain.Webhook{
		{ID: 1, URL: first.URL, Enabled: true},
		{ID: 2, URL: second.URL, Enabled: true},
	}}
	s := NewSender(testConfig(), reg, log.New())
	s.Start()
	s.Send(domain.WebhookTaskMembershipDelete, testData(), domain.UserRef{ID: 7})
	s.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if hits["first"] != 1 || hits["second"] != 1 {
		t.Fatalf("expected one hit per hook, got %v", hits)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	reg := staticRegistry{hooks: []domain.Webhook{{ID: 1, URL: srv.URL, Enabled: true}}}
	s := NewSender(testConfig(), reg, log.New())
	s.Start()
	s.Send(domain.WebhookTaskMembershipCreate, testData(), domain.UserRef{ID: 7})
	s.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected 3 attempts got %d", attempts)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := staticRegistry{hooks: []domain.Webhook{{ID: 1, URL: srv.URL, Enabled: true}}}
	s := NewSender(testConfig(), reg, log.New())
	s.Start()
	s.Send(domain.WebhookTaskMembershipCreate, testData(), domain.UserRef{ID: 7})
	s.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected delivery abandoned after 3 attempts, got %d", attempts)
	}
}

func TestSendAfterShutdownIsNoOp(t *testing.T) {
	reg := staticRegistry{}
	s := NewSender(testConfig(), reg, log.New())
	s.Start()
	s.Shutdown()

	// Must not panic on the closed channel.
	s.Send(domain.WebhookTaskMembershipCreate, testData(), domain.UserRef{ID: 7})
	s.Shutdown()
}

func TestSaturatedBufferDrops(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 1
	reg := staticRegistry{}
	s := NewSender(cfg, reg, log.New())
	// No workers started: the buffer fills and further sends drop.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			s.Send(domain.WebhookTaskMembershipCreate, testData(), domain.UserRef{ID: 7})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked on a full buffer")
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg := ConfigFromEnv()
	if cfg.BufferSize != 1024 || cfg.WorkerCount != 4 || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != 10*time.Second || cfg.RetryInitial != 500*time.Millisecond || cfg.RetryMax != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_BUFFER", "8")
	t.Setenv("WEBHOOK_WORKERS", "2")
	t.Setenv("WEBHOOK_REQUEST_TIMEOUT", "3s")
	t.Setenv("WEBHOOK_ATTEMPTS", "5")

	cfg := ConfigFromEnv()
	if cfg.BufferSize != 8 || cfg.WorkerCount != 2 || cfg.MaxAttempts != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.RequestTimeout)
	}
}
