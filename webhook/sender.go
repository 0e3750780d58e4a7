// Package webhook delivers board events to registered HTTP endpoints.
// Delivery is best effort and decoupled from the request path: payloads
// enter a bounded buffer and a pool of workers posts them with
// exponential backoff. A saturated buffer drops the payload with a
// warning rather than blocking a mutation.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Registry lists the delivery targets.
type Registry interface {
	ListWebhooks(ctx context.Context) ([]domain.Webhook, error)
}

type Config struct {
	BufferSize     int
	WorkerCount    int
	RequestTimeout time.Duration
	RetryInitial   time.Duration
	RetryMax       time.Duration
	MaxAttempts    int
}

// ConfigFromEnv reads tunables, falling back to defaults that suit a
// small deployment.
func ConfigFromEnv() Config {
	cfg := Config{
		BufferSize:     envInt("WEBHOOK_BUFFER", 1024),
		WorkerCount:    envInt("WEBHOOK_WORKERS", 4),
		RequestTimeout: envDur("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second),
		RetryInitial:   envDur("WEBHOOK_RETRY_INITIAL", 500*time.Millisecond),
		RetryMax:       envDur("WEBHOOK_RETRY_MAX", 30*time.Second),
		MaxAttempts:    envInt("WEBHOOK_ATTEMPTS", 3),
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.WorkerCount * 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return cfg
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Sender owns the delivery workers.
type Sender struct {
	cfg      Config
	registry Registry
	client   *http.Client
	logger   *log.Logger

	jobs chan domain.WebhookPayload
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewSender(cfg Config, registry Registry, logger *log.Logger) *Sender {
	return &Sender{
		cfg:      cfg,
		registry: registry,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		logger:   logger,
		jobs:     make(chan domain.WebhookPayload, cfg.BufferSize),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Shutdown drains the buffer and waits for in-flight deliveries.
func (s *Sender) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

// Send enqueues one event for delivery to every enabled webhook. It
// never blocks the caller.
func (s *Sender) Send(event string, data domain.WebhookData, actor domain.UserRef) {
	payload := domain.WebhookPayload{
		Event:      event,
		Data:       data,
		User:       actor,
		DeliveryID: uuid.NewString(),
		OccurredAt: time.Now().UTC(),
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.jobs <- payload:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.logger.WithField("event", event).Warn("webhook buffer saturated; dropping delivery")
	}
}

func (s *Sender) worker() {
	defer s.wg.Done()
	for payload := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		hooks, err := s.registry.ListWebhooks(ctx)
		cancel()
		if err != nil {
			s.logger.WithError(err).Error("webhook registry read failed")
			continue
		}
		body, err := json.Marshal(payload)
		if err != nil {
			s.logger.WithError(err).Error("webhook payload marshal failed")
			continue
		}
		for _, hook := range hooks {
			s.deliver(hook, payload, body)
		}
	}
}

func (s *Sender) deliver(hook domain.Webhook, payload domain.WebhookPayload, body []byte) {
	delay := s.cfg.RetryInitial
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := s.post(hook, body); err == nil {
			s.logger.WithFields(log.Fields{
				"webhook":  hook.URL,
				"event":    payload.Event,
				"delivery": payload.DeliveryID,
				"attempt":  attempt,
			}).Debug("webhook delivered")
			return
		} else if attempt == s.cfg.MaxAttempts {
			s.logger.WithError(err).WithFields(log.Fields{
				"webhook":  hook.URL,
				"event":    payload.Event,
				"delivery": payload.DeliveryID,
				"attempts": attempt,
			}).Error("webhook delivery abandoned")
			return
		}
		time.Sleep(delay)
		delay *= 2
		if delay > s.cfg.RetryMax {
			delay = s.cfg.RetryMax
		}
	}
}

func (s *Sender) post(hook domain.Webhook, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+hook.AccessToken)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}
