package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// requestMetrics accumulates per-request timings and outcome markers for
// one structured log line emitted when the handler returns.
type requestMetrics struct {
	logger          *log.Logger
	route           string
	start           time.Time
	authDuration    time.Duration
	serviceDuration time.Duration
	encodeDuration  time.Duration
	errorStage      string
}

func newRequestMetrics(route string, logger *log.Logger) *requestMetrics {
	return &requestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
}

func (m *requestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *requestMetrics) ObserveService(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.serviceDuration = duration
}

func (m *requestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.serviceDuration > 0 {
		fields["service_ms"] = durationToMillis(m.serviceDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("membership.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
