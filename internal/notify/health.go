package notify

import (
	"errors"
	"sync"
	"time"
)

// HealthStatus summarizes recent delivery results for one sink.
type HealthStatus string

const (
	StatusHealthy       HealthStatus = "healthy"
	StatusDegraded      HealthStatus = "degraded"
	StatusFailed        HealthStatus = "failed"
	StatusMisconfigured HealthStatus = "misconfigured"
)

// DefaultFailureThreshold is the number of consecutive failures after which
// a sink is reported as failed rather than degraded.
const DefaultFailureThreshold = 3

// SinkHealth is the exported view of a sink's delivery record.
type SinkHealth struct {
	Name                string       `json:"name"`
	Kind                SinkKind     `json:"kind"`
	Status              HealthStatus `json:"status"`
	Delivered           int64        `json:"delivered"`
	Failed              int64        `json:"failed"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastSuccess         time.Time    `json:"lastSuccess,omitzero"`
	LastFailure         time.Time    `json:"lastFailure,omitzero"`
}

// sinkHealth tracks consecutive failures for a single sink. Fields are
// protected by the owning healthBook's mutex.
type sinkHealth struct {
	kind          SinkKind
	delivered     int64
	failed        int64
	consecutive   int
	misconfigured bool
	lastErr       string
	lastSuccess   time.Time
	lastFailure   time.Time
}

// healthBook records delivery outcomes per sink name. Writers are the
// delivery goroutines; readers are the status API.
type healthBook struct {
	mu        sync.Mutex
	threshold int
	sinks     map[string]*sinkHealth
	order     []string
	now       func() time.Time
}

func newHealthBook(threshold int) *healthBook {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &healthBook{
		threshold: threshold,
		sinks:     make(map[string]*sinkHealth),
		now:       time.Now,
	}
}

// setThreshold changes the failure threshold; existing records are judged
// against it from the next snapshot on.
func (h *healthBook) setThreshold(threshold int) {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	h.mu.Lock()
	h.threshold = threshold
	h.mu.Unlock()
}

// entryLocked returns the record for name, creating it. Caller must hold h.mu.
func (h *healthBook) entryLocked(name string, kind SinkKind) *sinkHealth {
	e, ok := h.sinks[name]
	if !ok {
		e = &sinkHealth{kind: kind}
		h.sinks[name] = e
		h.order = append(h.order, name)
	}
	return e
}

func (h *healthBook) recordSuccess(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entryLocked(s.Name(), s.Kind())
	e.delivered++
	e.consecutive = 0
	e.misconfigured = false
	e.lastErr = ""
	e.lastSuccess = h.now()
}

func (h *healthBook) recordFailure(s Sink, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entryLocked(s.Name(), s.Kind())
	e.failed++
	e.consecutive++
	var cfgErr *ConfigError
	e.misconfigured = errors.As(err, &cfgErr)
	e.lastErr = err.Error()
	e.lastFailure = h.now()
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *healthBook) statusLocked(e *sinkHealth) HealthStatus {
	switch {
	case e.misconfigured:
		return StatusMisconfigured
	case e.consecutive >= h.threshold:
		return StatusFailed
	case e.consecutive > 0:
		return StatusDegraded
	}
	return StatusHealthy
}

// snapshot returns a consistent copy of every sink's record in the order
// sinks were first seen.
func (h *healthBook) snapshot() []SinkHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SinkHealth, 0, len(h.order))
	for _, name := range h.order {
		e := h.sinks[name]
		out = append(out, SinkHealth{
			Name:                name,
			Kind:                e.kind,
			Status:              h.statusLocked(e),
			Delivered:           e.delivered,
			Failed:              e.failed,
			ConsecutiveFailures: e.consecutive,
			LastError:           e.lastErr,
			LastSuccess:         e.lastSuccess,
			LastFailure:         e.lastFailure,
		})
	}
	return out
}
