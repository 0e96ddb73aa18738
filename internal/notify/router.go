package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/achievement-notifier/backend/internal/achievement"
	"github.com/achievement-notifier/backend/internal/session"
)

const DefaultDeliveryTimeout = 10 * time.Second

type RouterOptions struct {
	SuppressPopups   bool
	DeliveryTimeout  time.Duration
	FailureThreshold int
}

// Router fans every event out to all enabled sinks. Each delivery runs on
// its own goroutine so a slow or failing sink never delays or blocks the
// others, and Publish never waits for delivery.
type Router struct {
	mu             sync.RWMutex
	sinks          []Sink
	suppressPopups bool
	timeout        time.Duration

	// current is the last started session, used to name the game on
	// achievement events; nil when no session is active.
	current *session.Session

	health   *healthBook
	inflight sync.WaitGroup
	now      func() time.Time
}

func NewRouter(sinks []Sink, opts RouterOptions) *Router {
	r := &Router{
		health: newHealthBook(opts.FailureThreshold),
		now:    time.Now,
	}
	r.SetSinks(sinks, opts)
	return r
}

// SetSinks replaces the sink set and options. Deliveries already in flight
// complete against the old sinks.
func (r *Router) SetSinks(sinks []Sink, opts RouterOptions) {
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	r.health.setThreshold(opts.FailureThreshold)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append([]Sink(nil), sinks...)
	r.suppressPopups = opts.SuppressPopups
	r.timeout = timeout
}

func (r *Router) Sinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Sink(nil), r.sinks...)
}

// Publish hands ev to every sink and returns immediately. A sink that
// fails validation is skipped for this event only.
func (r *Router) Publish(ev Event) {
	r.mu.RLock()
	sinks, suppress, timeout := r.sinks, r.suppressPopups, r.timeout
	r.mu.RUnlock()

	for _, s := range sinks {
		if suppress && s.Kind() == SinkPopup {
			continue
		}
		if err := s.Validate(); err != nil {
			log.Printf("[notify] Skipping %s for %s: %v", s.Name(), ev.Kind, err)
			r.health.recordFailure(s, err)
			continue
		}
		r.inflight.Add(1)
		go r.deliver(s, ev, timeout)
	}
}

func (r *Router) deliver(s Sink, ev Event, timeout time.Duration) {
	defer r.inflight.Done()
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[notify] PANIC in sink %s: %v", s.Name(), p)
			r.health.recordFailure(s, panicError{p})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Deliver(ctx, ev); err != nil {
		log.Printf("[notify] %s delivery of %s failed: %v", s.Name(), ev.Kind, err)
		r.health.recordFailure(s, err)
		return
	}
	r.health.recordSuccess(s)
}

// Wait blocks until every delivery started so far has finished.
func (r *Router) Wait() {
	r.inflight.Wait()
}

// Health reports per-sink delivery status for the status API.
func (r *Router) Health() []SinkHealth {
	return r.health.snapshot()
}

func (r *Router) SessionStarted(s session.Session) {
	r.mu.Lock()
	r.current = &s
	r.mu.Unlock()
	r.Publish(NewSessionStarted(s, r.now()))
}

func (r *Router) SessionEnded(s session.Session) {
	r.mu.Lock()
	if r.current != nil && r.current.AppID == s.AppID {
		r.current = nil
	}
	r.mu.Unlock()
	r.Publish(NewSessionEnded(s, r.now()))
}

func (r *Router) AchievementUnlocked(u achievement.Unlocked) {
	var s *session.Session
	r.mu.RLock()
	if r.current != nil && r.current.AppID == u.AppID {
		cur := *r.current
		s = &cur
	}
	r.mu.RUnlock()
	r.Publish(NewAchievementUnlocked(u, s))
}

type panicError struct {
	v any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.v)
}
