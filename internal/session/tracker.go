package session

import (
	"log"
	"sync"
	"time"
)

// Observer receives session transitions. Calls are made synchronously from
// the goroutine driving Tracker.Handle, in registration order, so an
// observer that must finish work before later observers see a transition
// (stopping an achievement poll, for example) should be registered first.
type Observer interface {
	SessionStarted(Session)
	SessionEnded(Session)
}

// Tracker is the session state machine. It holds at most one Session.
// Handle must only be called from a single goroutine; Current, State and
// SetPolicy are safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	policy    Policy
	current   *Session
	observers []Observer
	now       func() time.Time
}

func NewTracker(policy Policy, observers ...Observer) *Tracker {
	return &Tracker{
		policy:    policy,
		observers: observers,
		now:       time.Now,
	}
}

// AddObserver registers o. It must be called before the first Handle.
func (t *Tracker) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// SetPolicy replaces the admission policy. The tracked session, if any,
// is not re-evaluated.
func (t *Tracker) SetPolicy(p Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.policy = p
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return Idle
	}
	return Tracking
}

// Current returns a copy of the tracked session.
func (t *Tracker) Current() (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return Session{}, false
	}
	return *t.current, true
}

// Handle applies one log event to the state machine.
func (t *Tracker) Handle(ev RawLogEvent) {
	t.mu.RLock()
	cur := t.current
	policy := t.policy
	t.mu.RUnlock()

	switch ev.Kind {
	case Added:
		if cur != nil && cur.AppID == ev.AppID {
			// Relaunch without an intervening removal keeps the session.
			return
		}
		if !policy.IsAllowed(ev.AppID) {
			log.Printf("[session] Ignoring %d (%s): blocked by policy", ev.AppID, ev.ExeName)
			return
		}
		if cur != nil {
			log.Printf("[session] Switching from %d to %d", cur.AppID, ev.AppID)
			t.end(*cur)
		}
		t.start(ev)

	case Removed:
		if cur == nil || cur.AppID != ev.AppID {
			return
		}
		t.end(*cur)
	}
}

func (t *Tracker) start(ev RawLogEvent) {
	s := Session{
		AppID:     ev.AppID,
		ExeName:   ev.ExeName,
		Name:      displayName(ev.ExeName),
		PID:       ev.PID,
		StartedAt: t.now(),
	}

	t.mu.Lock()
	t.current = &s
	t.mu.Unlock()

	log.Printf("[session] Started %d (%s, pid %d)", s.AppID, s.Name, s.PID)
	for _, o := range t.observers {
		o.SessionStarted(s)
	}
}

// end notifies observers before the session is destroyed, so nothing
// reading Current sees Idle while an observer is still tearing down.
func (t *Tracker) end(s Session) {
	log.Printf("[session] Ended %d (%s) after %s", s.AppID, s.Name, s.Duration(t.now()).Round(time.Second))
	for _, o := range t.observers {
		o.SessionEnded(s)
	}

	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()
}
