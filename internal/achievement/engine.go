package achievement

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/achievement-notifier/backend/internal/session"
)

// MinPollInterval is the floor applied to the configured poll interval.
const MinPollInterval = time.Second

// Source fetches the current achievement snapshot for an application.
type Source interface {
	Snapshot(ctx context.Context, appID uint32) (Snapshot, error)
}

// Emitter receives newly unlocked achievements. Implementations must not
// block; the engine calls it from its poll goroutine.
type Emitter interface {
	AchievementUnlocked(Unlocked)
}

// Engine polls the snapshot source while a session is active and emits
// achievements that become unlocked. It implements session.Observer and
// must be registered ahead of observers that report session ends, because
// SessionEnded returns only after the poll goroutine has exited.
type Engine struct {
	source  Source
	emitter Emitter
	floor   time.Duration
	now     func() time.Time

	mu         sync.Mutex // guards interval and classifier
	interval   time.Duration
	classifier Classifier

	// active is only touched from session callbacks, which the tracker
	// delivers from a single goroutine.
	active *poller
}

type poller struct {
	appID  uint32
	cancel context.CancelFunc
	done   chan struct{}
}

// pollState is owned by one poll goroutine.
type pollState struct {
	session  session.Session
	prev     Snapshot
	baseline bool
	emitted  map[string]bool
}

func NewEngine(source Source, emitter Emitter, classifier Classifier, interval time.Duration) *Engine {
	return &Engine{
		source:     source,
		emitter:    emitter,
		floor:      MinPollInterval,
		now:        time.Now,
		interval:   interval,
		classifier: classifier,
	}
}

// SetClassifier replaces the rarity thresholds used for later emissions.
func (e *Engine) SetClassifier(c Classifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classifier = c
}

// SetInterval changes the poll interval for sessions started afterwards.
func (e *Engine) SetInterval(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interval = d
}

func (e *Engine) pollInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interval < e.floor {
		return e.floor
	}
	return e.interval
}

func (e *Engine) currentClassifier() Classifier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier
}

func (e *Engine) SessionStarted(s session.Session) {
	e.stop()

	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{appID: s.AppID, cancel: cancel, done: make(chan struct{})}
	e.active = p
	go e.run(ctx, p, s, e.pollInterval())
}

func (e *Engine) SessionEnded(session.Session) {
	e.stop()
}

// Close stops any running poll. It is safe to call more than once.
func (e *Engine) Close() {
	e.stop()
}

// stop cancels the active poll and waits for its goroutine to exit, so no
// achievement for that session can be emitted once stop returns.
func (e *Engine) stop() {
	if e.active == nil {
		return
	}
	e.active.cancel()
	<-e.active.done
	e.active = nil
}

func (e *Engine) run(ctx context.Context, p *poller, s session.Session, interval time.Duration) {
	defer close(p.done)

	st := &pollState{session: s, emitted: make(map[string]bool)}
	if !e.pollOnce(ctx, st) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.pollOnce(ctx, st) {
				return
			}
		}
	}
}

// pollOnce fetches one snapshot and emits what changed since the previous
// one. The first successful snapshot only establishes the baseline. It
// returns false when polling for the session should stop.
func (e *Engine) pollOnce(ctx context.Context, st *pollState) bool {
	appID := st.session.AppID
	snap, err := e.source.Snapshot(ctx, appID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		log.Printf("[achievement] snapshot error for %d: %v", appID, err)
		return true
	}

	if !st.baseline {
		st.baseline = true
		st.prev = snap
		if len(snap) == 0 {
			log.Printf("[achievement] %d has no achievements, polling skipped", appID)
			return false
		}
		for _, r := range snap {
			if r.Unlocked {
				st.emitted[r.APIName] = true
			}
		}
		log.Printf("[achievement] Baseline for %d: %d achievements, %d unlocked", appID, len(snap), len(st.emitted))
		return true
	}

	classifier := e.currentClassifier()
	for _, r := range Diff(st.prev, snap) {
		if st.emitted[r.APIName] {
			continue
		}
		if ctx.Err() != nil {
			return false
		}
		st.emitted[r.APIName] = true
		e.emitter.AchievementUnlocked(e.unlocked(appID, r, classifier))
	}

	st.prev = snap
	return true
}

func (e *Engine) unlocked(appID uint32, r Record, c Classifier) Unlocked {
	at := e.now()
	if r.UnlockTime != nil && !r.UnlockTime.IsZero() {
		at = *r.UnlockTime
	}
	return Unlocked{
		AppID:       appID,
		APIName:     r.APIName,
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		Percent:     r.Percent,
		Rarity:      c.Classify(r.Percent),
		UnlockedAt:  at,
	}
}
