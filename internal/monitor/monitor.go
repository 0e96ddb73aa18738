package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/achievement-notifier/backend/internal/session"
	"github.com/achievement-notifier/backend/internal/tail"
)

// Detection names the mechanism currently feeding the session tracker.
type Detection string

const (
	DetectionNone    Detection = "none"
	DetectionLog     Detection = "log"
	DetectionProcess Detection = "process"
)

type Options struct {
	LogPath        string
	Watcher        tail.WatcherFactory
	RotationGrace  time.Duration
	FallbackScan   bool
	FallbackPeriod time.Duration
}

// Status is a point-in-time view of the monitor for the status API.
type Status struct {
	Detection  Detection     `json:"detection"`
	LogPath    string        `json:"logPath"`
	Tail       tail.Status   `json:"tail"`
	Position   tail.Position `json:"position"`
	EventCount int64         `json:"eventCount"`
}

// Monitor connects the content log (or the process scan fallback) to the
// session tracker. Events from either source are funnelled through one
// channel and applied to the tracker by a single goroutine, in order.
type Monitor struct {
	opts    Options
	tracker *session.Tracker
	tailer  *tail.Tailer
	scanner *ProcessScanner

	events      chan session.RawLogEvent
	unavailable chan struct{}

	mu         sync.Mutex
	detection  Detection
	eventCount int64
	ctx        context.Context
}

func NewMonitor(opts Options, tracker *session.Tracker) *Monitor {
	m := &Monitor{
		opts:        opts,
		tracker:     tracker,
		scanner:     NewProcessScanner(opts.FallbackPeriod),
		events:      make(chan session.RawLogEvent, 64),
		unavailable: make(chan struct{}, 1),
		detection:   DetectionNone,
	}
	m.tailer = tail.New(tail.Options{
		Watcher:       opts.Watcher,
		RotationGrace: opts.RotationGrace,
		OnLine:        m.handleLine,
		OnUnavailable: m.handleUnavailable,
	})
	return m
}

// Start runs until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	if err := m.tailer.Start(m.opts.LogPath); err != nil {
		log.Printf("[monitor] Content log unavailable: %v", err)
		m.startFallback(ctx)
	} else {
		m.setDetection(DetectionLog)
	}
	defer m.tailer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] Monitor stopped")
			return
		case <-m.unavailable:
			m.startFallback(ctx)
		case ev := <-m.events:
			m.mu.Lock()
			m.eventCount++
			m.mu.Unlock()
			m.tracker.Handle(ev)
		}
	}
}

func (m *Monitor) startFallback(ctx context.Context) {
	if !m.opts.FallbackScan {
		m.setDetection(DetectionNone)
		log.Println("[monitor] Process scan fallback disabled, no detection available")
		return
	}
	if m.Detection() == DetectionProcess {
		return
	}
	m.setDetection(DetectionProcess)
	go m.scanner.Run(ctx, m.emit)
}

func (m *Monitor) handleLine(line string) {
	ev, ok := ParseLine(line)
	if !ok {
		return
	}
	m.emit(ev)
}

func (m *Monitor) handleUnavailable(string) {
	select {
	case m.unavailable <- struct{}{}:
	default:
	}
}

// emit queues ev for the tracker. It gives up once the monitor's context
// is done so producers never block shutdown.
func (m *Monitor) emit(ev session.RawLogEvent) {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

func (m *Monitor) setDetection(d Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detection = d
}

func (m *Monitor) Detection() Detection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detection
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Detection:  m.detection,
		LogPath:    m.opts.LogPath,
		Tail:       m.tailer.Status(),
		Position:   m.tailer.Position(),
		EventCount: m.eventCount,
	}
}
