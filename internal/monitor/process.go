package monitor

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/achievement-notifier/backend/internal/session"
)

// GameProcess is a running process that was launched for an application.
type GameProcess struct {
	AppID   uint32
	PID     uint32
	ExeName string
}

// ProcessScanner is the fallback detector used when the content log cannot
// be tailed. It polls the process table and synthesizes the same events
// the log would have produced.
type ProcessScanner struct {
	interval time.Duration
	list     func(ctx context.Context) ([]GameProcess, error)
	running  map[uint32]GameProcess
}

func NewProcessScanner(interval time.Duration) *ProcessScanner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ProcessScanner{
		interval: interval,
		list:     DiscoverGameProcesses,
		running:  make(map[uint32]GameProcess),
	}
}

// Run scans until ctx is done, calling emit for every change.
func (s *ProcessScanner) Run(ctx context.Context, emit func(session.RawLogEvent)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[monitor] Process scan fallback started (every %s)", s.interval)
	s.scan(ctx, emit)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx, emit)
		}
	}
}

// scan compares the current process table with the previous one. Removals
// are emitted before additions, each group ordered by app ID.
func (s *ProcessScanner) scan(ctx context.Context, emit func(session.RawLogEvent)) {
	procs, err := s.list(ctx)
	if err != nil {
		log.Printf("[monitor] process scan error: %v", err)
		return
	}

	now := make(map[uint32]GameProcess, len(procs))
	for _, p := range procs {
		if existing, ok := now[p.AppID]; !ok || p.PID < existing.PID {
			now[p.AppID] = p
		}
	}

	var gone, started []GameProcess
	for id, p := range s.running {
		if _, ok := now[id]; !ok {
			gone = append(gone, p)
		}
	}
	for id, p := range now {
		if _, ok := s.running[id]; !ok {
			started = append(started, p)
		}
	}
	sortByAppID(gone)
	sortByAppID(started)

	for _, p := range gone {
		emit(session.RawLogEvent{Kind: session.Removed, AppID: p.AppID, ExeName: p.ExeName, PID: p.PID})
	}
	for _, p := range started {
		emit(session.RawLogEvent{Kind: session.Added, AppID: p.AppID, ExeName: p.ExeName, PID: p.PID})
	}
	s.running = now
}

func sortByAppID(ps []GameProcess) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].AppID < ps[j].AppID })
}

// DiscoverGameProcesses lists processes carrying a SteamAppId in their
// environment, which the client sets for everything it launches.
func DiscoverGameProcesses(ctx context.Context) ([]GameProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var results []GameProcess
	for _, p := range procs {
		env, err := p.EnvironWithContext(ctx)
		if err != nil {
			continue
		}
		appID, ok := appIDFromEnviron(env)
		if !ok {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		results = append(results, GameProcess{
			AppID:   appID,
			PID:     uint32(p.Pid),
			ExeName: name,
		})
	}
	return results, nil
}

func appIDFromEnviron(env []string) (uint32, bool) {
	for _, kv := range env {
		v, ok := strings.CutPrefix(kv, "SteamAppId=")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint32(id), true
	}
	return 0, false
}
