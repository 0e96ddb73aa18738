package mock

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/achievement-notifier/backend/internal/achievement"
)

type mockAchievement struct {
	apiName     string
	name        string
	description string
	percent     float64
	unlockTick  int // ticks after launch; 0 means unlocked before the session
}

type mockGame struct {
	appID        uint32
	exe          string
	pid          uint32
	playTicks    int  // ticks between the added and removed lines
	rotateAfter  bool // rotate the log once the game exits
	achievements []mockAchievement
}

var defaultGames = []mockGame{
	{
		appID: 620, exe: `C:\Program Files (x86)\Steam\steamapps\common\Portal 2\portal2.exe`, pid: 4312,
		playTicks: 12,
		achievements: []mockAchievement{
			{apiName: "ACH_SURVIVE_CONTAINER_RIDE", name: "Wake Up Call", description: "Survive the manual override", percent: 88.1},
			{apiName: "ACH_YOU_MONSTER", name: "You Monster", description: "Reunite with GLaDOS", percent: 71.4, unlockTick: 4},
			{apiName: "ACH_LASER", name: "Undiscouraged", description: "Complete the first Thermal Discouragement Beam test", percent: 8.2, unlockTick: 7},
		},
	},
	{
		appID: 228980, exe: "redist.exe", pid: 5120,
		playTicks: 3,
	},
	{
		appID: 400, exe: "/home/deck/.local/share/Steam/steamapps/common/Portal/hl2_linux", pid: 6001,
		playTicks: 10, rotateAfter: true,
		achievements: []mockAchievement{
			{apiName: "PORTAL_GET_PORTALGUNS", name: "Lab Rat", description: "Get both portal device upgrades", percent: 63.5, unlockTick: 3},
			{apiName: "PORTAL_BEAT_GAME", name: "Fratricide", description: "Do whatever it takes to survive", percent: 21.9, unlockTick: 8},
		},
	},
}

// Generator writes a synthetic content log and serves matching
// achievement snapshots, so the whole pipeline can run without the client.
// It implements achievement.Source.
type Generator struct {
	path  string
	tick  time.Duration
	games []mockGame
	now   func() time.Time

	// step state, owned by the run goroutine
	gameIdx   int
	gameTick  int
	idleTicks int

	mu       sync.Mutex
	running  uint32
	unlocked map[uint32]map[string]time.Time
}

func NewGenerator(path string, tick time.Duration) *Generator {
	if tick <= 0 {
		tick = time.Second
	}
	return &Generator{
		path:     path,
		tick:     tick,
		games:    defaultGames,
		now:      time.Now,
		unlocked: make(map[uint32]map[string]time.Time),
	}
}

func (g *Generator) Path() string { return g.path }

// Start creates the log file, truncating any previous run, and writes the
// script in the background until ctx is done.
func (g *Generator) Start(ctx context.Context) error {
	if err := os.WriteFile(g.path, []byte(g.header()), 0644); err != nil {
		return fmt.Errorf("mock log: %w", err)
	}
	log.Printf("[mock] Writing synthetic content log to %s", g.path)
	go g.run(ctx)
	return nil
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.step(); err != nil {
				log.Printf("[mock] %v", err)
			}
		}
	}
}

// step advances the script by one tick. A game is launched, its
// achievements unlock on schedule, it exits, and after a short idle gap
// the next game in the list launches.
func (g *Generator) step() error {
	if g.idleTicks > 0 {
		g.idleTicks--
		return nil
	}

	game := g.games[g.gameIdx]
	if g.gameTick == 0 {
		g.launch(game)
		g.gameTick++
		return g.appendLine(fmt.Sprintf("Game process added : AppID %d \"%s\", ProcID %d, IP 0.0.0.0:0", game.appID, game.exe, game.pid))
	}

	if g.gameTick >= game.playTicks {
		g.exit(game)
		if err := g.appendLine(fmt.Sprintf("Game process removed: AppID %d \"%s\", ProcID %d, IP 0.0.0.0:0", game.appID, game.exe, game.pid)); err != nil {
			return err
		}
		g.gameIdx = (g.gameIdx + 1) % len(g.games)
		g.gameTick = 0
		g.idleTicks = 2
		if game.rotateAfter {
			return g.rotate()
		}
		return nil
	}

	for _, a := range game.achievements {
		if a.unlockTick == g.gameTick {
			g.unlock(game.appID, a.apiName)
		}
	}
	g.gameTick++
	return nil
}

func (g *Generator) launch(game mockGame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = game.appID
	unlocked := make(map[string]time.Time)
	for _, a := range game.achievements {
		if a.unlockTick == 0 {
			unlocked[a.apiName] = g.now().Add(-24 * time.Hour)
		}
	}
	g.unlocked[game.appID] = unlocked
}

func (g *Generator) exit(game mockGame) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == game.appID {
		g.running = 0
	}
}

func (g *Generator) unlock(appID uint32, apiName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.unlocked[appID]; ok {
		m[apiName] = g.now()
	}
}

func (g *Generator) header() string {
	return fmt.Sprintf("[%s] Log session started\n", g.now().Format("2006-01-02 15:04:05"))
}

func (g *Generator) appendLine(line string) error {
	f, err := os.OpenFile(g.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", g.now().Format("2006-01-02 15:04:05"), line)
	return err
}

// rotate moves the current log aside and starts a fresh one, the way the
// client does on restart.
func (g *Generator) rotate() error {
	if err := os.Rename(g.path, g.path+".previous"); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	log.Printf("[mock] Rotated %s", g.path)
	return os.WriteFile(g.path, []byte(g.header()), 0644)
}

// Snapshot reports the scripted achievements for appID. Games without
// achievements return an empty snapshot.
func (g *Generator) Snapshot(ctx context.Context, appID uint32) (achievement.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var game *mockGame
	for i := range g.games {
		if g.games[i].appID == appID {
			game = &g.games[i]
			break
		}
	}
	if game == nil {
		return achievement.Snapshot{}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	unlocked := g.unlocked[appID]

	snap := make(achievement.Snapshot, 0, len(game.achievements))
	for _, a := range game.achievements {
		r := achievement.Record{
			APIName:     a.apiName,
			Name:        a.name,
			Description: a.description,
			Percent:     a.percent,
		}
		if at, ok := unlocked[a.apiName]; ok {
			r.Unlocked = true
			r.UnlockTime = &at
		}
		snap = append(snap, r)
	}
	return snap, nil
}
