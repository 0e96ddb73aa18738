package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/achievement-notifier/backend/internal/achievement"
	"github.com/achievement-notifier/backend/internal/config"
	"github.com/achievement-notifier/backend/internal/mock"
	"github.com/achievement-notifier/backend/internal/monitor"
	"github.com/achievement-notifier/backend/internal/notify"
	"github.com/achievement-notifier/backend/internal/session"
	"github.com/achievement-notifier/backend/internal/ws"
)

var (
	configPath string
	logPath    string
	port       int
	mockMode   bool
)

var rootCmd = &cobra.Command{
	Use:          "notifier",
	Short:        "Watch the game client log and announce sessions and achievement unlocks",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.Flags().StringVar(&logPath, "log-path", "", "Override the content log location")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Override server port")
	rootCmd.Flags().BoolVar(&mockMode, "mock", false, "Drive the pipeline from a synthetic log and achievement source")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file (defaults if missing) and applies the
// command line overrides, which win over both file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if logPath != "" {
		cfg.Log.Path = logPath
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	return cfg, nil
}

func run(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	broadcaster := ws.NewBroadcaster(cfg.Server.MaxConnections)
	router := notify.NewRouter(cfg.Notify.NewSinks(broadcaster), cfg.Notify.RouterOptions())

	logFile := cfg.ResolveLogPath()
	var source achievement.Source
	if mockMode {
		log.Println("Starting in mock mode")
		dir, err := os.MkdirTemp("", "notifier-mock-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		gen := mock.NewGenerator(filepath.Join(dir, "content_log.txt"), time.Second)
		if err := gen.Start(ctx); err != nil {
			return err
		}
		logFile = gen.Path()
		source = gen
	} else if cfg.Achievements.SnapshotEndpoint != "" {
		source = achievement.NewHTTPSource(cfg.Achievements.SnapshotEndpoint)
	}

	tracker := session.NewTracker(cfg.Sessions.NewPolicy())
	var engine *achievement.Engine
	if source != nil {
		engine = achievement.NewEngine(source, router, cfg.Achievements.NewClassifier(), cfg.Achievements.PollInterval())
		// The engine must stop polling before the router announces the end
		// of a session, so it observes first.
		tracker.AddObserver(engine)
	} else {
		log.Println("[achievement] No snapshot endpoint configured, achievement polling disabled")
	}
	tracker.AddObserver(router)

	mon := monitor.NewMonitor(monitor.Options{
		LogPath:        logFile,
		Watcher:        cfg.Tail.NewWatcher(),
		RotationGrace:  cfg.Tail.RotationGrace,
		FallbackScan:   cfg.Tail.FallbackScan,
		FallbackPeriod: cfg.Tail.FallbackPeriod,
	}, tracker)
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		mon.Start(ctx)
	}()

	go reloadOnHangup(ctx, &reloader{tracker: tracker, engine: engine, router: router, overlay: broadcaster})

	status := func() ws.StatusPayload {
		st := ws.StatusPayload{State: tracker.State(), Monitor: mon.Status()}
		if s, ok := tracker.Current(); ok {
			st.Session = &s
		}
		return st
	}
	server := ws.NewServer(broadcaster, status, router.Health, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	serveErr := ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, ws.SecurityHeaders(mux))

	log.Println("Shutting down...")
	cancel()
	<-monDone
	if engine != nil {
		engine.Close()
	}
	router.Wait()
	broadcaster.Stop()

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("server: %w", serveErr)
	}
	return nil
}

func reloadOnHangup(ctx context.Context, r *reloader) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig()
			if err != nil {
				log.Printf("Config reload failed, keeping current settings: %v", err)
				continue
			}
			r.apply(cfg)
			log.Println("Config reloaded")
		}
	}
}
