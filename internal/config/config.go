package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/achievement-notifier/backend/internal/achievement"
	"github.com/achievement-notifier/backend/internal/notify"
	"github.com/achievement-notifier/backend/internal/session"
	"github.com/achievement-notifier/backend/internal/tail"
)

const (
	// MinPollIntervalMs is the hard floor for achievement polling. Values
	// configured below it are clamped rather than rejected.
	MinPollIntervalMs = 1000

	DefaultPollIntervalMs = 5000
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Tail         TailConfig         `yaml:"tail"`
	Sessions     SessionsConfig     `yaml:"sessions"`
	Achievements AchievementsConfig `yaml:"achievements"`
	Notify       NotifyConfig       `yaml:"notify"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxConnections caps overlay websocket clients; 0 means unlimited.
	MaxConnections int      `yaml:"max_connections"`
}

// LogConfig locates the watched content log. Path overrides the
// platform defaults returned by DefaultLogPaths.
type LogConfig struct {
	Path string `yaml:"path"`
}

type TailConfig struct {
	// Watcher selects the change notification mechanism: "native" uses
	// the OS file watcher, "poll" uses periodic stat-and-compare.
	Watcher        string        `yaml:"watcher"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RotationGrace  time.Duration `yaml:"rotation_grace"`
	FallbackScan   bool          `yaml:"fallback_scan"`
	FallbackPeriod time.Duration `yaml:"fallback_period"`
}

type SessionsConfig struct {
	Exclusions    []uint32 `yaml:"exclusions"`
	InclusionMode bool     `yaml:"inclusion_mode"`
}

type AchievementsConfig struct {
	RarityThreshold     float64 `yaml:"rarity_threshold"`
	SemiRarityThreshold float64 `yaml:"semi_rarity_threshold"`
	TrophyMode          bool    `yaml:"trophy_mode"`
	PollIntervalMs      int     `yaml:"poll_interval_ms"`
	SnapshotEndpoint    string  `yaml:"snapshot_endpoint"`
}

// NotifyConfig selects the sinks. FailureThreshold is the number of
// consecutive failures after which a sink is reported as failed.
type NotifyConfig struct {
	SuppressPopups   bool          `yaml:"suppress_popups"`
	DeliveryTimeout  time.Duration `yaml:"delivery_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Popup            PopupConfig   `yaml:"popup"`
	Discord          SinkConfig    `yaml:"discord"`
	HomeAssistant    SinkConfig    `yaml:"homeassistant"`
	Webhooks         []SinkConfig  `yaml:"webhooks"`
}

type PopupConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SinkConfig is the per-sink configuration shared by every HTTP sink.
type SinkConfig struct {
	Name        string     `yaml:"name"`
	Enabled     bool       `yaml:"enabled"`
	Destination string     `yaml:"destination"`
	PayloadMode string     `yaml:"payload_mode"`
	Auth        AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// envOverrides holds the settings that may be supplied through the
// environment. Secrets belong here rather than in the YAML file.
type envOverrides struct {
	LogPath            string `env:"NOTIFIER_LOG_PATH"`
	Host               string `env:"NOTIFIER_HOST"`
	Port               int    `env:"NOTIFIER_PORT"`
	AuthToken          string `env:"NOTIFIER_AUTH_TOKEN"`
	SuppressPopups     *bool  `env:"NOTIFIER_SUPPRESS_POPUPS"`
	DiscordWebhook     string `env:"NOTIFIER_DISCORD_WEBHOOK"`
	HomeAssistantURL   string `env:"NOTIFIER_HOMEASSISTANT_URL"`
	HomeAssistantToken string `env:"NOTIFIER_HOMEASSISTANT_TOKEN"`
	SnapshotEndpoint   string `env:"NOTIFIER_SNAPSHOT_ENDPOINT"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "127.0.0.1",
			MaxConnections: 16,
		},
		Tail: TailConfig{
			Watcher:        "native",
			PollInterval:   500 * time.Millisecond,
			RotationGrace:  time.Second,
			FallbackScan:   true,
			FallbackPeriod: 5 * time.Second,
		},
		Achievements: AchievementsConfig{
			RarityThreshold:     10,
			SemiRarityThreshold: 25,
			PollIntervalMs:      DefaultPollIntervalMs,
		},
		Notify: NotifyConfig{
			DeliveryTimeout:  10 * time.Second,
			FailureThreshold: notify.DefaultFailureThreshold,
			Popup:            PopupConfig{Enabled: true},
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults (with env
// overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = defaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if ov.LogPath != "" {
		c.Log.Path = ov.LogPath
	}
	if ov.Host != "" {
		c.Server.Host = ov.Host
	}
	if ov.Port > 0 {
		c.Server.Port = ov.Port
	}
	if ov.AuthToken != "" {
		c.Server.AuthToken = ov.AuthToken
	}
	if ov.SuppressPopups != nil {
		c.Notify.SuppressPopups = *ov.SuppressPopups
	}
	if ov.DiscordWebhook != "" {
		c.Notify.Discord.Destination = ov.DiscordWebhook
		c.Notify.Discord.Enabled = true
	}
	if ov.HomeAssistantURL != "" {
		c.Notify.HomeAssistant.Destination = ov.HomeAssistantURL
		c.Notify.HomeAssistant.Enabled = true
	}
	if ov.HomeAssistantToken != "" {
		c.Notify.HomeAssistant.Auth.Token = ov.HomeAssistantToken
	}
	if ov.SnapshotEndpoint != "" {
		c.Achievements.SnapshotEndpoint = ov.SnapshotEndpoint
	}
	return nil
}

// Validate rejects settings that cannot be used and clamps the ones that
// have a floor. It does not check sink destinations: a sink with a missing
// destination is a per-event delivery error, not a startup error.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Tail.Watcher {
	case "", "native", "poll":
	default:
		return fmt.Errorf("tail.watcher must be native or poll, got %q", c.Tail.Watcher)
	}
	if err := checkPercent("achievements.rarity_threshold", c.Achievements.RarityThreshold); err != nil {
		return err
	}
	if err := checkPercent("achievements.semi_rarity_threshold", c.Achievements.SemiRarityThreshold); err != nil {
		return err
	}
	if c.Achievements.PollIntervalMs < MinPollIntervalMs {
		c.Achievements.PollIntervalMs = MinPollIntervalMs
	}
	if c.Notify.FailureThreshold < 0 {
		return fmt.Errorf("notify.failure_threshold must not be negative, got %d", c.Notify.FailureThreshold)
	}

	// Sink health is reported by name, so enabled sinks must not share one.
	seen := map[string]bool{}
	if c.Notify.Popup.Enabled {
		seen["popup"] = true
	}
	for _, hs := range c.Notify.httpSinks() {
		switch hs.cfg.PayloadMode {
		case "", "simple", "full":
		default:
			return fmt.Errorf("sink %q: payload_mode must be simple or full, got %q", hs.name, hs.cfg.PayloadMode)
		}
		if !hs.cfg.Enabled {
			continue
		}
		if seen[hs.name] {
			return fmt.Errorf("sink name %q is used by more than one enabled sink", hs.name)
		}
		seen[hs.name] = true
	}
	return nil
}

func checkPercent(name string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be within [0,100], got %v", name, v)
	}
	return nil
}

// httpSink is an HTTP sink entry paired with the name it is reported under.
type httpSink struct {
	kind notify.SinkKind
	name string
	cfg  SinkConfig
}

func (n NotifyConfig) httpSinks() []httpSink {
	out := []httpSink{
		{kind: notify.SinkDiscord, name: n.Discord.nameOr("discord"), cfg: n.Discord},
		{kind: notify.SinkHomeAssistant, name: n.HomeAssistant.nameOr("homeassistant"), cfg: n.HomeAssistant},
	}
	for i, w := range n.Webhooks {
		out = append(out, httpSink{kind: notify.SinkWebhook, name: w.nameOr(fmt.Sprintf("webhook-%d", i+1)), cfg: w})
	}
	return out
}

// NewWatcher returns the change notifier factory selected by Watcher.
func (t TailConfig) NewWatcher() tail.WatcherFactory {
	if t.Watcher == "poll" {
		return tail.PollingWatcher(t.PollInterval)
	}
	return tail.NativeWatcher(t.PollInterval)
}

// PollInterval returns the achievement poll interval, never below the floor.
func (a AchievementsConfig) PollInterval() time.Duration {
	ms := a.PollIntervalMs
	if ms < MinPollIntervalMs {
		ms = MinPollIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// NewClassifier builds the rarity classifier from the configured thresholds.
func (a AchievementsConfig) NewClassifier() achievement.Classifier {
	return achievement.Classifier{
		RarityThreshold:     a.RarityThreshold,
		SemiRarityThreshold: a.SemiRarityThreshold,
		TrophyMode:          a.TrophyMode,
	}
}

// NewPolicy builds the session admission policy from the exclusion list.
func (s SessionsConfig) NewPolicy() session.Policy {
	return session.NewPolicy(s.Exclusions, s.InclusionMode)
}

// RouterOptions returns the notification router settings.
func (n NotifyConfig) RouterOptions() notify.RouterOptions {
	return notify.RouterOptions{
		SuppressPopups:   n.SuppressPopups,
		DeliveryTimeout:  n.DeliveryTimeout,
		FailureThreshold: n.FailureThreshold,
	}
}

// NewSinks builds one sink per enabled entry. Enabled sinks are built even
// when their destination is missing; the router reports those per event.
func (n NotifyConfig) NewSinks(overlay notify.Overlay) []notify.Sink {
	var sinks []notify.Sink
	if n.Popup.Enabled {
		sinks = append(sinks, notify.NewPopupSink(overlay))
	}
	for _, hs := range n.httpSinks() {
		if !hs.cfg.Enabled {
			continue
		}
		ep := hs.cfg.endpoint(hs.name)
		switch hs.kind {
		case notify.SinkDiscord:
			sinks = append(sinks, notify.NewDiscordSink(ep))
		case notify.SinkHomeAssistant:
			sinks = append(sinks, notify.NewHomeAssistantSink(ep))
		default:
			sinks = append(sinks, notify.NewWebhookSink(ep))
		}
	}
	return sinks
}

func (s SinkConfig) nameOr(fallback string) string {
	if s.Name == "" {
		return fallback
	}
	return s.Name
}

func (s SinkConfig) endpoint(name string) notify.Endpoint {
	return notify.Endpoint{
		Name:        name,
		Destination: s.Destination,
		Mode:        notify.PayloadMode(s.PayloadMode),
		Auth: notify.Auth{
			Token:    s.Auth.Token,
			Username: s.Auth.Username,
			Password: s.Auth.Password,
		},
	}
}
