package main

import (
	"github.com/achievement-notifier/backend/internal/achievement"
	"github.com/achievement-notifier/backend/internal/config"
	"github.com/achievement-notifier/backend/internal/notify"
	"github.com/achievement-notifier/backend/internal/session"
)

// reloader pushes the settings that can change at runtime into the running
// components. Server address, log path and watcher choice need a restart.
type reloader struct {
	tracker *session.Tracker
	engine  *achievement.Engine
	router  *notify.Router
	overlay notify.Overlay
}

func (r *reloader) apply(cfg *config.Config) {
	r.tracker.SetPolicy(cfg.Sessions.NewPolicy())
	if r.engine != nil {
		r.engine.SetClassifier(cfg.Achievements.NewClassifier())
		r.engine.SetInterval(cfg.Achievements.PollInterval())
	}
	r.router.SetSinks(cfg.Notify.NewSinks(r.overlay), cfg.Notify.RouterOptions())
}
