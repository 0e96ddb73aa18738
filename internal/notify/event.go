package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/achievement-notifier/backend/internal/achievement"
	"github.com/achievement-notifier/backend/internal/session"
)

// Kind tags which member of the Event union is populated.
type Kind string

const (
	KindSessionStarted      Kind = "session_started"
	KindSessionEnded        Kind = "session_ended"
	KindAchievementUnlocked Kind = "achievement_unlocked"
)

// Event is a notification handed to sinks by value. Session is set for
// every kind; Achievement only for KindAchievementUnlocked. The pointed-to
// values are never modified after construction.
type Event struct {
	ID          string                `json:"id"`
	Kind        Kind                  `json:"kind"`
	At          time.Time             `json:"at"`
	Session     *session.Session      `json:"session,omitempty"`
	Achievement *achievement.Unlocked `json:"achievement,omitempty"`
}

func NewSessionStarted(s session.Session, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: KindSessionStarted, At: at, Session: &s}
}

func NewSessionEnded(s session.Session, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: KindSessionEnded, At: at, Session: &s}
}

// NewAchievementUnlocked builds an unlock event. s is nil when no session
// is known for the achievement's application.
func NewAchievementUnlocked(u achievement.Unlocked, s *session.Session) Event {
	ev := Event{ID: uuid.NewString(), Kind: KindAchievementUnlocked, At: u.UnlockedAt, Achievement: &u}
	if s != nil {
		cur := *s
		ev.Session = &cur
	}
	return ev
}

// gameName returns the best available name for the event's application.
func (e Event) gameName() string {
	if e.Session != nil && e.Session.Name != "" {
		return e.Session.Name
	}
	if e.Achievement != nil {
		return "app " + itoa(e.Achievement.AppID)
	}
	return "unknown game"
}
