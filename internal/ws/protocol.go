package ws

import (
	"github.com/achievement-notifier/backend/internal/monitor"
	"github.com/achievement-notifier/backend/internal/notify"
	"github.com/achievement-notifier/backend/internal/session"
)

type MessageType string

const (
	MsgStatus              MessageType = "status"
	MsgSessionStarted      MessageType = "session_started"
	MsgSessionEnded        MessageType = "session_ended"
	MsgAchievementUnlocked MessageType = "achievement_unlocked"
	MsgError               MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusPayload is sent to every overlay client on connect and served by
// /api/status.
type StatusPayload struct {
	State    session.State    `json:"state"`
	Session  *session.Session `json:"session,omitempty"`
	Monitor  monitor.Status   `json:"monitor"`
	Overlays int              `json:"overlays"`
}

// PopupPayload is what the overlay renders for a single notification.
type PopupPayload struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Game    string  `json:"game,omitempty"`
	AppID   uint32  `json:"appId,omitempty"`
	Icon    string  `json:"icon,omitempty"`
	Rarity  string  `json:"rarity,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	At      string  `json:"at"`
}

type HealthPayload struct {
	Sinks []notify.SinkHealth `json:"sinks"`
}

var messageTypes = map[notify.Kind]MessageType{
	notify.KindSessionStarted:      MsgSessionStarted,
	notify.KindSessionEnded:        MsgSessionEnded,
	notify.KindAchievementUnlocked: MsgAchievementUnlocked,
}
