package notify

import (
	"context"
	"encoding/json"
	"time"
)

// haPayload is posted to a Home Assistant webhook trigger. Simple mode
// fills only Event and Message.
type haPayload struct {
	Event       string  `json:"event"`
	Message     string  `json:"message"`
	AppID       uint32  `json:"app_id,omitempty"`
	Game        string  `json:"game,omitempty"`
	Achievement string  `json:"achievement,omitempty"`
	APIName     string  `json:"apiname,omitempty"`
	Rarity      string  `json:"rarity,omitempty"`
	Percent     float64 `json:"percent,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	At          string  `json:"at,omitempty"`
}

// HomeAssistantSink posts JSON to a Home Assistant webhook or REST event
// endpoint. Auth.Token is sent as a bearer token.
type HomeAssistantSink struct {
	httpSink
}

func NewHomeAssistantSink(ep Endpoint) *HomeAssistantSink {
	return &HomeAssistantSink{httpSink: newHTTPSink(SinkHomeAssistant, ep)}
}

func (s *HomeAssistantSink) Deliver(ctx context.Context, ev Event) error {
	p := haPayload{Event: string(ev.Kind), Message: Message(ev)}
	if s.full() {
		p.Game = ev.gameName()
		p.At = ev.At.UTC().Format(time.RFC3339)
		if ev.Session != nil {
			p.AppID = ev.Session.AppID
		}
		if a := ev.Achievement; a != nil {
			p.AppID = a.AppID
			p.Achievement = a.Title()
			p.APIName = a.APIName
			p.Rarity = string(a.Rarity)
			p.Percent = a.Percent
			p.Icon = a.Icon
		}
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.post(ctx, "application/json", body)
}
