package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/achievement-notifier/backend/internal/achievement"
)

// Embed colors per rarity tier; session events use the neutral color.
const (
	colorNeutral  = 0x5865F2
	colorRare     = 0xF1C40F
	colorSemiRare = 0x9B59B6
	colorMain     = 0x95A5A6
)

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Thumbnail   *discordImage  `json:"thumbnail,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// DiscordSink posts to a Discord webhook URL. Simple mode sends a plain
// content message; full mode sends a rich embed.
type DiscordSink struct {
	httpSink
}

func NewDiscordSink(ep Endpoint) *DiscordSink {
	return &DiscordSink{httpSink: newHTTPSink(SinkDiscord, ep)}
}

func (s *DiscordSink) Deliver(ctx context.Context, ev Event) error {
	payload := discordPayload{Username: "Achievement Notifier"}
	if s.full() {
		payload.Embeds = []discordEmbed{discordEmbedFor(ev)}
	} else {
		payload.Content = Message(ev)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.post(ctx, "application/json", body)
}

func discordEmbedFor(ev Event) discordEmbed {
	e := discordEmbed{
		Color:     colorNeutral,
		Timestamp: ev.At.UTC().Format(time.RFC3339),
		Footer:    &discordFooter{Text: ev.gameName()},
	}
	switch ev.Kind {
	case KindSessionStarted:
		e.Title = "Now playing " + ev.gameName()
		e.Fields = []discordField{{Name: "AppID", Value: itoa(ev.Session.AppID), Inline: true}}
	case KindSessionEnded:
		e.Title = "Stopped playing " + ev.gameName()
		e.Fields = []discordField{
			{Name: "AppID", Value: itoa(ev.Session.AppID), Inline: true},
			{Name: "Played", Value: formatDuration(ev.Session.Duration(ev.At)), Inline: true},
		}
	case KindAchievementUnlocked:
		a := ev.Achievement
		e.Title = a.Title()
		e.Description = a.Description
		e.Color = rarityColor(a.Rarity)
		if a.Icon != "" {
			e.Thumbnail = &discordImage{URL: a.Icon}
		}
		e.Fields = []discordField{
			{Name: "Rarity", Value: string(a.Rarity), Inline: true},
			{Name: "Global", Value: fmt.Sprintf("%.1f%%", a.Percent), Inline: true},
		}
	}
	return e
}

func rarityColor(r achievement.Rarity) int {
	switch r {
	case achievement.RarityRare:
		return colorRare
	case achievement.RaritySemiRare:
		return colorSemiRare
	}
	return colorMain
}
