package notify

import (
	"fmt"
	"strconv"
	"time"
)

func itoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

// Message renders the one-line text used by simple payloads.
func Message(ev Event) string {
	switch ev.Kind {
	case KindSessionStarted:
		return fmt.Sprintf("Now playing %s (%d)", ev.gameName(), ev.Session.AppID)
	case KindSessionEnded:
		return fmt.Sprintf("Stopped playing %s after %s", ev.gameName(), formatDuration(ev.Session.Duration(ev.At)))
	case KindAchievementUnlocked:
		a := ev.Achievement
		return fmt.Sprintf("Achievement unlocked in %s: %s (%s, %.1f%%)", ev.gameName(), a.Title(), a.Rarity, a.Percent)
	}
	return string(ev.Kind)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
