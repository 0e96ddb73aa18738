package session

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

type State int

const (
	Idle State = iota
	Tracking
)

var stateNames = map[State]string{
	Idle:     "idle",
	Tracking: "tracking",
}

var stateFromName = map[string]State{
	"idle":     Idle,
	"tracking": Tracking,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := stateFromName[n]; ok {
		*s = v
	}
	return nil
}

// Session is the single application currently considered running.
type Session struct {
	AppID     uint32    `json:"appId"`
	ExeName   string    `json:"exeName"`
	Name      string    `json:"name"`
	PID       uint32    `json:"pid,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Duration reports how long the session has been running at now.
func (s Session) Duration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() || now.Before(s.StartedAt) {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// displayName derives a human name from the executable reported in the
// log, e.g. "C:\Games\Portal 2\portal2.exe" becomes "portal2".
func displayName(exe string) string {
	name := strings.TrimSpace(exe)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".exe") || strings.EqualFold(ext, ".sh") || strings.EqualFold(ext, ".x86_64") {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return exe
	}
	return name
}
