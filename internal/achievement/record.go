package achievement

import "time"

// Record is one achievement as reported by the snapshot source.
type Record struct {
	APIName     string     `json:"apiname"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Unlocked    bool       `json:"unlocked"`
	Percent     float64    `json:"percent"`
	UnlockTime  *time.Time `json:"unlockTime,omitempty"`
}

// Snapshot is the full ordered set of records observed at one poll. A
// snapshot is replaced wholesale on each poll, never edited in place.
type Snapshot []Record

// Unlocked describes an achievement that became unlocked during a session.
type Unlocked struct {
	AppID       uint32    `json:"appId"`
	APIName     string    `json:"apiname"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Percent     float64   `json:"percent"`
	Rarity      Rarity    `json:"rarity"`
	UnlockedAt  time.Time `json:"unlockedAt"`
}

// Title returns the display name, falling back to the API name.
func (u Unlocked) Title() string {
	if u.Name != "" {
		return u.Name
	}
	return u.APIName
}
