package session

import "fmt"

// EventKind classifies a parsed content log line.
type EventKind int

const (
	Added   EventKind = iota // game process added
	Removed                  // game process removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// RawLogEvent is one game process line from the content log. Values are
// immutable once parsed and are passed by value.
type RawLogEvent struct {
	Kind    EventKind
	AppID   uint32
	ExeName string
	PID     uint32
}

func (e RawLogEvent) String() string {
	return fmt.Sprintf("%s appid=%d exe=%q pid=%d", e.Kind, e.AppID, e.ExeName, e.PID)
}
