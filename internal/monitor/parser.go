package monitor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/achievement-notifier/backend/internal/session"
)

// gameProcessRe matches the two game process lines of the content log,
// after whitespace runs have been collapsed. The log prefixes each line
// with a bracketed timestamp, which is optional here.
var gameProcessRe = regexp.MustCompile(`^(?:\[[^\]]*\] )?Game process (added :|removed:) AppID (\d+) "(.*)", ProcID (\d+)(?:,|$)`)

// ParseLine maps one content log line to a RawLogEvent. Lines that are not
// game process lines, or whose numeric fields do not fit, report false.
func ParseLine(line string) (session.RawLogEvent, bool) {
	if !strings.Contains(line, "Game process") {
		return session.RawLogEvent{}, false
	}
	collapsed := strings.Join(strings.Fields(line), " ")

	m := gameProcessRe.FindStringSubmatch(collapsed)
	if m == nil {
		return session.RawLogEvent{}, false
	}

	appID, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return session.RawLogEvent{}, false
	}
	pid, err := strconv.ParseUint(m[4], 10, 32)
	if err != nil {
		return session.RawLogEvent{}, false
	}

	kind := session.Added
	if m[1] == "removed:" {
		kind = session.Removed
	}
	return session.RawLogEvent{
		Kind:    kind,
		AppID:   uint32(appID),
		ExeName: m[3],
		PID:     uint32(pid),
	}, true
}
