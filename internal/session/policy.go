package session

// Policy decides which applications may start a session. In exclusion
// mode (the default) listed app IDs are ignored; in inclusion mode only
// listed app IDs are tracked. The zero value allows everything.
type Policy struct {
	AppIDs        map[uint32]bool
	InclusionMode bool
}

// NewPolicy builds a Policy from a list of app IDs.
func NewPolicy(ids []uint32, inclusionMode bool) Policy {
	p := Policy{
		AppIDs:        make(map[uint32]bool, len(ids)),
		InclusionMode: inclusionMode,
	}
	for _, id := range ids {
		p.AppIDs[id] = true
	}
	return p
}

// IsAllowed reports whether appID may become the tracked session.
func (p Policy) IsAllowed(appID uint32) bool {
	listed := p.AppIDs[appID]
	if p.InclusionMode {
		return listed
	}
	return !listed
}

// IsNoop reports whether the policy admits every application.
func (p Policy) IsNoop() bool {
	return !p.InclusionMode && len(p.AppIDs) == 0
}
