package notify

import "context"

// Overlay displays popups on connected overlay clients.
type Overlay interface {
	ShowPopup(ev Event) error
}

// PopupSink shows events on the local overlay. It is the only sink
// affected by popup suppression.
type PopupSink struct {
	overlay Overlay
}

func NewPopupSink(overlay Overlay) *PopupSink {
	return &PopupSink{overlay: overlay}
}

func (s *PopupSink) Name() string   { return "popup" }
func (s *PopupSink) Kind() SinkKind { return SinkPopup }

func (s *PopupSink) Validate() error {
	if s.overlay == nil {
		return &ConfigError{Sink: "popup", Reason: "no overlay attached"}
	}
	return nil
}

func (s *PopupSink) Deliver(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.overlay.ShowPopup(ev)
}
