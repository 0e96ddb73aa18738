package notify

import (
	"context"
	"encoding/json"
)

// WebhookSink posts to an arbitrary URL: the text message as text/plain in
// simple mode, the JSON-encoded event in full mode.
type WebhookSink struct {
	httpSink
}

func NewWebhookSink(ep Endpoint) *WebhookSink {
	return &WebhookSink{httpSink: newHTTPSink(SinkWebhook, ep)}
}

func (s *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	if !s.full() {
		return s.post(ctx, "text/plain; charset=utf-8", []byte(Message(ev)))
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.post(ctx, "application/json", body)
}
