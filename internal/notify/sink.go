package notify

import (
	"context"
	"fmt"
)

// SinkKind identifies the delivery mechanism of a sink.
type SinkKind string

const (
	SinkPopup         SinkKind = "popup"
	SinkWebhook       SinkKind = "webhook"
	SinkDiscord       SinkKind = "discord"
	SinkHomeAssistant SinkKind = "homeassistant"
)

// Sink is one independent delivery target. Deliver may be called
// concurrently for different events.
type Sink interface {
	Name() string
	Kind() SinkKind
	// Validate reports a ConfigError when the sink cannot deliver with
	// its current configuration.
	Validate() error
	Deliver(ctx context.Context, ev Event) error
}

// ConfigError means a sink is enabled but missing required configuration.
type ConfigError struct {
	Sink   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sink %s misconfigured: %s", e.Sink, e.Reason)
}

// DeliveryError records a non-2xx response for diagnostics.
type DeliveryError struct {
	Sink   string
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("sink %s: HTTP %d: %s", e.Sink, e.Status, e.Body)
}
