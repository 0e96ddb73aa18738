package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PayloadMode selects between a short text message and the full event.
type PayloadMode string

const (
	PayloadSimple PayloadMode = "simple"
	PayloadFull   PayloadMode = "full"
)

// Auth holds optional credentials for an HTTP sink. Token wins over basic
// auth when both are set.
type Auth struct {
	Token    string
	Username string
	Password string
}

// Endpoint configures one HTTP sink.
type Endpoint struct {
	Name        string
	Destination string
	Mode        PayloadMode
	Auth        Auth
}

var defaultClient = &http.Client{Timeout: 15 * time.Second}

// httpSink carries what every HTTP-backed sink shares: the destination
// check, auth headers and the 2xx-is-success rule.
type httpSink struct {
	kind   SinkKind
	ep     Endpoint
	client *http.Client
}

func newHTTPSink(kind SinkKind, ep Endpoint) httpSink {
	if ep.Name == "" {
		ep.Name = string(kind)
	}
	if ep.Mode == "" {
		ep.Mode = PayloadSimple
	}
	return httpSink{kind: kind, ep: ep, client: defaultClient}
}

func (s *httpSink) Name() string   { return s.ep.Name }
func (s *httpSink) Kind() SinkKind { return s.kind }

func (s *httpSink) Validate() error {
	dest := strings.TrimSpace(s.ep.Destination)
	if dest == "" {
		return &ConfigError{Sink: s.ep.Name, Reason: "no destination configured"}
	}
	u, err := url.Parse(dest)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Sink: s.ep.Name, Reason: fmt.Sprintf("destination %q is not an http(s) URL", dest)}
	}
	return nil
}

func (s *httpSink) full() bool {
	return s.ep.Mode == PayloadFull
}

// post sends body to the destination. Any 2xx status is success; other
// statuses become a DeliveryError carrying the start of the response body.
func (s *httpSink) post(ctx context.Context, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(s.ep.Destination), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "achievement-notifier")
	switch {
	case s.ep.Auth.Token != "":
		req.Header.Set("Authorization", "Bearer "+s.ep.Auth.Token)
	case s.ep.Auth.Username != "":
		req.SetBasicAuth(s.ep.Auth.Username, s.ep.Auth.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink %s: %w", s.ep.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{Sink: s.ep.Name, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
