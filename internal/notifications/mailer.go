package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMailTimeout = 10 * time.Second

// Message is a single transactional email.
type Message struct {
	ID      string
	To      string
	Subject string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPMailerConfig configures the HTTP mail relay client.
type HTTPMailerConfig struct {
	Endpoint   string
	Token      string
	Sender     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HTTPMailer posts messages to an HTTP mail relay.
type HTTPMailer struct {
	endpoint string
	token    string
	sender   string
	client   *http.Client
}

// NewHTTPMailer validates the configuration and builds the relay client.
func NewHTTPMailer(cfg HTTPMailerConfig) (*HTTPMailer, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("notifications: mail endpoint is required")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("notifications: mail sender is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultMailTimeout
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &HTTPMailer{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		token:    strings.TrimSpace(cfg.Token),
		sender:   strings.TrimSpace(cfg.Sender),
		client:   client,
	}, nil
}

type mailBody struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
}

// Send posts the message to the relay. A non-2xx response is an error; the
// caller decides whether delivery failures are fatal.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("notifications: recipient is required")
	}

	payload, err := json.Marshal(mailBody{
		MessageID: msg.ID,
		From:      m.sender,
		To:        msg.To,
		Subject:   msg.Subject,
		HTML:      msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("notifications: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notifications: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifications: send mail: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifications: mail relay returned status %d", resp.StatusCode)
	}
	return nil
}
