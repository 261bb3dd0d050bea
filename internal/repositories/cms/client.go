package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 10 * time.Second

	tracerName = "github.com/zerno-shop/api/internal/repositories/cms"
)

// Error categorises failures of the CMS content API for the service layer.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cms: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cms: %s: unexpected status %d", e.Op, e.StatusCode)
}

// Unwrap exposes the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether the CMS answered 404.
func (e *Error) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsConflict reports whether the CMS rejected the write as conflicting.
func (e *Error) IsConflict() bool { return e.StatusCode == http.StatusConflict }

// IsUnavailable reports whether the CMS was unreachable or failing.
func (e *Error) IsUnavailable() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Config configures the CMS content API client.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is a thin JSON client for the CMS content API. Repositories build their
// entity semantics on top of it.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("cms: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("cms: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    httpClient,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Close releases client resources. The underlying transport is shared, so this is a no-op.
func (c *Client) Close(context.Context) error { return nil }

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	return c.do(ctx, op, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	return c.do(ctx, op, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, op, path string, body, out any) error {
	return c.do(ctx, op, http.MethodPut, path, body, out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	return c.do(ctx, op, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	ctx, span := c.tracer.Start(ctx, "cms."+op,
		trace.WithAttributes(attribute.String("http.request.method", method)))
	defer span.End()
	req = req.WithContext(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
