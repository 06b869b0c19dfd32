// Package transport issues raw HTTP requests against a document store.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/stevemurr/docsource/config"
)

// Response is a raw store reply.
type Response struct {
	Status int
	Body   []byte
}

// Transport is the request/response client the datasource is built on.
// Paths are absolute (leading slash) and may carry a query string.
type Transport interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body []byte) (*Response, error)
	Put(ctx context.Context, path string, body []byte) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)
}

// HTTP is a Transport over net/http with basic auth and optional throttling.
type HTTP struct {
	base       string
	user, pass string
	client     *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient replaces the underlying http.Client.
func WithClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = c }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(h *HTTP) { h.log = l }
}

// NewHTTP creates a transport bound to the base URI described by cfg.
func NewHTTP(cfg config.Connection, opts ...Option) (*HTTP, error) {
	if cfg.Scheme == "" || cfg.Host == "" {
		return nil, fmt.Errorf("transport: scheme and host are required (got %q, %q)", cfg.Scheme, cfg.Host)
	}
	base := cfg.BaseURL()
	base.User = nil
	h := &HTTP{
		base:   strings.TrimSuffix(base.String(), "/"),
		user:   cfg.User,
		pass:   cfg.Pass,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    zerolog.Nop(),
	}
	if cfg.RateLimit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Base returns the base URI without credentials.
func (h *HTTP) Base() string {
	return h.base
}

func (h *HTTP) Get(ctx context.Context, path string) (*Response, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

func (h *HTTP) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

func (h *HTTP) Put(ctx context.Context, path string, body []byte) (*Response, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

func (h *HTTP) Delete(ctx context.Context, path string) (*Response, error) {
	return h.do(ctx, http.MethodDelete, path, nil)
}

func (h *HTTP) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.user != "" {
		req.SetBasicAuth(h.user, h.pass)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	h.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")
	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}
