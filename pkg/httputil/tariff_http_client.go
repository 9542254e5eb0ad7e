// Package httputil provides pooled HTTP clients for the outbound provider
// calls.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration

	KeepAliveInterval time.Duration
}

// DefaultClientConfig returns the baseline configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     30 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// OpenAIClientConfig returns the configuration used for the reasoning
// provider. Vision completions are slow; the timeout is generous.
func OpenAIClientConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.MaxIdleConns = 30
	cfg.MaxConnsPerHost = 30
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.ResponseTimeout = 120 * time.Second
	return cfg
}

// ClassificationClientConfig returns the configuration for the structured
// classification GraphQL endpoint.
func ClassificationClientConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.MaxIdleConnsPerHost = 10
	cfg.MaxConnsPerHost = 50
	cfg.ResponseTimeout = 45 * time.Second
	return cfg
}

// DutyClientConfig returns the configuration for the duty calculation
// endpoint. Duty calls fan out concurrently, so per-host limits are wider.
func DutyClientConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.MaxIdleConnsPerHost = 30
	cfg.ResponseTimeout = 45 * time.Second
	return cfg
}

// NewClient creates a pooled HTTP client from the given config.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.ResponseTimeout,
	}
}

// Shared clients, one per outbound API.
var (
	defaultClient        *http.Client
	classificationClient *http.Client
	dutyClient           *http.Client
)

func init() {
	defaultClient = NewClient(DefaultClientConfig())
	classificationClient = NewClient(ClassificationClientConfig())
	dutyClient = NewClient(DutyClientConfig())
}

// DefaultClient returns the shared default HTTP client.
func DefaultClient() *http.Client {
	return defaultClient
}

// ClassificationClient returns the client for the structured classifier.
func ClassificationClient() *http.Client {
	return classificationClient
}

// DutyClient returns the client for the duty calculation API.
func DutyClient() *http.Client {
	return dutyClient
}

// PostJSON posts a JSON body and decodes a JSON response into out.
// Non-2xx statuses are returned as errors carrying the status code so
// adapters can classify them as transport failures.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	if client == nil {
		client = defaultClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 256))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
