// Package wrms verifies the health of a remote WordPress site through the
// remote management plugin's REST API. A Client runs a fixed battery of
// probes against one site and returns a ResultSet; it never renders output
// and never retries on its own.
package wrms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/telemetry"
)

const (
	tracerName = "github.com/wrmsprobe/wrmsprobe/internal/wrms"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	userAgent = "wrmsprobe/1"
)

// Client probes one remote site.
type Client struct {
	cfg        ClientConfig
	httpClient *resilience.Client
	logger     zerolog.Logger
	metrics    *telemetry.ProbeMetrics
	tracer     trace.Tracer
}

// NewClient validates cfg and returns a client for the site it describes.
// The returned error is always a *ConfigError.
func NewClient(cfg ClientConfig) (*Client, error) {
	normalized, _, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	httpClient := normalized.HTTPClient
	if httpClient == nil {
		rc := resilience.ProbeClientConfig(normalized.Name, normalized.Timeout)
		rc.Registry = normalized.Registry
		httpClient = resilience.NewClient(rc)
	}

	logger := normalized.Logger.With().
		Str("site", normalized.Name).
		Logger()

	if len(normalized.APIKey) != APIKeyLength {
		logger.Debug().
			Int("length", len(normalized.APIKey)).
			Msg("api key length differs from issued keys")
	}

	return &Client{
		cfg:        normalized,
		httpClient: httpClient,
		logger:     logger,
		metrics:    normalized.Metrics,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// Configure builds a client from the three required settings.
func Configure(baseURL, apiKey string, timeoutMs int) (*Client, error) {
	return NewClient(ClientConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
	})
}

// Name returns the site label.
func (c *Client) Name() string {
	return c.cfg.Name
}

// BaseURL returns the normalized site root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// endpoint returns the absolute URL of a resource.
func (c *Client) endpoint(resource string) string {
	return fmt.Sprintf("%s/wp-json/%s/v1/%s", c.cfg.BaseURL, c.cfg.Namespace, resource)
}

// reply is a fully read response.
type reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// get performs an authenticated GET using key. Transport failures are
// returned as *NetworkError; any HTTP status is returned as a reply.
func (c *Client) get(ctx context.Context, resource, key string) (*reply, error) {
	url := c.endpoint(resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, networkError("creating request", url, err)
	}
	req.Header.Set(c.cfg.HeaderName, key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", url).Msg("request failed")
		return nil, networkError(http.MethodGet, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError("reading body", url, err)
	}

	c.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	return &reply{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// getJSON fetches resource with the configured key and decodes a 200 body
// into out.
func (c *Client) getJSON(ctx context.Context, resource string, out any) error {
	r, err := c.get(ctx, resource, c.cfg.APIKey)
	if err != nil {
		return err
	}
	if r.StatusCode != http.StatusOK {
		return &ProtocolError{StatusCode: r.StatusCode, Reason: resource + " request rejected"}
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &ProtocolError{StatusCode: r.StatusCode, Reason: "decoding " + resource, Err: err}
	}
	return nil
}

// decodeObject parses a JSON object body.
func decodeObject(r *reply) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(r.Body, &obj); err != nil {
		return nil, &ProtocolError{StatusCode: r.StatusCode, Reason: "body is not a JSON object", Err: err}
	}
	if obj == nil {
		return nil, &ProtocolError{StatusCode: r.StatusCode, Reason: "body is null"}
	}
	return obj, nil
}

// Status fetches the site status.
func (c *Client) Status(ctx context.Context) (*SiteStatus, error) {
	var status SiteStatus
	if err := c.getJSON(ctx, ResourceStatus, &status); err != nil {
		return nil, fmt.Errorf("fetching status: %w", err)
	}
	return &status, nil
}

// Health fetches the site health report.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	var health HealthReport
	if err := c.getJSON(ctx, ResourceHealth, &health); err != nil {
		return nil, fmt.Errorf("fetching health: %w", err)
	}
	return &health, nil
}

// Plugins fetches the installed plugins. Both a bare array and an object
// with a "plugins" array are accepted.
func (c *Client) Plugins(ctx context.Context) ([]Plugin, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, ResourcePlugins, &raw); err != nil {
		return nil, fmt.Errorf("fetching plugins: %w", err)
	}

	var plugins []Plugin
	if err := json.Unmarshal(raw, &plugins); err == nil {
		return plugins, nil
	}

	var list PluginList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("fetching plugins: %w",
			&ProtocolError{StatusCode: http.StatusOK, Reason: "decoding plugins", Err: err})
	}
	return list.Plugins, nil
}

// Updates fetches pending core, plugin and theme updates.
func (c *Client) Updates(ctx context.Context) (*Updates, error) {
	var updates Updates
	if err := c.getJSON(ctx, ResourceUpdates, &updates); err != nil {
		return nil, fmt.Errorf("fetching updates: %w", err)
	}
	return &updates, nil
}
