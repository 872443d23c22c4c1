package wrms

import (
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/provider/resilience"
	"github.com/wrmsprobe/wrmsprobe/internal/telemetry"
)

// API key header names accepted by the remote plugin. Both are equivalent;
// the client sends whichever one is configured.
const (
	HeaderAPIKey      = "X-WRMS-API-Key"
	HeaderAPIKeyAlias = "X-API-Key"
)

// Defaults applied by NewClient.
const (
	DefaultNamespace         = "wrms"
	DefaultTimeout           = 30 * time.Second
	DefaultRateLimitRequests = 5

	// APIKeyLength is the length of keys issued by the plugin. Other lengths
	// are accepted but logged.
	APIKeyLength = 64
)

// DefaultRequiredFields are the fields every status response must carry.
var DefaultRequiredFields = []string{"wordpress_version", "php_version", "site_url"}

// ClientConfig configures a Client. NewClient copies it; later changes to the
// caller's value have no effect.
type ClientConfig struct {
	// Name labels the site in results, logs and metrics.
	// Default: host of BaseURL.
	Name string

	// BaseURL is the site root, e.g. https://example.com or
	// https://example.com/blog for a WordPress install in a subdirectory.
	BaseURL string

	// APIKey is the opaque key issued by the plugin (required).
	APIKey string

	// Timeout bounds every request. Zero means DefaultTimeout.
	Timeout time.Duration

	// HeaderName is HeaderAPIKey (default) or HeaderAPIKeyAlias.
	HeaderName string

	// Namespace is the REST namespace. Default: "wrms".
	Namespace string

	// RequiredFields are checked by the data-shape probe during RunAll.
	// Default: DefaultRequiredFields.
	RequiredFields []string

	// RateLimitRequests is the fan-out used by the rate-limit probe during
	// RunAll. Default: DefaultRateLimitRequests.
	RateLimitRequests int

	// HTTPClient overrides the transport. When nil a non-retrying
	// resilience client is created with Timeout.
	HTTPClient *resilience.Client

	// Registry receives transport observations when HTTPClient is nil.
	Registry *resilience.Registry

	// Logger for probe operations.
	Logger zerolog.Logger

	// Metrics records probe outcomes. Optional.
	Metrics *telemetry.ProbeMetrics
}

// withDefaults validates cfg and returns a normalized copy.
func (cfg ClientConfig) withDefaults() (ClientConfig, *url.URL, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return cfg, nil, &ConfigError{Field: "base_url", Reason: "must not be empty"}
	}
	base, err := url.ParseRequestURI(raw)
	if err != nil {
		return cfg, nil, &ConfigError{Field: "base_url", Reason: err.Error()}
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return cfg, nil, &ConfigError{Field: "base_url", Reason: "scheme must be http or https"}
	}
	if base.Host == "" {
		return cfg, nil, &ConfigError{Field: "base_url", Reason: "host is required"}
	}
	if base.RawQuery != "" || base.Fragment != "" {
		return cfg, nil, &ConfigError{Field: "base_url", Reason: "query and fragment are not allowed"}
	}
	base.Path = strings.TrimRight(base.Path, "/")
	cfg.BaseURL = base.String()

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return cfg, nil, &ConfigError{Field: "api_key", Reason: "must not be empty"}
	}

	switch {
	case cfg.Timeout < 0:
		return cfg, nil, &ConfigError{Field: "timeout", Reason: "must not be negative"}
	case cfg.Timeout == 0:
		cfg.Timeout = DefaultTimeout
	}

	switch {
	case cfg.HeaderName == "":
		cfg.HeaderName = HeaderAPIKey
	case strings.EqualFold(cfg.HeaderName, HeaderAPIKey):
		cfg.HeaderName = HeaderAPIKey
	case strings.EqualFold(cfg.HeaderName, HeaderAPIKeyAlias):
		cfg.HeaderName = HeaderAPIKeyAlias
	default:
		return cfg, nil, &ConfigError{
			Field:  "header_name",
			Reason: "must be " + HeaderAPIKey + " or " + HeaderAPIKeyAlias,
		}
	}

	cfg.Namespace = strings.Trim(cfg.Namespace, "/ ")
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if strings.ContainsAny(cfg.Namespace, "/?#") {
		return cfg, nil, &ConfigError{Field: "namespace", Reason: "must be a single path segment"}
	}

	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = DefaultRequiredFields
	}
	cfg.RequiredFields = dedupe(cfg.RequiredFields)

	switch {
	case cfg.RateLimitRequests < 0:
		return cfg, nil, &ConfigError{Field: "rate_limit_requests", Reason: "must not be negative"}
	case cfg.RateLimitRequests == 0:
		cfg.RateLimitRequests = DefaultRateLimitRequests
	}

	if cfg.Name == "" {
		cfg.Name = base.Host
	}

	return cfg, base, nil
}

// dedupe returns a fresh slice with blanks and repeats removed, order kept.
func dedupe(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
