// Package config loads wrmsprobe settings from a YAML file, .env files and
// environment variables. Environment variables named in `env` tags win over
// the file.
//
// Example file:
//
//	probe:
//	  timeout: 30s
//	  rate_limit_requests: 5
//	sites:
//	  - name: shop
//	    base_url: https://shop.example.com
//	    api_key: ${SHOP_WRMS_KEY}
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Config is the full application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Probe     ProbeConfig     `yaml:"probe"`
	Sweep     SweepConfig     `yaml:"sweep"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Auth      AuthConfig      `yaml:"auth"`
	Sites     []SiteConfig    `yaml:"sites"`
}

// ServiceConfig configures the status API listener.
type ServiceConfig struct {
	Name        string `yaml:"name" env:"SERVICE_NAME"`
	Port        string `yaml:"port" env:"APP_PORT"`
	Environment string `yaml:"environment" env:"APP_ENV"`
	RequireTLS  bool   `yaml:"require_tls" env:"REQUIRE_TLS"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool          `yaml:"enabled" env:"OTEL_ENABLED"`
	OTLPEndpoint string        `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool          `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SampleRatio  float64       `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO"`
	Interval     time.Duration `yaml:"metric_interval" env:"OTEL_METRIC_INTERVAL"`
}

// ProbeConfig holds defaults applied to every site.
type ProbeConfig struct {
	Timeout           time.Duration `yaml:"timeout" env:"WRMS_TIMEOUT"`
	HeaderName        string        `yaml:"header_name" env:"WRMS_HEADER_NAME"`
	Namespace         string        `yaml:"namespace" env:"WRMS_NAMESPACE"`
	RequiredFields    []string      `yaml:"required_fields" env:"WRMS_REQUIRED_FIELDS"`
	RateLimitRequests int           `yaml:"rate_limit_requests" env:"WRMS_RATE_LIMIT_REQUESTS"`
}

// SweepConfig controls fleet sweeps.
type SweepConfig struct {
	Interval    time.Duration `yaml:"interval" env:"SWEEP_INTERVAL"`
	Concurrency int           `yaml:"concurrency" env:"SWEEP_CONCURRENCY"`
	Timeout     time.Duration `yaml:"timeout" env:"SWEEP_TIMEOUT"`
}

// PubSubConfig configures job intake and result publishing.
type PubSubConfig struct {
	ProjectID      string `yaml:"project_id" env:"PUBSUB_PROJECT_ID"`
	Subscription   string `yaml:"subscription" env:"PUBSUB_SUBSCRIPTION"`
	ResultsTopic   string `yaml:"results_topic" env:"PUBSUB_RESULTS_TOPIC"`
	MaxOutstanding int    `yaml:"max_outstanding" env:"PUBSUB_MAX_OUTSTANDING"`
}

// Enabled reports whether a project is configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != ""
}

// AuthConfig configures operator tokens for the status API.
type AuthConfig struct {
	SigningKey string        `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
	Issuer     string        `yaml:"issuer" env:"JWT_ISSUER"`
	Audience   string        `yaml:"audience" env:"JWT_AUDIENCE"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL"`
}

// SiteConfig describes one monitored site. Zero values fall back to
// ProbeConfig.
type SiteConfig struct {
	Name              string        `yaml:"name"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	HeaderName        string        `yaml:"header_name"`
	Namespace         string        `yaml:"namespace"`
	RequiredFields    []string      `yaml:"required_fields"`
	RateLimitRequests int           `yaml:"rate_limit_requests"`
}

// Load reads path (may be empty), applies the environment and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile[Config](path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	cfg.expandSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "wrmsprobe"
	}
	if c.Service.Port == "" {
		c.Service.Port = "8080"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4317"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}

	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = wrms.DefaultTimeout
	}
	if c.Probe.RateLimitRequests == 0 {
		c.Probe.RateLimitRequests = wrms.DefaultRateLimitRequests
	}

	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = 15 * time.Minute
	}
	if c.Sweep.Concurrency == 0 {
		c.Sweep.Concurrency = 3
	}
	if c.Sweep.Timeout == 0 {
		c.Sweep.Timeout = 5 * time.Minute
	}

	if c.PubSub.MaxOutstanding == 0 {
		c.PubSub.MaxOutstanding = 1
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "wrmsprobe"
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = "wrmsprobe-api"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
}

// expandSecrets resolves ${VAR} references in site URLs and keys.
func (c *Config) expandSecrets() {
	for i := range c.Sites {
		c.Sites[i].BaseURL = os.ExpandEnv(c.Sites[i].BaseURL)
		c.Sites[i].APIKey = os.ExpandEnv(c.Sites[i].APIKey)
	}
}

// Validate checks the sites and sweep settings. Site URLs and keys are
// validated by building a client for each site.
func (c *Config) Validate() error {
	var errs []error

	if c.Sweep.Concurrency < 1 {
		errs = append(errs, errors.New("sweep.concurrency must be at least 1"))
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	seen := make(map[string]struct{}, len(c.Sites))
	for i, site := range c.Sites {
		if _, err := wrms.NewClient(c.ClientConfig(site)); err != nil {
			errs = append(errs, fmt.Errorf("sites[%d]: %w", i, err))
			continue
		}
		name := c.ClientName(site)
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("sites[%d]: duplicate site name %q", i, name))
		}
		seen[name] = struct{}{}
	}

	return errors.Join(errs...)
}

// ClientConfig merges site with the probe defaults.
func (c *Config) ClientConfig(site SiteConfig) wrms.ClientConfig {
	cfg := wrms.ClientConfig{
		Name:              site.Name,
		BaseURL:           site.BaseURL,
		APIKey:            site.APIKey,
		Timeout:           site.Timeout,
		HeaderName:        site.HeaderName,
		Namespace:         site.Namespace,
		RequiredFields:    site.RequiredFields,
		RateLimitRequests: site.RateLimitRequests,
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = c.Probe.Timeout
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = c.Probe.HeaderName
	}
	if cfg.Namespace == "" {
		cfg.Namespace = c.Probe.Namespace
	}
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = c.Probe.RequiredFields
	}
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = c.Probe.RateLimitRequests
	}
	return cfg
}

// ClientName returns the name the site will be known by.
func (c *Config) ClientName(site SiteConfig) string {
	if site.Name != "" {
		return site.Name
	}
	cl, err := wrms.NewClient(c.ClientConfig(site))
	if err != nil {
		return site.BaseURL
	}
	return cl.Name()
}

// Site returns the site with the given name.
func (c *Config) Site(name string) (SiteConfig, bool) {
	for _, site := range c.Sites {
		if strings.EqualFold(c.ClientName(site), name) {
			return site, true
		}
	}
	return SiteConfig{}, false
}
