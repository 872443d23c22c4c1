package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/config"
	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `
service:
  port: "9090"
probe:
  timeout: 10s
  header_name: X-API-Key
  rate_limit_requests: 8
sweep:
  interval: 5m
  concurrency: 2
sites:
  - name: shop
    base_url: https://shop.example.com
    api_key: ${SHOP_KEY}
  - base_url: https://blog.example.com/wp
    api_key: literal-key
    timeout: 3s
    required_fields: [site_url]
`

func TestLoad(t *testing.T) {
	t.Setenv("SHOP_KEY", "from-env")
	path := writeFile(t, "wrmsprobe.yml", sampleConfig)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Service.Port)
	assert.Equal(t, "wrmsprobe", cfg.Service.Name)
	assert.Equal(t, 10*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 2, cfg.Sweep.Concurrency)
	require.Len(t, cfg.Sites, 2)
	assert.Equal(t, "from-env", cfg.Sites[0].APIKey)
	assert.Equal(t, "literal-key", cfg.Sites[1].APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOP_KEY", "k")
	t.Setenv("APP_PORT", "7070")
	t.Setenv("WRMS_TIMEOUT", "45s")
	t.Setenv("WRMS_REQUIRED_FIELDS", "site_url, php_version")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("SWEEP_CONCURRENCY", "6")
	path := writeFile(t, "wrmsprobe.yml", sampleConfig)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Service.Port)
	assert.Equal(t, 45*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, []string{"site_url", "php_version"}, cfg.Probe.RequiredFields)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 6, cfg.Sweep.Concurrency)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := writeFile(t, "test.env", "SHOP_KEY=dotenv-key\nJWT_SIGNING_KEY=dotenv-signing\n")
	t.Setenv("ENV_FILE", envPath)
	// godotenv sets these; make sure they are removed after the test.
	t.Setenv("SHOP_KEY", "")
	t.Setenv("JWT_SIGNING_KEY", "")
	require.NoError(t, os.Unsetenv("SHOP_KEY"))
	require.NoError(t, os.Unsetenv("JWT_SIGNING_KEY"))

	cfg, err := config.Load(writeFile(t, "wrmsprobe.yml", sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "dotenv-key", cfg.Sites[0].APIKey)
	assert.Equal(t, "dotenv-signing", cfg.Auth.SigningKey)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.Sites)
	assert.Equal(t, wrms.DefaultTimeout, cfg.Probe.Timeout)
	assert.Equal(t, wrms.DefaultRateLimitRequests, cfg.Probe.RateLimitRequests)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.PubSub.Enabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeFile(t, "bad.yml", "sites: [\n"))
	assert.Error(t, err)
}

func TestLoad_InvalidSites(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing key",
			content: "sites:\n  - base_url: https://a.example\n",
			want:    "api_key",
		},
		{
			name:    "bad url",
			content: "sites:\n  - base_url: a.example\n    api_key: k\n",
			want:    "base_url",
		},
		{
			name:    "duplicate names",
			content: "sites:\n  - base_url: https://a.example\n    api_key: k\n  - base_url: https://a.example/\n    api_key: k\n",
			want:    "duplicate site name",
		},
		{
			name:    "unset secret",
			content: "sites:\n  - base_url: https://a.example\n    api_key: ${WRMSPROBE_TEST_UNSET}\n",
			want:    "api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, "wrmsprobe.yml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_ClientConfig(t *testing.T) {
	t.Setenv("SHOP_KEY", "k")
	cfg, err := config.Load(writeFile(t, "wrmsprobe.yml", sampleConfig))
	require.NoError(t, err)

	shop := cfg.ClientConfig(cfg.Sites[0])
	assert.Equal(t, "shop", shop.Name)
	assert.Equal(t, 10*time.Second, shop.Timeout)
	assert.Equal(t, "X-API-Key", shop.HeaderName)
	assert.Equal(t, 8, shop.RateLimitRequests)

	blog := cfg.ClientConfig(cfg.Sites[1])
	assert.Equal(t, 3*time.Second, blog.Timeout)
	assert.Equal(t, []string{"site_url"}, blog.RequiredFields)
}

func TestConfig_Site(t *testing.T) {
	t.Setenv("SHOP_KEY", "k")
	cfg, err := config.Load(writeFile(t, "wrmsprobe.yml", sampleConfig))
	require.NoError(t, err)

	site, ok := cfg.Site("shop")
	require.True(t, ok)
	assert.Equal(t, "https://shop.example.com", site.BaseURL)

	site, ok = cfg.Site("blog.example.com")
	require.True(t, ok)
	assert.Equal(t, "literal-key", site.APIKey)

	_, ok = cfg.Site("unknown")
	assert.False(t, ok)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "default.yml", config.Path("default.yml"))

	t.Setenv("CONFIG_PATH", "/etc/wrmsprobe.yml")
	assert.Equal(t, "/etc/wrmsprobe.yml", config.Path("default.yml"))
}
