package fakesite_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrmsprobe/wrmsprobe/internal/fakesite"
)

const testKey = "test-key"

func get(t *testing.T, h http.Handler, path, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSite_Status(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey})

	rec := get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://example.test", body["site_url"])
	assert.Contains(t, body, "wordpress_version")
	assert.Contains(t, body, "php_version")
	assert.Contains(t, body, "timestamp")
	assert.Equal(t, int64(1), site.Hits())
}

func TestSite_AliasHeader(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey})

	rec := get(t, site, "/wp-json/wrms/v1/status", "X-API-Key", testKey)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSite_Auth(t *testing.T) {
	tests := []struct {
		name   string
		cfg    fakesite.Config
		header string
		key    string
		want   int
	}{
		{"missing key", fakesite.Config{APIKey: testKey}, "", "", http.StatusUnauthorized},
		{"wrong key", fakesite.Config{APIKey: testKey}, "X-WRMS-API-Key", "wrong-key", http.StatusForbidden},
		{"wrong key custom status", fakesite.Config{APIKey: testKey, BadKeyStatus: http.StatusUnauthorized}, "X-WRMS-API-Key", "wrong-key", http.StatusUnauthorized},
		{"auth skipped", fakesite.Config{APIKey: testKey, SkipAuth: true}, "X-WRMS-API-Key", "wrong-key", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := fakesite.New(tt.cfg)
			rec := get(t, site, "/wp-json/wrms/v1/status", tt.header, tt.key)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSite_ErrorEnvelope(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey})

	rec := get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", "wrong-key")

	var body struct {
		Code string `json:"code"`
		Data struct {
			Status int `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rest_forbidden", body.Code)
	assert.Equal(t, http.StatusForbidden, body.Data.Status)
}

func TestSite_NotFound(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey})

	for _, path := range []string{"/wp-json/wrms/v1/non-existent", "/wp-json/other/v1/status", "/"} {
		rec := get(t, site, path, "X-WRMS-API-Key", testKey)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestSite_CustomNamespace(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, Namespace: "acme"})

	assert.Equal(t, http.StatusOK, get(t, site, "/wp-json/acme/v1/status", "X-WRMS-API-Key", testKey).Code)
	assert.Equal(t, http.StatusNotFound, get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey).Code)
}

func TestSite_OmitFields(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, OmitFields: []string{"php_version"}})

	rec := get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "php_version")
	assert.Contains(t, body, "wordpress_version")
}

func TestSite_NullField(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, Status: fakesite.NullField("site_url")})

	rec := get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	v, ok := body["site_url"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestSite_SecondaryResources(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey})

	for _, resource := range []string{"health", "plugins", "updates"} {
		rec := get(t, site, "/wp-json/wrms/v1/"+resource, "X-WRMS-API-Key", testKey)
		assert.Equal(t, http.StatusOK, rec.Code, resource)
		assert.True(t, json.Valid(rec.Body.Bytes()), resource)
	}
}

func TestSite_RateLimit(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, RateLimit: 3, RateWindow: time.Minute})

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		codes = append(codes, get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey).Code)
	}

	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)
}

func TestSite_RateLimitAfterAuth(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, RateLimit: 1, RateWindow: time.Minute})

	// Rejected keys do not consume the budget.
	assert.Equal(t, http.StatusForbidden, get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", "wrong-key").Code)
	assert.Equal(t, http.StatusOK, get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey).Code)
}

func TestSite_Latency(t *testing.T) {
	site := fakesite.New(fakesite.Config{APIKey: testKey, Latency: 50 * time.Millisecond})

	start := time.Now()
	rec := get(t, site, "/wp-json/wrms/v1/status", "X-WRMS-API-Key", testKey)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
