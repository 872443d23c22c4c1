// Package fakesite serves a stand-in for a WordPress site running the remote
// management plugin. It is used by tests and by the fakesite command to
// exercise probes without a real WordPress install.
package fakesite

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const (
	headerAPIKey      = "X-WRMS-API-Key"
	headerAPIKeyAlias = "X-API-Key"
)

// Config controls how the fake site behaves.
type Config struct {
	// APIKey is the only key accepted.
	APIKey string

	// Namespace of the REST routes. Default: "wrms".
	Namespace string

	// BadKeyStatus is returned for a wrong key. Default: 403.
	// A missing key always gets 401.
	BadKeyStatus int

	// SkipAuth serves every request regardless of key.
	SkipAuth bool

	// RateLimit caps requests across all clients per RateWindow.
	// Zero disables throttling.
	RateLimit  int
	RateWindow time.Duration

	// Latency delays every response.
	Latency time.Duration

	// Status overrides the status body. Default: DefaultStatus().
	Status map[string]any

	// OmitFields are removed from the status body before it is served.
	OmitFields []string
}

// DefaultStatus returns a complete status body.
func DefaultStatus() map[string]any {
	return map[string]any{
		"wordpress_version": "6.6.2",
		"php_version":       "8.2.20",
		"mysql_version":     "8.0.36",
		"site_url":          "https://example.test",
		"site_name":         "Example",
		"active_theme":      "twentytwentyfour",
		"is_multisite":      false,
		"plugin_version":    "1.4.0",
	}
}

// Site is a fake remote site. It implements http.Handler.
type Site struct {
	cfg     Config
	router  chi.Router
	hits    atomic.Int64
	started time.Time
}

// New builds a Site from cfg.
func New(cfg Config) *Site {
	if cfg.Namespace == "" {
		cfg.Namespace = "wrms"
	}
	if cfg.BadKeyStatus == 0 {
		cfg.BadKeyStatus = http.StatusForbidden
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.Status == nil {
		cfg.Status = DefaultStatus()
	}

	s := &Site{cfg: cfg, started: time.Now()}
	s.router = s.routes()
	return s
}

func (s *Site) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "rest_no_route", "No route was found matching the URL and request method.")
	})

	r.Route("/wp-json/"+s.cfg.Namespace+"/v1", func(r chi.Router) {
		r.Use(s.count)
		if s.cfg.Latency > 0 {
			r.Use(s.delay)
		}
		if !s.cfg.SkipAuth {
			r.Use(s.requireKey)
		}
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.Limit(
				s.cfg.RateLimit,
				s.cfg.RateWindow,
				httprate.WithKeyFuncs(func(*http.Request) (string, error) { return "*", nil }),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rest_rate_limited", "Too many requests.")
				}),
			))
		}
		r.NotFound(notFound)

		r.Get("/status", s.status)
		r.Get("/health", s.health)
		r.Get("/plugins", s.plugins)
		r.Get("/updates", s.updates)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hits returns the number of requests that reached the REST namespace.
func (s *Site) Hits() int64 {
	return s.hits.Load()
}

func (s *Site) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Site) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.cfg.Latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Site) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerAPIKey)
		if key == "" {
			key = r.Header.Get(headerAPIKeyAlias)
		}

		switch {
		case key == "":
			writeError(w, http.StatusUnauthorized, "rest_missing_api_key", "API key is required.")
		case key != s.cfg.APIKey:
			writeError(w, s.cfg.BadKeyStatus, "rest_forbidden", "Invalid API key.")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Site) status(w http.ResponseWriter, r *http.Request) {
	body := make(map[string]any, len(s.cfg.Status)+1)
	for k, v := range s.cfg.Status {
		body[k] = v
	}
	for _, f := range s.cfg.OmitFields {
		delete(body, f)
	}
	if _, ok := body["timestamp"]; !ok {
		body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Site) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "good",
		"checks": map[string]any{
			"database":   map[string]string{"status": "good"},
			"filesystem": map[string]string{"status": "good"},
			"cron":       map[string]string{"status": "good", "message": "uptime " + time.Since(s.started).Round(time.Second).String()},
		},
	})
}

func (s *Site) plugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": []map[string]any{
			{"name": "WRMS Remote Management", "slug": "wrms", "version": "1.4.0", "active": true, "update_available": false},
			{"name": "Akismet Anti-spam", "slug": "akismet", "version": "5.3", "active": true, "update_available": true, "new_version": "5.3.3"},
			{"name": "Hello Dolly", "slug": "hello-dolly", "version": "1.7.2", "active": false, "update_available": false},
		},
	})
}

func (s *Site) updates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"core": map[string]string{"current_version": "6.6.2", "new_version": "6.7.1"},
		"plugins": []map[string]string{
			{"name": "Akismet Anti-spam", "current_version": "5.3", "new_version": "5.3.3"},
		},
		"themes": []map[string]string{},
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "rest_no_route", "No route was found matching the URL and request method.")
}

// writeError writes a WordPress REST error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
		"data":    map[string]int{"status": status},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NullField returns a copy of DefaultStatus with field set to JSON null.
func NullField(field string) map[string]any {
	status := DefaultStatus()
	status[strings.TrimSpace(field)] = nil
	return status
}
