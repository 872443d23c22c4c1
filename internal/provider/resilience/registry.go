package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// SiteHealth is the transport-level health of one remote site.
type SiteHealth struct {
	// Name is the site identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the breaker is closed.
func (h *SiteHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the breaker is half-open.
func (h *SiteHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the breaker is open.
func (h *SiteHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks site clients and their health.
type Registry struct {
	mu    sync.RWMutex
	sites map[string]*registeredSite
}

type registeredSite struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sites: make(map[string]*registeredSite),
	}
}

// Register adds a site client to the registry, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[name] = &registeredSite{
		client: client,
	}
}

// Unregister removes a site from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sites, name)
}

// Client returns the registered client for a site.
func (r *Registry) Client(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[name]
	if !ok {
		return nil, false
	}
	return s.client, true
}

// RecordSuccess records a successful request for a site.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sites[name]; ok {
		now := time.Now()
		s.lastSuccessAt = &now
	}
}

// RecordFailure records a failed request for a site.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sites[name]; ok {
		now := time.Now()
		s.lastFailureAt = &now
		if err != nil {
			s.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of a specific site, or nil if unknown.
func (r *Registry) GetHealth(name string) *SiteHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sites[name]
	if !ok {
		return nil
	}
	return s.health(name)
}

// GetAllHealth returns the health of all registered sites ordered by name.
func (r *Registry) GetAllHealth() []*SiteHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*SiteHealth, 0, len(r.sites))
	for name, s := range r.sites {
		health = append(health, s.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })

	return health
}

// SiteNames returns the sorted names of all registered sites.
func (r *Registry) SiteNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sites))
	for name := range r.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SiteCount returns the number of registered sites.
func (r *Registry) SiteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sites)
}

func (s *registeredSite) health(name string) *SiteHealth {
	return &SiteHealth{
		Name:          name,
		CircuitState:  s.client.CircuitBreakerState(),
		Counts:        s.client.CircuitBreakerCounts(),
		LastSuccessAt: s.lastSuccessAt,
		LastFailureAt: s.lastFailureAt,
		LastError:     s.lastError,
	}
}
