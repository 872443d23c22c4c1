package worker

import (
	"sort"
	"sync"

	"github.com/wrmsprobe/wrmsprobe/internal/wrms"
)

// Store keeps the latest ResultSet per site in memory. Results are never
// persisted; a restart starts empty.
type Store struct {
	mu     sync.RWMutex
	latest map[string]*wrms.ResultSet
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		latest: make(map[string]*wrms.ResultSet),
	}
}

// Put records rs as the latest result for its site.
func (s *Store) Put(rs *wrms.ResultSet) {
	if rs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[rs.Site] = rs
}

// Latest returns the latest result for site.
func (s *Store) Latest(site string) (*wrms.ResultSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.latest[site]
	return rs, ok
}

// All returns the latest result of every site, sorted by site name.
func (s *Store) All() []*wrms.ResultSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*wrms.ResultSet, 0, len(s.latest))
	for _, rs := range s.latest {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site < out[j].Site })
	return out
}

// Len returns the number of sites with a result.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}
