package site

import "sync"

// Status tracks the last known accessibility of each site. A site that was
// never probed is reported as inaccessible.
type Status struct {
	mu         sync.RWMutex
	accessible map[string]bool
}

// NewStatus creates an empty status table
func NewStatus() *Status {
	return &Status{accessible: make(map[string]bool)}
}

// Set records the probe outcome for a site
func (s *Status) Set(id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessible[id] = ok
}

// Accessible reports the last probe outcome for a site
func (s *Status) Accessible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessible[id]
}

// Snapshot returns a copy of all recorded outcomes
func (s *Status) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.accessible))
	for id, ok := range s.accessible {
		out[id] = ok
	}
	return out
}
