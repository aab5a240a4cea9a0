package registry

import (
	"sync"
	"time"
)

// Session is one authenticated connection to an imaging service.
type Session struct {
	ID           string    `json:"id"`
	BaseURL      string    `json:"base_url"`
	Downloaded   int64     `json:"downloaded_bytes"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry maps session identifiers to base URLs in registration order and
// keeps a download counter per identifier. Counters may exist for ids that
// are not registered sessions (the local instance has one).
type Registry struct {
	sessions map[string]*Session
	order    []string
	counters map[string]int64
	mu       sync.RWMutex
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		counters: make(map[string]int64),
	}
}

// Register inserts id with baseURL. Registering an existing id keeps its
// original position and URL.
func (r *Registry) Register(id, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return
	}
	r.sessions[id] = &Session{
		ID:           id,
		BaseURL:      baseURL,
		RegisteredAt: time.Now(),
	}
	r.order = append(r.order, id)
}

// Unregister removes id and its counter. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counters, id)
	if _, exists := r.sessions[id]; !exists {
		return
	}
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, exists := r.sessions[id]
	if !exists {
		return Session{}, false
	}
	out := *s
	out.Downloaded = r.counters[id]
	return out, true
}

// First returns the earliest registered session id still present.
func (r *Registry) First() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return "", false
	}
	return r.order[0], true
}

// All returns a snapshot of every session in registration order.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		s := *r.sessions[id]
		s.Downloaded = r.counters[id]
		result = append(result, s)
	}
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// AddDownloaded adds n bytes to the counter for id, creating it if needed.
func (r *Registry) AddDownloaded(id string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[id] += n
}

func (r *Registry) Downloaded(id string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[id]
}
