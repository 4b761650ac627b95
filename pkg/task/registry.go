package task

import (
	"fmt"
	"sync"
)

// Registry is an in-memory index of tasks keyed by id and url. A url may
// appear at most once in the registry at a time.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*Task
	byURL map[string]*Task
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Task),
		byURL: make(map[string]*Task),
	}
}

// Add registers t, failing if its URL is already present.
func (r *Registry) Add(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byURL[t.URL]; exists {
		return fmt.Errorf("url already queued: %s", t.URL)
	}

	r.byID[t.ID] = t
	r.byURL[t.URL] = t
	return nil
}

// Remove drops t from both indexes, used when a submission cannot be
// queued (queue full) so the registry is not polluted.
func (r *Registry) Remove(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, t.ID)
	delete(r.byURL, t.URL)
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	return t, ok
}

// GetByURL returns the task currently registered for url.
func (r *Registry) GetByURL(url string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byURL[url]
	return t, ok
}

// HasURL reports whether url is already registered (used by submit's
// de-duplication check).
func (r *Registry) HasURL(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byURL[url]
	return ok
}

// List returns a snapshot slice of all registered tasks.
func (r *Registry) List() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	return out
}
