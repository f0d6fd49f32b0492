package ollama

import (
	"fmt"
	"sort"
	"sync"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

// Well-known roles. Bootstrap creates a client per configured role; request
// handlers only ever read.
const (
	RoleChat     = domain.RoleChat
	RoleNamer    = domain.RoleNamer
	RoleAnalyzer = domain.RoleAnalyzer
)

// Registry owns the role-keyed client handles. Creation and deletion happen
// at process start/stop under external serialization; steady-state traffic is
// read-only, so the RWMutex is contention-free in practice.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Create builds and stores the handle for a role, replacing any existing
// entry for that role rather than accumulating duplicates.
func (r *Registry) Create(role, baseURL, model string, temperature float64) *Client {
	client := New(baseURL, model, temperature)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[role] = client
	return client
}

// Get returns the borrowed handle for a role. A role that was never created
// is a configuration bug surfaced as ErrClientNotFound.
func (r *Registry) Get(role string) (ports.ModelClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[role]
	if !ok {
		return nil, domain.WrapError(domain.ErrClientNotFound, "registry get", fmt.Errorf("role %q was never created", role))
	}
	return client, nil
}

// Delete removes a role's handle; deleting an absent role is a no-op.
func (r *Registry) Delete(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, role)
}

func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for role := range r.clients {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
