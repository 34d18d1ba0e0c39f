package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the wrapped flows a binary exposes, keyed by flow id. The
// CLI drives it: one flow per process invocation, so the flow wrapper's
// exit-on-failure policy isolates each scheduled flow from the rest of a
// batch.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]StepFunc
}

func NewRegistry() *Registry {
	return &Registry{
		flows: make(map[string]StepFunc),
	}
}

// Register adds a wrapped flow under id, replacing any prior registration.
func (r *Registry) Register(id string, flow StepFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[id] = flow
}

// Get returns the flow registered under id.
func (r *Registry) Get(id string) (StepFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flow, ok := r.flows[id]
	return flow, ok
}

// IDs returns the registered flow ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run invokes the flow registered under id with ctx.
func (r *Registry) Run(ctx *Context, id string) error {
	flow, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("unknown flow: %s (registered: %v)", id, r.IDs())
	}
	return flow(ctx)
}
