package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tkral/annomine/model"
)

// Registry maps a unit kind to the factory that builds its provider.
// Kinds are resolved once, at configuration-load time, so a typo in a run
// file fails before any external call is made.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under kind. Registering the same kind twice panics:
// it is a programming error, not a runtime condition.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[kind]; dup {
		panic(fmt.Sprintf("provider: kind %q registered twice", kind))
	}
	r.factories[kind] = f
}

// Resolve returns the factory for kind.
func (r *Registry) Resolve(kind string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("provider: unknown kind %q (known: %v)", kind, r.kindsLocked())
	}
	return f, nil
}

// Build resolves spec.Kind and constructs its provider.
func (r *Registry) Build(spec model.UnitSpec) (Provider, error) {
	f, err := r.Resolve(spec.Kind)
	if err != nil {
		return nil, err
	}
	return f(spec)
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kindsLocked()
}

func (r *Registry) kindsLocked() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Default is the process-wide registry the CLI uses. Library consumers can
// build their own and inject it instead.
var Default = NewRegistry()

func init() {
	Default.Register("table", NewTable)
}
