package registry

import (
	"fmt"
	"sort"

	"github.com/aretw0/skillflow/pkg/domain"
)

// Builder collects state definitions and hooks during setup.
// It is not safe for concurrent use; call Build once setup is done.
type Builder struct {
	states map[string]*domain.State
	hooks  []domain.Hook
}

// NewBuilder creates a new empty builder.
func NewBuilder() *Builder {
	return &Builder{
		states: make(map[string]*domain.State),
	}
}

// OnState registers a state under name. The name is assigned to the
// definition here and never changes afterwards.
func (b *Builder) OnState(name string, state domain.State) error {
	if name == "" {
		return fmt.Errorf("state name cannot be empty")
	}
	if _, exists := b.states[name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateState, name)
	}

	def := &domain.State{
		Name:     name,
		Intents:  make(map[string]domain.IntentHandler, len(state.Intents)),
		Fallback: state.Fallback,
	}
	for intent, h := range state.Intents {
		def.Intents[intent] = h
	}
	b.states[name] = def
	return nil
}

// OnBeforeStateChanged appends a hook. Hooks run in registration order.
func (b *Builder) OnBeforeStateChanged(hook domain.Hook) {
	b.hooks = append(b.hooks, hook)
}

// Build produces an immutable snapshot of the registered states and hooks.
// Later changes to the builder do not affect the returned registry.
func (b *Builder) Build() *Registry {
	states := make(map[string]*domain.State, len(b.states))
	for name, s := range b.states {
		states[name] = s
	}
	hooks := make([]domain.Hook, len(b.hooks))
	copy(hooks, b.hooks)
	return &Registry{states: states, hooks: hooks}
}

// Registry is a read-only view of the dialog graph, safe to share across turns.
type Registry struct {
	states map[string]*domain.State
	hooks  []domain.Hook
}

// Resolve looks up a state by name.
// Returns a *domain.UnknownStateError if the name is not registered.
func (r *Registry) Resolve(name string) (*domain.State, error) {
	s, ok := r.states[name]
	if !ok {
		return nil, &domain.UnknownStateError{Name: name}
	}
	return s, nil
}

// Has reports whether a state is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.states[name]
	return ok
}

// Hooks returns the before-state-changed hooks in registration order.
func (r *Registry) Hooks() []domain.Hook {
	out := make([]domain.Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// Names returns the registered state names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.states))
	for name := range r.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered states.
func (r *Registry) Len() int {
	return len(r.states)
}
