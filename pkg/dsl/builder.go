package dsl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/skillflow/pkg/domain"
)

// Registrar receives compiled states. *skillflow.Skill and *registry.Builder
// implement it.
type Registrar interface {
	OnState(name string, state domain.State) error
}

// Builder manages the state graph construction.
type Builder struct {
	states map[string]*StateBuilder
	order  []string
}

// New creates a new state graph builder.
func New() *Builder {
	return &Builder{
		states: make(map[string]*StateBuilder),
	}
}

// State returns the builder for the named state, creating it on first use.
func (b *Builder) State(name string) *StateBuilder {
	if sb, ok := b.states[name]; ok {
		return sb
	}
	sb := &StateBuilder{
		name:    name,
		intents: make(map[string]*IntentBuilder),
		builder: b,
	}
	b.states[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Names returns the declared state names in declaration order.
func (b *Builder) Names() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Validate reports every transition whose target state is not declared
// in this builder.
func (b *Builder) Validate() error {
	var errs []error
	for _, name := range b.order {
		sb := b.states[name]
		for _, intent := range sb.intentNames() {
			if err := b.checkTarget(sb.intents[intent]); err != nil {
				errs = append(errs, fmt.Errorf("state %q intent %q: %w", name, intent, err))
			}
		}
		if sb.fallback != nil {
			if err := b.checkTarget(sb.fallback); err != nil {
				errs = append(errs, fmt.Errorf("state %q fallback: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Builder) checkTarget(ib *IntentBuilder) error {
	target := ib.next.Target()
	if target == "" {
		return nil
	}
	if _, ok := b.states[target]; !ok {
		return &domain.UnknownStateError{Name: target}
	}
	return nil
}

// Apply compiles every state and registers it with target, in declaration
// order. It stops at the first registration error.
func (b *Builder) Apply(target Registrar) error {
	for _, name := range b.order {
		if err := target.OnState(name, b.states[name].Build()); err != nil {
			return fmt.Errorf("register state %q: %w", name, err)
		}
	}
	return nil
}

// StateBuilder configures one state.
type StateBuilder struct {
	name     string
	intents  map[string]*IntentBuilder
	fallback *IntentBuilder
	builder  *Builder
}

// Name returns the state name.
func (s *StateBuilder) Name() string { return s.name }

// On returns the builder for an intent of this state.
func (s *StateBuilder) On(intent string) *IntentBuilder {
	if ib, ok := s.intents[intent]; ok {
		return ib
	}
	ib := newIntent(s)
	s.intents[intent] = ib
	return ib
}

// Fallback returns the builder for intents the state does not name.
func (s *StateBuilder) Fallback() *IntentBuilder {
	if s.fallback == nil {
		s.fallback = newIntent(s)
	}
	return s.fallback
}

// Build compiles the state.
func (s *StateBuilder) Build() domain.State {
	state := domain.State{
		Name:    s.name,
		Intents: make(map[string]domain.IntentHandler, len(s.intents)),
	}
	for name, ib := range s.intents {
		state.Intents[name] = ib.Handler()
	}
	if s.fallback != nil {
		state.Fallback = s.fallback.Handler()
	}
	return state
}

func (s *StateBuilder) intentNames() []string {
	names := make([]string, 0, len(s.intents))
	for name := range s.intents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
