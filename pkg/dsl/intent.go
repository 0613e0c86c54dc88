package dsl

import (
	"context"

	"github.com/aretw0/skillflow/pkg/directives"
	"github.com/aretw0/skillflow/pkg/domain"
)

// IntentBuilder configures the handler of one intent.
// Steps run in the order they were added.
type IntentBuilder struct {
	steps []directives.Handler
	next  domain.Next
	state *StateBuilder
}

func newIntent(state *StateBuilder) *IntentBuilder {
	return &IntentBuilder{
		next:  domain.Stay(),
		state: state,
	}
}

// Say renders each template key as one statement.
func (i *IntentBuilder) Say(keys ...string) *IntentBuilder {
	for _, key := range keys {
		i.steps = append(i.steps, directives.Speech(domain.TemplateRef(key)))
	}
	return i
}

// Card pushes the hero card rendered from a template key.
func (i *IntentBuilder) Card(key string) *IntentBuilder {
	return i.Directive(directives.HeroCard(domain.TemplateRef(key)))
}

// Suggest pushes the suggested actions rendered from a template key.
func (i *IntentBuilder) Suggest(key string) *IntentBuilder {
	return i.Directive(directives.SuggestedActions(domain.TemplateRef(key)))
}

// Directive appends an arbitrary directive handler.
func (i *IntentBuilder) Directive(h directives.Handler) *IntentBuilder {
	i.steps = append(i.steps, h)
	return i
}

// Set writes a session attribute.
func (i *IntentBuilder) Set(key string, value any) *IntentBuilder {
	return i.Directive(func(ctx context.Context, reply *domain.Reply, event directives.Event) error {
		reply.SetAttribute(key, value)
		return nil
	})
}

// Go moves the conversation to the target state.
func (i *IntentBuilder) Go(target string) *StateBuilder {
	i.next = domain.GoTo(target)
	return i.state
}

// Stay keeps the conversation on the current state.
func (i *IntentBuilder) Stay() *StateBuilder {
	i.next = domain.Stay()
	return i.state
}

// End terminates the conversation after the turn.
func (i *IntentBuilder) End() *StateBuilder {
	i.next = domain.End()
	return i.state
}

// Next returns the configured transition.
func (i *IntentBuilder) Next() domain.Next {
	return i.next
}

// Handler compiles the intent into an IntentHandler.
func (i *IntentBuilder) Handler() domain.IntentHandler {
	steps := make([]directives.Handler, len(i.steps))
	copy(steps, i.steps)
	next := i.next

	return func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
		if err := directives.Run(ctx, reply, req, steps...); err != nil {
			return domain.Next{}, err
		}
		return next, nil
	}
}
