package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/registry"
)

// Renderer produces the template function bound to each turn's reply.
type Renderer interface {
	For(req *domain.Request) domain.RenderFunc
}

// StateMachine runs a single transition for one turn.
// It is cheap to build and must not be reused across turns.
type StateMachine struct {
	states   *registry.Registry
	from     string
	hooks    []domain.Hook
	renderer Renderer

	logger    *slog.Logger
	lifecycle domain.LifecycleHooks
}

// Option configures a StateMachine.
type Option func(*StateMachine)

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(m *StateMachine) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *StateMachine) {
		m.lifecycle = hooks
	}
}

// NewStateMachine binds a state registry, a starting state and the
// before-state-changed hooks for one turn. renderer may be nil.
func NewStateMachine(states *registry.Registry, from string, hooks []domain.Hook, renderer Renderer, opts ...Option) *StateMachine {
	m := &StateMachine{
		states:   states,
		from:     from,
		hooks:    hooks,
		renderer: renderer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// From returns the name of the starting state.
func (m *StateMachine) From() string {
	return m.from
}

// Transition dispatches the request's intent against the starting state.
//
// Hooks run in order before dispatch. A hook returning domain.ErrHalt stops
// the turn and keeps the conversation on the starting state; any other error
// is returned unchanged. Handler errors are returned unchanged as well.
func (m *StateMachine) Transition(ctx context.Context, req *domain.Request, reply *domain.Reply) (*domain.Outcome, error) {
	from, err := m.states.Resolve(m.from)
	if err != nil {
		return nil, err
	}

	log := m.logger.With("session_id", req.Session.ID, "intent", req.IntentName, "from", from.Name)

	// Hooks may speak before halting, so the reply renders from here on.
	if m.renderer != nil {
		reply.BindRenderer(m.renderer.For(req))
	}

	for i, hook := range m.hooks {
		if err := hook(ctx, req, reply); err != nil {
			if errors.Is(err, domain.ErrHalt) {
				log.Debug("transition halted by hook", "hook", i)
				return &domain.Outcome{To: from, Reply: reply}, nil
			}
			return nil, err
		}
	}

	handler, ok := from.Handler(req.IntentName)
	if !ok {
		return nil, &domain.UnhandledIntentError{State: from.Name, Intent: req.IntentName}
	}

	next, err := handler(ctx, req, reply)
	if err != nil {
		return nil, err
	}

	to, err := m.resolveNext(from, next)
	if err != nil {
		return nil, err
	}

	toName := ""
	if to != nil {
		toName = to.Name
	}
	log.Debug("transition", "to", toName)
	m.emitTransition(ctx, req, from.Name, toName)

	return &domain.Outcome{To: to, Reply: reply}, nil
}

func (m *StateMachine) resolveNext(from *domain.State, next domain.Next) (*domain.State, error) {
	switch {
	case next.IsEnd():
		return nil, nil
	case next.IsStay():
		return from, nil
	default:
		return m.states.Resolve(next.Target())
	}
}

func (m *StateMachine) emitTransition(ctx context.Context, req *domain.Request, from, to string) {
	if m.lifecycle.OnTransition == nil {
		return
	}
	m.lifecycle.OnTransition(ctx, &domain.TransitionEvent{
		Timestamp: time.Now(),
		SessionID: req.Session.ID,
		Intent:    req.IntentName,
		From:      from,
		To:        to,
	})
}
