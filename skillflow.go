package skillflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/internal/runtime"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/registry"
	"github.com/aretw0/skillflow/pkg/render"
)

// Skill is the composition root of a state-machine dialog.
// Register states and hooks during setup, then serve turns concurrently.
type Skill struct {
	cfg      Config
	entry    string
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	renderer *render.Renderer

	// Guarded by mu until sealed; read-only afterwards.
	mu           sync.Mutex
	builder      *registry.Builder
	states       *registry.Registry
	requestHooks []domain.RequestHook
	sessionHooks []domain.SessionEndedHook
}

// Option defines a functional option for configuring the Skill.
type Option func(*Skill)

// WithLogger sets a custom structured logger for the skill.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Skill) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Skill) {
		s.hooks = hooks
	}
}

// WithEntryState overrides the state new sessions start from (default: "entry").
func WithEntryState(name string) Option {
	return func(s *Skill) {
		s.entry = name
	}
}

// New validates cfg and creates a Skill.
// A missing field fails with a *domain.ConfigurationError.
func New(cfg Config, opts ...Option) (*Skill, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Skill{
		cfg:     cfg,
		entry:   domain.EntryState,
		builder: registry.NewBuilder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.entry == "" {
		return nil, &domain.ConfigurationError{Field: "EntryState", Reason: "cannot be empty"}
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.renderer = render.New(cfg.Responses, cfg.Variables, render.WithLogger(s.logger))

	// The model is always derived first so every later hook can rely on it.
	s.requestHooks = append(s.requestHooks, func(ctx context.Context, req *domain.Request) error {
		model, err := s.cfg.Model.FromRequest(ctx, req)
		if err != nil {
			return fmt.Errorf("build model: %w", err)
		}
		req.Model = model
		return nil
	})

	return s, nil
}

// OnState registers a state definition.
func (s *Skill) OnState(name string, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states != nil {
		return domain.ErrRegistrySealed
	}
	return s.builder.OnState(name, state)
}

// OnBeforeStateChanged appends a hook run before every dispatch.
func (s *Skill) OnBeforeStateChanged(hook domain.Hook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states != nil {
		return domain.ErrRegistrySealed
	}
	s.builder.OnBeforeStateChanged(hook)
	return nil
}

// OnRequestStarted appends a hook run by Handle before dispatching a request.
func (s *Skill) OnRequestStarted(hook domain.RequestHook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states != nil {
		return domain.ErrRegistrySealed
	}
	s.requestHooks = append(s.requestHooks, hook)
	return nil
}

// OnSessionEnded appends a hook run by Handle for session-ended requests.
func (s *Skill) OnSessionEnded(hook domain.SessionEndedHook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states != nil {
		return domain.ErrRegistrySealed
	}
	s.sessionHooks = append(s.sessionHooks, hook)
	return nil
}

// Seal freezes registration. It is called implicitly by the first turn
// and is safe to call more than once.
func (s *Skill) Seal() *registry.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = s.builder.Build()
		s.logger.Debug("skill sealed", "states", s.states.Len())
	}
	return s.states
}

// Config returns the validated configuration.
func (s *Skill) Config() Config {
	return s.cfg
}

// EntryState returns the state new sessions start from.
func (s *Skill) EntryState() string {
	return s.entry
}

// Renderer returns the renderer bound to every reply.
func (s *Skill) Renderer() *render.Renderer {
	return s.renderer
}

// OnLaunch rewrites a launch into the open intent with empty slots and
// runs it through OnIntent.
func (s *Skill) OnLaunch(ctx context.Context, req *domain.Request, reply *domain.Reply) (*domain.Reply, error) {
	open := *req
	open.Type = domain.RequestIntent
	open.IntentName = s.cfg.OpenIntent
	open.Slots = map[string]any{}
	return s.OnIntent(ctx, &open, reply)
}

// OnIntent runs one transition and records its outcome on reply: the target
// state is written to the "state" attribute, or the reply is terminated when
// the conversation ends. Hook and handler errors are returned unchanged.
func (s *Skill) OnIntent(ctx context.Context, req *domain.Request, reply *domain.Reply) (*domain.Reply, error) {
	states := s.Seal()
	from := s.fromState(req)

	machine := runtime.NewStateMachine(states, from, states.Hooks(), s.renderer,
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
	)

	outcome, err := machine.Transition(ctx, req, reply)
	if err != nil {
		return nil, err
	}

	if outcome.To != nil {
		reply.SetAttribute(domain.StateAttribute, outcome.To.Name)
	} else {
		reply.Terminate()
	}
	return reply, nil
}

// fromState picks the starting state: the entry state for new sessions,
// else the persisted state, else the entry state.
func (s *Skill) fromState(req *domain.Request) string {
	if req.Session.IsNew {
		return s.entry
	}
	if name := req.StateName(); name != "" {
		return name
	}
	return s.entry
}

// Handle serves one complete turn: it runs the request-started hooks,
// dispatches on the request type and returns the reply for the channel.
func (s *Skill) Handle(ctx context.Context, req *domain.Request) (reply *domain.Reply, err error) {
	s.Seal()
	start := time.Now()
	s.emitTurn(ctx, s.hooks.OnTurnStart, req, nil, 0, nil)
	defer func() {
		s.emitTurn(ctx, s.hooks.OnTurnEnd, req, reply, time.Since(start), err)
		if err != nil {
			s.logger.Error("turn failed", "session_id", req.Session.ID, "intent", req.IntentName, "err", err)
		}
	}()

	reply = domain.NewReply(req.Session.Attributes)

	if req.Type == domain.RequestSessionEnded {
		for _, hook := range s.sessionHooks {
			if err := hook(ctx, req); err != nil {
				return nil, err
			}
		}
		reply.Terminate()
		return reply, nil
	}

	for _, hook := range s.requestHooks {
		if err := hook(ctx, req); err != nil {
			return nil, err
		}
	}

	switch req.Type {
	case domain.RequestLaunch:
		return s.OnLaunch(ctx, req, reply)
	case domain.RequestIntent:
		return s.OnIntent(ctx, req, reply)
	default:
		return nil, fmt.Errorf("unsupported request type %q", req.Type)
	}
}

func (s *Skill) emitTurn(ctx context.Context, fn func(context.Context, *domain.TurnEvent), req *domain.Request, reply *domain.Reply, d time.Duration, err error) {
	if fn == nil {
		return
	}
	ev := &domain.TurnEvent{
		Timestamp: time.Now(),
		SessionID: req.Session.ID,
		Type:      req.Type,
		Intent:    req.IntentName,
		Duration:  d,
		Err:       err,
	}
	if reply != nil {
		ev.Terminated = reply.HasTerminated()
	}
	fn(ctx, ev)
}
