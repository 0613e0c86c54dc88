package skillflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() skillflow.Config {
	return skillflow.Config{
		Model: skillflow.ModelFunc(func(ctx context.Context, req *domain.Request) (any, error) {
			return map[string]any{"intent": req.IntentName}, nil
		}),
		Variables: render.Variables{},
		Responses: memory.NewResponses(map[string]any{
			"Launch":   map[string]any{"say": "Hi"},
			"Question": "Ready?",
			"Bye":      "Bye",
		}),
		OpenIntent: "LaunchIntent",
	}
}

func say(key string, next domain.Next) domain.IntentHandler {
	return func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
		if err := reply.Say(ctx, key); err != nil {
			return domain.Next{}, err
		}
		return next, nil
	}
}

func newSkill(t *testing.T, opts ...skillflow.Option) *skillflow.Skill {
	t.Helper()
	skill, err := skillflow.New(testConfig(), opts...)
	require.NoError(t, err)

	require.NoError(t, skill.OnState("entry", domain.State{
		Intents: map[string]domain.IntentHandler{
			"LaunchIntent": say("Launch.say", domain.Stay()),
			"YesIntent":    say("Question", domain.GoTo("question")),
		},
	}))
	require.NoError(t, skill.OnState("question", domain.State{
		Intents: map[string]domain.IntentHandler{
			"StopIntent": say("Bye", domain.End()),
			"YesIntent":  say("Question", domain.Stay()),
		},
	}))
	return skill
}

func session(isNew bool, attrs map[string]any) domain.Session {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return domain.Session{ID: "s1", IsNew: isNew, Attributes: attrs}
}

func TestSkill_Launch(t *testing.T) {
	skill := newSkill(t)

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, "<speak>Hi</speak>", reply.Speech())
	assert.Equal(t, "entry", reply.SessionAttributes()["state"])
	assert.False(t, reply.HasTerminated())
	assert.Equal(t, domain.InputExpecting, reply.InputHint())
}

func TestSkill_OnLaunchRewritesRequest(t *testing.T) {
	skill, err := skillflow.New(testConfig())
	require.NoError(t, err)

	var seen *domain.Request
	require.NoError(t, skill.OnState("entry", domain.State{
		Fallback: func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
			seen = req
			return domain.Stay(), nil
		},
	}))

	original := &domain.Request{
		Type:       domain.RequestLaunch,
		IntentName: "Whatever",
		Slots:      map[string]any{"x": 1},
		Session:    session(true, nil),
	}
	_, err = skill.OnLaunch(context.Background(), original, domain.NewReply(nil))
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "LaunchIntent", seen.IntentName)
	assert.Empty(t, seen.Slots)
	assert.Equal(t, "Whatever", original.IntentName, "caller's request is left alone")
}

func TestSkill_StartingState(t *testing.T) {
	tests := []struct {
		name      string
		session   domain.Session
		wantState string
		wantErr   error
	}{
		{
			name:      "new session always starts at entry",
			session:   session(true, map[string]any{"state": "question"}),
			wantState: "question", // entry + YesIntent
		},
		{
			name:      "persisted state is honored",
			session:   session(false, map[string]any{"state": "question"}),
			wantState: "question", // question + YesIntent stays
		},
		{
			name:      "missing state falls back to entry",
			session:   session(false, nil),
			wantState: "question",
		},
		{
			name:    "unknown persisted state",
			session: session(false, map[string]any{"state": "deleted"}),
			wantErr: domain.ErrUnknownState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skill := newSkill(t)

			reply, err := skill.Handle(context.Background(), &domain.Request{
				Type:       domain.RequestIntent,
				IntentName: "YesIntent",
				Session:    tt.session,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, reply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, reply.SessionAttributes()["state"])
		})
	}
}

func TestSkill_NewSessionIgnoresPersistedState(t *testing.T) {
	skill := newSkill(t)

	// StopIntent is only handled by "question"; a new session must start at entry.
	_, err := skill.Handle(context.Background(), &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "StopIntent",
		Session:    session(true, map[string]any{"state": "question"}),
	})

	var unhandled *domain.UnhandledIntentError
	require.ErrorAs(t, err, &unhandled)
	assert.Equal(t, "entry", unhandled.State)
}

func TestSkill_EndTerminatesWithoutWritingState(t *testing.T) {
	skill := newSkill(t)

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "StopIntent",
		Session:    session(false, map[string]any{"state": "question"}),
	})
	require.NoError(t, err)

	assert.True(t, reply.HasTerminated())
	assert.Equal(t, domain.InputAccepting, reply.InputHint())
	assert.Equal(t, "<speak>Bye</speak>", reply.Speech())
	assert.Equal(t, "question", reply.SessionAttributes()["state"], "state attribute is not rewritten on end")
}

func TestSkill_HookOrderAndErrors(t *testing.T) {
	skill := newSkill(t)
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, skill.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error {
			order = append(order, i)
			return nil
		}))
	}

	_, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSkill_ErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("boom")

	skill, err := skillflow.New(testConfig())
	require.NoError(t, err)
	require.NoError(t, skill.OnState("entry", domain.State{
		Intents: map[string]domain.IntentHandler{
			"LaunchIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.Next{}, boom
			},
		},
	}))

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	assert.Same(t, boom, err)
	assert.Nil(t, reply)
}

func TestSkill_HaltKeepsState(t *testing.T) {
	skill := newSkill(t)
	require.NoError(t, skill.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error {
		return domain.ErrHalt
	}))

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "StopIntent",
		Session:    session(false, map[string]any{"state": "question"}),
	})
	require.NoError(t, err)
	assert.False(t, reply.HasTerminated())
	assert.Equal(t, "question", reply.SessionAttributes()["state"])
	assert.False(t, reply.HasMessages())
}

func TestSkill_HaltingHookCanSpeak(t *testing.T) {
	skill := newSkill(t)
	require.NoError(t, skill.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error {
		if err := reply.Say(ctx, "Bye"); err != nil {
			return err
		}
		return domain.ErrHalt
	}))

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "<speak>Bye</speak>", reply.Speech())
	assert.Equal(t, "entry", reply.SessionAttributes()["state"])
}

func TestSkill_ModelIsBuiltBeforeHooks(t *testing.T) {
	skill := newSkill(t)
	var model any
	require.NoError(t, skill.OnRequestStarted(func(ctx context.Context, req *domain.Request) error {
		model = req.Model
		return nil
	}))

	_, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"intent": ""}, model)
}

func TestSkill_SessionEnded(t *testing.T) {
	skill := newSkill(t)
	ended := false
	require.NoError(t, skill.OnSessionEnded(func(ctx context.Context, req *domain.Request) error {
		ended = true
		return nil
	}))

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestSessionEnded,
		Session: session(false, map[string]any{"state": "question"}),
	})
	require.NoError(t, err)
	assert.True(t, ended)
	assert.True(t, reply.HasTerminated())
	assert.False(t, reply.HasMessages())
}

func TestSkill_RegistrationSealedAfterFirstTurn(t *testing.T) {
	skill := newSkill(t)

	_, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, skill.OnState("late", domain.State{}), domain.ErrRegistrySealed)
	assert.ErrorIs(t, skill.OnBeforeStateChanged(nil), domain.ErrRegistrySealed)
	assert.ErrorIs(t, skill.OnRequestStarted(nil), domain.ErrRegistrySealed)
	assert.ErrorIs(t, skill.OnSessionEnded(nil), domain.ErrRegistrySealed)
}

func TestSkill_DuplicateState(t *testing.T) {
	skill := newSkill(t)
	assert.ErrorIs(t, skill.OnState("entry", domain.State{}), domain.ErrDuplicateState)
}

func TestSkill_ConcurrentTurns(t *testing.T) {
	skill := newSkill(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := skill.Handle(context.Background(), &domain.Request{
				Type:    domain.RequestLaunch,
				Session: session(true, nil),
			})
			assert.NoError(t, err)
			assert.Equal(t, "<speak>Hi</speak>", reply.Speech())
		}()
	}
	wg.Wait()
}

func TestSkill_LifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	hooks := domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "start")
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e.From+"->"+e.To)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, "end")
		},
	}
	skill := newSkill(t, skillflow.WithLifecycleHooks(hooks))

	_, err := skill.Handle(context.Background(), &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "YesIntent",
		Session:    session(true, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "entry->question", "end"}, events)
}

func TestSkill_WithEntryState(t *testing.T) {
	skill, err := skillflow.New(testConfig(), skillflow.WithEntryState("welcome"))
	require.NoError(t, err)
	require.NoError(t, skill.OnState("welcome", domain.State{
		Intents: map[string]domain.IntentHandler{"LaunchIntent": say("Launch.say", domain.Stay())},
	}))

	reply, err := skill.Handle(context.Background(), &domain.Request{
		Type:    domain.RequestLaunch,
		Session: session(true, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "welcome", reply.SessionAttributes()["state"])
}
