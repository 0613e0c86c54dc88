/*
Package skillflow is a state-machine dialog engine for voice and chat skills.

A skill is a graph of named states. Each state maps intent names to handlers;
a handler writes speech and directives into a turn-scoped Reply and returns
where the conversation goes next: another state, the same state, or the end.

# Turn Flow

Every turn enters through Handle (or OnLaunch / OnIntent when a channel
framework owns the request lifecycle):

 1. Request-started hooks run. The first one always derives Request.Model
    from the configured ModelFactory.
 2. A launch is rewritten into the configured open intent with empty slots.
 3. The starting state is "entry" for new sessions, else the persisted
    "state" attribute, else "entry".
 4. Before-state-changed hooks run in registration order. A hook returning
    domain.ErrHalt keeps the conversation where it is.
 5. The matched intent handler (or the state's fallback) runs.
 6. The target state name is written to the "state" session attribute, or
    the reply is terminated when the handler returned domain.End().

Errors from hooks and handlers are returned unchanged to the caller.

# Usage

	skill, err := skillflow.New(skillflow.Config{
		Model:      skillflow.ModelFunc(func(ctx context.Context, req *domain.Request) (any, error) { return nil, nil }),
		Variables:  render.Variables{},
		Responses:  memory.NewResponses(map[string]any{"Launch": map[string]any{"say": "Hi"}}),
		OpenIntent: "LaunchIntent",
	})
	if err != nil {
		log.Fatal(err)
	}

	_ = skill.OnState("entry", domain.State{
		Intents: map[string]domain.IntentHandler{
			"LaunchIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.Stay(), reply.Say(ctx, "Launch.say")
			},
		},
	})

	reply, err := skill.Handle(ctx, &domain.Request{
		Type:    domain.RequestLaunch,
		Session: *domain.NewSession("session-123"),
	})

Session persistence, locking and channel wire formats live outside the core,
in pkg/session and the adapters under pkg/adapters.
*/
package skillflow
