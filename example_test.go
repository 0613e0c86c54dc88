package skillflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/render"
)

// ExampleNew shows a two-state skill served turn by turn, with the
// session attributes carried between turns by the caller.
func ExampleNew() {
	skill, err := skillflow.New(skillflow.Config{
		Model: skillflow.ModelFunc(func(ctx context.Context, req *domain.Request) (any, error) {
			return nil, nil
		}),
		Variables: render.Variables{},
		Responses: memory.NewResponses(map[string]any{
			"Launch": map[string]any{"say": "Hi! Want a coffee?"},
			"Order":  "One {{.drink}} coming up.",
		}),
		OpenIntent: "LaunchIntent",
	})
	if err != nil {
		log.Fatal(err)
	}

	_ = skill.OnState("entry", domain.State{
		Intents: map[string]domain.IntentHandler{
			"LaunchIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.GoTo("order"), reply.Say(ctx, "Launch.say")
			},
		},
	})
	_ = skill.OnState("order", domain.State{
		Intents: map[string]domain.IntentHandler{
			"OrderIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.End(), reply.Say(ctx, "Order")
			},
		},
	})

	ctx := context.Background()
	reply, err := skill.Handle(ctx, &domain.Request{
		Type:    domain.RequestLaunch,
		Session: *domain.NewSession("demo"),
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Speech(), reply.SessionAttributes()["state"])

	reply, err = skill.Handle(ctx, &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "OrderIntent",
		Slots:      map[string]any{"drink": "latte"},
		Session:    domain.Session{ID: "demo", Attributes: reply.SessionAttributes()},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Speech(), reply.HasTerminated())

	// Output:
	// <speak>Hi! Want a coffee?</speak> order
	// <speak>One latte coming up.</speak> true
}
