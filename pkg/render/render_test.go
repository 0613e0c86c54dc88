package render_test

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest() *domain.Request {
	return &domain.Request{
		Type:       domain.RequestIntent,
		IntentName: "OrderIntent",
		Slots:      map[string]any{"drink": "coffee"},
		Session: domain.Session{
			ID:         "s1",
			Attributes: map[string]any{"state": "menu", "visits": 3},
		},
		Model: map[string]any{"name": "Ada"},
	}
}

func TestRender_TextTemplates(t *testing.T) {
	responses := memory.NewResponses(map[string]any{
		"Plain":    "Hi",
		"Slot":     "One {{.drink}} coming up",
		"Session":  "Visit number {{.session.visits}}",
		"Model":    "Hello {{.model.name}}",
		"Variable": "Hello {{.user}}",
		"Bound":    "{{.count}} items",
		"Missing":  "Hello {{.nobody}}!",
		"Funcs":    "{{upper .drink}} {{default \"n/a\" .nobody}}",
		"Title":    "Welcome to {{title .city}}",
		"Nested":   "[{{.session.nobody}}]{{if .drink}} {{.nobody}}{{end}}",
		"Literal":  "Note: {{.note}}",
	})
	vars := render.Variables{
		"user": func(ctx context.Context, req *domain.Request) (any, error) {
			return req.Model.(map[string]any)["name"], nil
		},
	}
	r := render.New(responses, vars)

	tests := []struct {
		key   string
		bound map[string]any
		want  string
	}{
		{key: "Plain", want: "Hi"},
		{key: "Slot", want: "One coffee coming up"},
		{key: "Session", want: "Visit number 3"},
		{key: "Model", want: "Hello Ada"},
		{key: "Variable", want: "Hello Ada"},
		{key: "Bound", bound: map[string]any{"count": 2}, want: "2 items"},
		{key: "Missing", want: "Hello !"},
		{key: "Funcs", want: "COFFEE n/a"},
		{key: "Title", bound: map[string]any{"city": "évora são brás"}, want: "Welcome to Évora São Brás"},
		{key: "Nested", want: "[] "},
		{key: "Literal", bound: map[string]any{"note": "<no value>"}, want: "Note: <no value>"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := r.Render(context.Background(), tt.key, newRequest(), tt.bound)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got.(string)))
		})
	}
}

func TestRender_SlotsDoNotShadowReservedKeys(t *testing.T) {
	responses := memory.NewResponses(map[string]any{
		"Greeting": "{{.session.visits}} {{.user}} {{.model.name}} {{.slots.session}} {{.drink}}",
	})
	vars := render.Variables{
		"user": func(ctx context.Context, req *domain.Request) (any, error) {
			return "Ada", nil
		},
	}
	r := render.New(responses, vars)

	req := newRequest()
	req.Slots = map[string]any{
		"session": "oops",
		"model":   "spoofed",
		"user":    "Mallory",
		"drink":   "tea",
	}

	got, err := r.Render(context.Background(), "Greeting", req, nil)
	require.NoError(t, err)
	assert.Equal(t, "3 Ada Ada oops tea", got)
}

func TestRender_StructuredPayload(t *testing.T) {
	responses := memory.NewResponses(map[string]any{
		"Card": map[string]any{
			"title":   "Your {{.drink}}",
			"buttons": []any{"Buy {{.drink}}", "Cancel"},
			"count":   2,
		},
	})
	r := render.New(responses, nil)

	got, err := r.Render(context.Background(), "Card", newRequest(), nil)
	require.NoError(t, err)

	card, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Your coffee", card["title"])
	assert.Equal(t, []any{"Buy coffee", "Cancel"}, card["buttons"])
	assert.Equal(t, 2, card["count"])
}

func TestRender_Errors(t *testing.T) {
	boom := errors.New("boom")
	responses := memory.NewResponses(map[string]any{
		"Broken": "{{.drink",
		"Var":    "{{.failing}}",
	})
	r := render.New(responses, render.Variables{
		"failing": func(ctx context.Context, req *domain.Request) (any, error) {
			return nil, boom
		},
	})

	_, err := r.Render(context.Background(), "Nope", newRequest(), nil)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	_, err = r.Render(context.Background(), "Var", newRequest(), nil)
	assert.ErrorIs(t, err, boom)

	broken := render.New(responses, nil)
	_, err = broken.Render(context.Background(), "Broken", newRequest(), nil)
	assert.Error(t, err)
}

func TestRender_ForBindsToReply(t *testing.T) {
	responses := memory.NewResponses(map[string]any{
		"Launch": map[string]any{"say": "Hi {{.name}}"},
	})
	r := render.New(responses, nil)

	reply := domain.NewReply(nil)
	reply.BindRenderer(r.For(newRequest()))
	reply.Bind("name", "there")

	require.NoError(t, reply.Say(context.Background(), "Launch.say"))
	assert.Equal(t, "<speak>Hi there</speak>", reply.Speech())
}

func TestRender_ResetKeepsWorking(t *testing.T) {
	responses := memory.NewResponses(map[string]any{"Greeting": "Hi {{.drink}}"})
	r := render.New(responses, nil)

	first, err := r.Render(context.Background(), "Greeting", newRequest(), nil)
	require.NoError(t, err)

	r.Reset()
	responses.Set("Greeting", "Hello {{.drink}}")

	second, err := r.Render(context.Background(), "Greeting", newRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi coffee", first)
	assert.Equal(t, "Hello coffee", second)
}
