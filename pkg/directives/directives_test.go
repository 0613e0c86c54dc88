package directives_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/skillflow/pkg/directives"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyWithTemplates(templates map[string]any) *domain.Reply {
	reply := domain.NewReply(nil)
	reply.BindRenderer(func(ctx context.Context, key string, bound map[string]any) (any, error) {
		v, ok := templates[key]
		if !ok {
			return nil, domain.ErrTemplateNotFound
		}
		return v, nil
	})
	return reply
}

func TestHeroCard(t *testing.T) {
	card := map[string]any{"title": "Menu"}
	reply := replyWithTemplates(map[string]any{"Cards.menu": card})
	ctx := context.Background()

	require.NoError(t, directives.Run(ctx, reply, &domain.Request{},
		directives.HeroCard(domain.TemplateRef("Cards.menu")),
		directives.HeroCard(domain.Literal("ready-made")),
	))

	got := reply.Directives()
	require.Len(t, got, 2)
	assert.Equal(t, domain.Directive{Type: domain.DirectiveAttachment, Payload: card}, got[0])
	assert.Equal(t, domain.Directive{Type: domain.DirectiveAttachment, Payload: "ready-made"}, got[1])
}

func TestSuggestedActions(t *testing.T) {
	actions := []any{"Yes", "No"}
	reply := replyWithTemplates(map[string]any{"Suggest": actions})

	require.NoError(t, directives.Run(context.Background(), reply, &domain.Request{},
		directives.SuggestedActions(domain.TemplateRef("Suggest"))))

	got := reply.Directives()
	require.Len(t, got, 1)
	assert.Equal(t, domain.DirectiveSuggestedActions, got[0].Type)
	assert.Equal(t, actions, got[0].Payload)
}

func TestAudioCard_TerminatesAndYields(t *testing.T) {
	reply := replyWithTemplates(nil)
	afterYield := false

	err := directives.Run(context.Background(), reply, &domain.Request{},
		directives.AudioCard("https://example.com/a.mp3", "Song", "hifi"),
		func(ctx context.Context, reply *domain.Reply, event directives.Event) error {
			afterYield = true
			return nil
		},
	)
	require.NoError(t, err)

	assert.False(t, afterYield, "handlers after a yield must not run")
	assert.True(t, reply.HasTerminated())
	assert.Equal(t, domain.InputAccepting, reply.InputHint())

	got := reply.Directives()
	require.Len(t, got, 1)
	payload, ok := got[0].Payload.(directives.AudioCardPayload)
	require.True(t, ok)
	assert.Equal(t, directives.AudioCardContentType, payload.ContentType)
	assert.Equal(t, "Song", payload.Title)
	assert.Equal(t, []directives.MediaURL{{URL: "https://example.com/a.mp3", Profile: "hifi"}}, payload.Media)
}

func TestRun_StopsOnError(t *testing.T) {
	reply := replyWithTemplates(nil)
	second := false

	err := directives.Run(context.Background(), reply, &domain.Request{},
		directives.HeroCard(domain.Literal("kept")),
		directives.HeroCard(domain.TemplateRef("Missing")),
		func(ctx context.Context, reply *domain.Reply, event directives.Event) error {
			second = true
			return nil
		},
	)
	assert.True(t, errors.Is(err, domain.ErrTemplateNotFound))
	assert.False(t, second)
	assert.Len(t, reply.Directives(), 1, "output before the failure is kept")
}

func TestSpeech(t *testing.T) {
	reply := replyWithTemplates(map[string]any{"A": "A"})

	require.NoError(t, directives.Run(context.Background(), reply, &domain.Request{},
		directives.Speech(domain.TemplateRef("A")),
		directives.Speech(domain.Literal("B")),
	))
	assert.Equal(t, "<speak>A\nB</speak>", reply.Speech())

	err := directives.Speech(domain.Literal(42))(context.Background(), reply, &domain.Request{})
	assert.ErrorIs(t, err, directives.ErrNotText)
	assert.NotErrorIs(t, err, domain.ErrConfiguration, "turn-time failures are not configuration errors")
	assert.Equal(t, "<speak>A\nB</speak>", reply.Speech(), "nothing is added on failure")
}
