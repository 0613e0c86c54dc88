package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/render"
	"github.com/aretw0/skillflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()

	skill, err := skillflow.New(skillflow.Config{
		Model: skillflow.ModelFunc(func(ctx context.Context, req *domain.Request) (any, error) {
			return nil, nil
		}),
		Variables: render.Variables{},
		Responses: memory.NewResponses(map[string]any{
			"Welcome": "Coffee or tea?",
			"Order":   "One {{.drink}}.",
		}),
		OpenIntent: "LaunchIntent",
	})
	require.NoError(t, err)

	require.NoError(t, skill.OnState("entry", domain.State{
		Intents: map[string]domain.IntentHandler{
			"LaunchIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.GoTo("order"), reply.Say(ctx, "Welcome")
			},
		},
	}))
	require.NoError(t, skill.OnState("order", domain.State{
		Intents: map[string]domain.IntentHandler{
			"OrderIntent": func(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
				return domain.Stay(), reply.Say(ctx, "Order")
			},
		},
	}))

	sessions := session.NewManager(memory.NewStore())
	return NewServer(skill, sessions), sessions
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.MCPServer().GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)

	result, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	return result
}

func TestSendIntent_Conversation(t *testing.T) {
	s, sessions := newTestServer(t)

	result := callTool(t, s, "send_intent", map[string]any{"launch": true})
	require.False(t, result.IsError)
	launch, ok := result.StructuredContent.(TurnResponse)
	require.True(t, ok, "got %T", result.StructuredContent)
	assert.NotEmpty(t, launch.SessionID)
	assert.Equal(t, "<speak>Coffee or tea?</speak>", launch.Speech)
	assert.Equal(t, "order", launch.SessionAttributes["state"])

	result = callTool(t, s, "send_intent", map[string]any{
		"session_id": launch.SessionID,
		"intent":     "OrderIntent",
		"slots":      `{"drink":"mocha"}`,
	})
	require.False(t, result.IsError)
	order := result.StructuredContent.(TurnResponse)
	assert.Equal(t, "<speak>One mocha.</speak>", order.Speech)
	assert.Equal(t, string(domain.InputExpecting), order.InputHint)

	result = callTool(t, s, "end_session", map[string]any{"session_id": launch.SessionID})
	require.False(t, result.IsError)
	ended := result.StructuredContent.(TurnResponse)
	assert.True(t, ended.Terminated)

	_, err := sessions.Load(context.Background(), launch.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSendIntent_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing intent", map[string]any{}},
		{"bad slots", map[string]any{"intent": "OrderIntent", "slots": "not json"}},
		{"unhandled", map[string]any{"intent": "NopeIntent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "send_intent", tt.args)
			assert.True(t, result.IsError)
		})
	}

	result := callTool(t, s, "end_session", map[string]any{})
	assert.True(t, result.IsError)
}
