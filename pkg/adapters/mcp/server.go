package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/skillflow"
	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/internal/sanitize"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/registry"
	"github.com/aretw0/skillflow/pkg/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const statesURI = "skillflow://states"

// TurnResponse is the structured result of the send_intent tool.
type TurnResponse struct {
	SessionID         string             `json:"session_id" jsonschema_description:"Session to pass back on the next call"`
	Speech            string             `json:"speech" jsonschema_description:"Everything the skill said, wrapped once in <speak>"`
	Directives        []domain.Directive `json:"directives,omitempty" jsonschema_description:"Structured channel directives in push order"`
	SessionAttributes map[string]any     `json:"session_attributes" jsonschema_description:"Attributes persisted for the next turn"`
	Terminated        bool               `json:"terminated" jsonschema_description:"The conversation has ended"`
	InputHint         string             `json:"input_hint" jsonschema_description:"Whether the skill expects the user to speak next"`
}

// SendIntentArgs are the arguments of the send_intent tool.
type SendIntentArgs struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	Slots     string `json:"slots"`
	Launch    bool   `json:"launch"`
}

// EndSessionArgs are the arguments of the end_session tool.
type EndSessionArgs struct {
	SessionID string `json:"session_id"`
}

// Engine is the skill surface the MCP server needs. *skillflow.Skill implements it.
type Engine interface {
	Handle(ctx context.Context, req *domain.Request) (*domain.Reply, error)
	Seal() *registry.Registry
}

// Server exposes a skill as an MCP server.
type Server struct {
	engine    Engine
	sessions  *session.Manager
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("skillflow-mcp", strings.TrimSpace(skillflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	sendTool := mcp.NewTool("send_intent",
		mcp.WithDescription("Run one conversational turn. Omit session_id to start a new conversation."),
		mcp.WithString("session_id", mcp.Description("Session returned by a previous call (optional)")),
		mcp.WithString("intent", mcp.Description("Intent name (ignored when launch is true)")),
		mcp.WithString("slots", mcp.Description("JSON object of slot values (optional)")),
		mcp.WithBoolean("launch", mcp.Description("Open the skill instead of sending an intent")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(sendTool, mcp.NewStructuredToolHandler(s.handleSendIntent))

	endTool := mcp.NewTool("end_session",
		mcp.WithDescription("Tell the skill the user left and forget the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to end")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(endTool, mcp.NewStructuredToolHandler(s.handleEndSession))
}

func (s *Server) handleSendIntent(ctx context.Context, request mcp.CallToolRequest, args SendIntentArgs) (TurnResponse, error) {
	req := &domain.Request{Type: domain.RequestIntent}
	if args.Launch {
		req.Type = domain.RequestLaunch
	} else {
		intent, err := sanitize.Input(args.Intent)
		if err != nil {
			s.logger.Warn("MCP send_intent: Input rejected", "err", err, "size", len(args.Intent))
			return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		if intent == "" {
			return TurnResponse{}, errors.New("intent is required unless launch is set")
		}
		req.IntentName = intent
	}

	if args.Slots != "" {
		var slots map[string]any
		if err := json.Unmarshal([]byte(args.Slots), &slots); err != nil {
			return TurnResponse{}, fmt.Errorf("slots must be a JSON object: %w", err)
		}
		clean, err := sanitize.Slots(slots)
		if err != nil {
			return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		req.Slots = clean
	}

	return s.turn(ctx, args.SessionID, req)
}

func (s *Server) handleEndSession(ctx context.Context, request mcp.CallToolRequest, args EndSessionArgs) (TurnResponse, error) {
	if args.SessionID == "" {
		return TurnResponse{}, errors.New("session_id is required")
	}
	return s.turn(ctx, args.SessionID, &domain.Request{Type: domain.RequestSessionEnded})
}

func (s *Server) turn(ctx context.Context, sessionID string, req *domain.Request) (TurnResponse, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.sessions.Turn(ctx, sessionID, func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		req.Session = *sess
		return s.engine.Handle(ctx, req)
	})
	if err != nil {
		s.logger.Error("MCP turn failed", "session_id", sessionID, "intent", req.IntentName, "err", err)
		return TurnResponse{}, err
	}

	reply := result.Reply
	return TurnResponse{
		SessionID:         sessionID,
		Speech:            reply.Speech(),
		Directives:        reply.Directives(),
		SessionAttributes: reply.SessionAttributes(),
		Terminated:        reply.HasTerminated(),
		InputHint:         string(reply.InputHint()),
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(statesURI, "Registered dialog states",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.Seal().Names())
		if err != nil {
			return nil, fmt.Errorf("failed to encode states: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      statesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
