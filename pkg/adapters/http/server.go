package http

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
	"github.com/aretw0/skillflow/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// TurnHandler runs one turn of a skill. *skillflow.Skill implements it.
type TurnHandler interface {
	Handle(ctx context.Context, req *domain.Request) (*domain.Reply, error)
}

// TurnRequest is the body of POST /turns.
type TurnRequest struct {
	SessionID string             `json:"session_id,omitempty"`
	Type      domain.RequestType `json:"type"`
	Intent    string             `json:"intent,omitempty"`
	Slots     map[string]any     `json:"slots,omitempty"`
	Locale    string             `json:"locale,omitempty"`
}

// TurnResponse is the body returned by POST /turns.
type TurnResponse struct {
	SessionID string              `json:"session_id"`
	Reply     *domain.Reply       `json:"reply"`
	Diff      *domain.SessionDiff `json:"diff,omitempty"`
}

// Server serves the turn API for one skill.
type Server struct {
	Skill    TurnHandler
	Sessions *session.Manager
	Streams  *StreamManager

	logger    *slog.Logger
	extra     func(chi.Router)
	keepAlive time.Duration
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRoutes mounts additional routes (e.g. /metrics) on the router.
// They bypass schema validation.
func WithRoutes(fn func(chi.Router)) Option {
	return func(s *Server) {
		s.extra = fn
	}
}

// WithKeepAlive sets the interval between SSE keep-alive comments on /events.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

// NewHandler creates a new HTTP handler for the skill.
// It panics if the embedded OpenAPI document is invalid.
func NewHandler(skill TurnHandler, sessions *session.Manager, opts ...Option) http.Handler {
	server := &Server{
		Skill:     skill,
		Sessions:  sessions,
		Streams:   NewStreamManager(),
		logger:    logging.NewNop(),
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams.logger = server.logger
	if server.keepAlive <= 0 {
		server.keepAlive = DefaultKeepAlive
	}

	doc, err := GetSwagger()
	if err != nil {
		panic(err)
	}
	validator, err := requestValidator(doc, server.logger)
	if err != nil {
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if server.extra != nil {
		server.extra(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(validator)
		r.Post("/turns", server.PostTurn)
		r.Get("/sessions/{sessionId}", server.GetSession)
		r.Delete("/sessions/{sessionId}", server.DeleteSession)
		r.Get("/events", server.SubscribeEvents)
		r.Get("/health", server.GetHealth)
		r.Get("/info", server.GetInfo)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Skillflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// PostTurn handles the POST /turns request.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	intent, err := sanitize.Input(body.Intent)
	if err != nil {
		s.logger.Warn("PostTurn: Input rejected", "err", err, "size", len(body.Intent))
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("invalid intent: %w", err))
		return
	}
	slots, err := sanitize.Slots(body.Slots)
	if err != nil {
		s.logger.Warn("PostTurn: Slots rejected", "err", err)
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("invalid slots: %w", err))
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.Sessions.Turn(r.Context(), sessionID, func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		return s.Skill.Handle(ctx, &domain.Request{
			Type:       body.Type,
			IntentName: intent,
			Slots:      slots,
			Session:    *sess,
			Locale:     body.Locale,
		})
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Turn failed", "session_id", sessionID, "intent", intent, "err", err)
		}
		writeError(w, s.logger, status, err)
		return
	}

	if result.Diff != nil {
		s.logger.Debug("PostTurn: Diff calculated", "diff", result.Diff, "session_id", sessionID)
		if bytes, err := json.Marshal(result.Diff); err == nil {
			s.Streams.Broadcast(sessionID, EventDiff, string(bytes))
		}
	}
	if result.Reply.HasTerminated() {
		s.Streams.Broadcast(sessionID, EventEnded, sessionID)
	}

	writeJSON(w, s.logger, http.StatusOK, TurnResponse{
		SessionID: sessionID,
		Reply:     result.Reply,
		Diff:      result.Diff,
	})
}

// GetSession handles the GET /sessions/{sessionId} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	sess, err := s.Sessions.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, sess)
}

// DeleteSession handles the DELETE /sessions/{sessionId} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionParam(w, r)
	if !ok {
		return
	}

	if err := s.Sessions.Delete(r.Context(), sessionID); err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}

	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":         "skillflow-http",
		"version":     strings.TrimSpace(skillflow.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "sessionId", chi.URLParam(r, "sessionId"), &sessionID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("invalid format for parameter sessionId: %w", err))
		return "", false
	}
	return sessionID, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnhandledIntent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnknownState):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	writeJSON(w, logger, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
