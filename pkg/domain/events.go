package domain

import (
	"context"
	"time"
)

// TurnEvent describes a turn entering or leaving the skill.
type TurnEvent struct {
	Timestamp  time.Time     `json:"timestamp"`
	SessionID  string        `json:"session_id"`
	Type       RequestType   `json:"type"`
	Intent     string        `json:"intent"`
	Terminated bool          `json:"terminated,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// TransitionEvent describes one resolved transition.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Intent    string    `json:"intent"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"` // empty when the conversation ends
}

// LifecycleHooks defines callbacks for engine observability.
// Every field is optional.
type LifecycleHooks struct {
	OnTurnStart  func(context.Context, *TurnEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnTurnEnd    func(context.Context, *TurnEvent)
}
