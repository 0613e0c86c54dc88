package domain

import "context"

// IntentHandler handles one intent within a state.
// It mutates the reply and tells the engine where the conversation goes next.
type IntentHandler func(ctx context.Context, req *Request, reply *Reply) (Next, error)

// Hook runs before the state machine dispatches an intent.
// Returning ErrHalt stops dispatch and keeps the conversation on the current state.
type Hook func(ctx context.Context, req *Request, reply *Reply) error

// RequestHook runs when a request enters the skill, before any state logic.
type RequestHook func(ctx context.Context, req *Request) error

// State is a named node of the dialog graph.
type State struct {
	// Name is assigned by the registry at registration time.
	Name string

	// Intents maps intent names to handlers.
	Intents map[string]IntentHandler

	// Fallback handles intents missing from Intents. Optional.
	Fallback IntentHandler
}

// Handler returns the handler for an intent, falling back to Fallback.
func (s *State) Handler(intent string) (IntentHandler, bool) {
	if h, ok := s.Intents[intent]; ok && h != nil {
		return h, true
	}
	if s.Fallback != nil {
		return s.Fallback, true
	}
	return nil, false
}

type nextKind int

const (
	nextEnd nextKind = iota
	nextGoTo
	nextStay
)

// Next is the normalized result of an intent handler.
// The zero value ends the conversation.
type Next struct {
	kind nextKind
	to   string
}

// GoTo advances the conversation to the named state.
func GoTo(state string) Next {
	return Next{kind: nextGoTo, to: state}
}

// Stay keeps the conversation on the current state.
func Stay() Next {
	return Next{kind: nextStay}
}

// End terminates the conversation after this turn.
func End() Next {
	return Next{kind: nextEnd}
}

// IsEnd reports whether the conversation ends.
func (n Next) IsEnd() bool { return n.kind == nextEnd }

// IsStay reports whether the conversation stays on the current state.
func (n Next) IsStay() bool { return n.kind == nextStay }

// Target returns the state name for GoTo, or "".
func (n Next) Target() string { return n.to }

// Outcome is the result of one transition.
// A nil To marks a terminal turn.
type Outcome struct {
	To    *State
	Reply *Reply
}

// SessionEndedHook runs when the channel reports the session has ended.
type SessionEndedHook func(ctx context.Context, req *Request) error
