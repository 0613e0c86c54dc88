package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnknownState is matched by every UnknownStateError.
	ErrUnknownState = errors.New("unknown state")

	// ErrUnhandledIntent is matched by every UnhandledIntentError.
	ErrUnhandledIntent = errors.New("unhandled intent")

	// ErrHalt is returned by a hook to stop dispatch without failing the turn.
	ErrHalt = errors.New("transition halted by hook")

	// ErrDuplicateState is returned when a state name is registered twice.
	ErrDuplicateState = errors.New("state already registered")

	// ErrRegistrySealed is returned when registering after the skill started serving.
	ErrRegistrySealed = errors.New("registry is sealed")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTemplateNotFound is returned when a response key has no template.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNoRenderer is returned when a reply renders before a renderer was bound.
	ErrNoRenderer = errors.New("reply has no renderer")
)

// ConfigurationError reports a missing or invalid configuration field.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UnknownStateError reports a state name with no registered definition.
type UnknownStateError struct {
	Name string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown state %q", e.Name)
}

func (e *UnknownStateError) Unwrap() error { return ErrUnknownState }

// UnhandledIntentError reports an intent with no handler in the current state
// and no fallback.
type UnhandledIntentError struct {
	State  string
	Intent string
}

func (e *UnhandledIntentError) Error() string {
	return fmt.Sprintf("state %q has no handler for intent %q", e.State, e.Intent)
}

func (e *UnhandledIntentError) Unwrap() error { return ErrUnhandledIntent }
