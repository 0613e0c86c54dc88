package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InputHint tells the channel whether the skill expects the user to speak next.
type InputHint string

const (
	InputExpecting InputHint = "expectingInput"
	InputAccepting InputHint = "acceptingInput"
	InputIgnoring  InputHint = "ignoringInput"
)

const (
	speechOpen      = "<speak>"
	speechClose     = "</speak>"
	speechSeparator = "\n"
)

// RenderFunc resolves a template key for the turn that owns a Reply.
// The bound map holds values attached by handlers through Reply.Bind.
type RenderFunc func(ctx context.Context, key string, bound map[string]any) (any, error)

// Reply accumulates the output of a single turn.
// It is owned by one turn and must not be shared between goroutines.
type Reply struct {
	statements []string
	directives []Directive
	attributes map[string]any
	bound      map[string]any

	terminated bool
	yielded    bool
	inputHint  InputHint

	render RenderFunc
}

// NewReply creates an empty reply seeded with a copy of the given session attributes.
func NewReply(attributes map[string]any) *Reply {
	attrs := make(map[string]any, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	return &Reply{
		attributes: attrs,
		bound:      make(map[string]any),
		inputHint:  InputExpecting,
	}
}

// AddStatement appends one rendered statement to the speech output.
func (r *Reply) AddStatement(text string) {
	r.statements = append(r.statements, text)
}

// Statements returns a copy of the accumulated statements.
func (r *Reply) Statements() []string {
	out := make([]string, len(r.statements))
	copy(out, r.statements)
	return out
}

// Speech returns all statements wrapped once in the speech envelope.
// It returns an empty string when nothing was said.
func (r *Reply) Speech() string {
	if len(r.statements) == 0 {
		return ""
	}
	return speechOpen + strings.Join(r.statements, speechSeparator) + speechClose
}

// HasMessages reports whether at least one statement was added.
func (r *Reply) HasMessages() bool {
	return len(r.statements) > 0
}

// PushDirective appends a directive to the reply.
func (r *Reply) PushDirective(d Directive) {
	r.directives = append(r.directives, d)
}

// Directives returns a copy of the accumulated directives, in push order.
func (r *Reply) Directives() []Directive {
	out := make([]Directive, len(r.directives))
	copy(out, r.directives)
	return out
}

// HasDirectives reports whether at least one directive was pushed.
func (r *Reply) HasDirectives() bool {
	return len(r.directives) > 0
}

// SessionAttributes returns the live attribute map that will be persisted.
func (r *Reply) SessionAttributes() map[string]any {
	return r.attributes
}

// Attribute returns a session attribute.
func (r *Reply) Attribute(key string) (any, bool) {
	v, ok := r.attributes[key]
	return v, ok
}

// SetAttribute sets a session attribute to persist after the turn.
func (r *Reply) SetAttribute(key string, value any) {
	r.attributes[key] = value
}

// DeleteAttribute removes a session attribute.
func (r *Reply) DeleteAttribute(key string) {
	delete(r.attributes, key)
}

// Terminate ends the conversation after this turn. It is idempotent.
func (r *Reply) Terminate() {
	r.terminated = true
	r.inputHint = InputAccepting
}

// HasTerminated reports whether Terminate was called.
func (r *Reply) HasTerminated() bool {
	return r.terminated
}

// InputHint returns the current input hint.
func (r *Reply) InputHint() InputHint {
	return r.inputHint
}

// Clear discards accumulated speech and directives.
// The termination flag is independent and survives Clear; a terminated
// reply keeps its acceptingInput hint.
func (r *Reply) Clear() {
	r.statements = nil
	r.directives = nil
	if !r.terminated {
		r.inputHint = InputExpecting
	}
}

// Yield asks the directive pipeline to stop after the current handler.
func (r *Reply) Yield() {
	r.yielded = true
}

// Yielded reports whether a directive handler yielded.
func (r *Reply) Yielded() bool {
	return r.yielded
}

// Bind attaches a value to the variables used when rendering templates.
func (r *Reply) Bind(key string, value any) {
	r.bound[key] = value
}

// BindRenderer installs the function used by Render.
func (r *Reply) BindRenderer(fn RenderFunc) {
	r.render = fn
}

// Render resolves a template key into literal text or a structured value.
func (r *Reply) Render(ctx context.Context, key string) (any, error) {
	if r.render == nil {
		return nil, ErrNoRenderer
	}
	bound := make(map[string]any, len(r.bound))
	for k, v := range r.bound {
		bound[k] = v
	}
	return r.render(ctx, key, bound)
}

// RenderText renders a template key that must resolve to text.
func (r *Reply) RenderText(ctx context.Context, key string) (string, error) {
	v, err := r.Render(ctx, key)
	if err != nil {
		return "", err
	}
	text, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("template %q rendered %T, expected text", key, v)
	}
	return text, nil
}

// Say renders a template key and adds the result as a statement.
func (r *Reply) Say(ctx context.Context, key string) error {
	text, err := r.RenderText(ctx, key)
	if err != nil {
		return err
	}
	r.AddStatement(text)
	return nil
}

type replyJSON struct {
	Speech            string         `json:"speech"`
	Statements        []string       `json:"statements,omitempty"`
	Directives        []Directive    `json:"directives,omitempty"`
	SessionAttributes map[string]any `json:"sessionAttributes"`
	Terminated        bool           `json:"terminated"`
	InputHint         InputHint      `json:"inputHint"`
}

// MarshalJSON exposes the observable reply for channel adapters.
func (r *Reply) MarshalJSON() ([]byte, error) {
	return json.Marshal(replyJSON{
		Speech:            r.Speech(),
		Statements:        r.statements,
		Directives:        r.directives,
		SessionAttributes: r.attributes,
		Terminated:        r.terminated,
		InputHint:         r.inputHint,
	})
}
