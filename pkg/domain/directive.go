package domain

import "context"

// Reserved directive discriminants.
const (
	DirectiveAttachment       = "attachment"
	DirectiveSuggestedActions = "suggestedActions"
)

// Directive is a structured, channel-rendered instruction attached to a reply.
// The payload shape is owned by the channel adapter.
type Directive struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Content is either a template reference or a ready-made value.
// It is resolved once, at the directive call boundary.
type Content struct {
	key     string
	literal any
	isRef   bool
}

// TemplateRef references a template key to render against the turn.
func TemplateRef(key string) Content {
	return Content{key: key, isRef: true}
}

// Literal wraps an already-built payload.
func Literal(value any) Content {
	return Content{literal: value}
}

// IsTemplate reports whether the content is a template reference.
func (c Content) IsTemplate() bool {
	return c.isRef
}

// Key returns the template key (empty for literals).
func (c Content) Key() string {
	return c.key
}

// Resolve renders the template through the reply or returns the literal as is.
func (c Content) Resolve(ctx context.Context, reply *Reply) (any, error) {
	if c.isRef {
		return reply.Render(ctx, c.key)
	}
	return c.literal, nil
}
