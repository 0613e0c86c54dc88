// Package directives provides the reply directive pipeline and the
// built-in card handlers.
package directives

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/skillflow/pkg/domain"
)

// Event is the turn request a directive handler runs for.
type Event = *domain.Request

// Handler appends output to a reply. It may call reply.Yield to stop the
// remaining handlers of the pipeline.
type Handler func(ctx context.Context, reply *domain.Reply, event Event) error

// ErrNotText is returned when literal speech is not a string.
var ErrNotText = errors.New("speech is not text")

// AudioCardContentType is the attachment content type pushed by AudioCard.
const AudioCardContentType = "application/vnd.microsoft.card.audio"

// MediaURL is one playable media entry.
type MediaURL struct {
	URL     string `json:"url"`
	Profile string `json:"profile,omitempty"`
}

// AudioCardPayload is the attachment pushed by AudioCard.
type AudioCardPayload struct {
	ContentType string     `json:"contentType"`
	Title       string     `json:"title,omitempty"`
	Media       []MediaURL `json:"media"`
}

// Run invokes handlers in order. It stops after a handler yields and
// returns the first handler error. Output produced before the stop is kept.
func Run(ctx context.Context, reply *domain.Reply, event Event, handlers ...Handler) error {
	for _, h := range handlers {
		if reply.Yielded() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, reply, event); err != nil {
			return err
		}
	}
	return nil
}

// HeroCard pushes an attachment directive. A template reference is rendered
// through the reply, a literal is used as is.
func HeroCard(content domain.Content) Handler {
	return push(domain.DirectiveAttachment, content)
}

// SuggestedActions pushes a suggested-actions directive.
func SuggestedActions(content domain.Content) Handler {
	return push(domain.DirectiveSuggestedActions, content)
}

func push(kind string, content domain.Content) Handler {
	return func(ctx context.Context, reply *domain.Reply, event Event) error {
		payload, err := content.Resolve(ctx, reply)
		if err != nil {
			return err
		}
		reply.PushDirective(domain.Directive{Type: kind, Payload: payload})
		return nil
	}
}

// AudioCard pushes an audio attachment, terminates the conversation and
// yields the rest of the pipeline.
func AudioCard(url, title, profile string) Handler {
	return func(ctx context.Context, reply *domain.Reply, event Event) error {
		reply.PushDirective(domain.Directive{
			Type: domain.DirectiveAttachment,
			Payload: AudioCardPayload{
				ContentType: AudioCardContentType,
				Title:       title,
				Media:       []MediaURL{{URL: url, Profile: profile}},
			},
		})
		reply.Terminate()
		reply.Yield()
		return nil
	}
}

// Speech adds a statement. A template reference must render to text.
func Speech(content domain.Content) Handler {
	return func(ctx context.Context, reply *domain.Reply, event Event) error {
		if content.IsTemplate() {
			return reply.Say(ctx, content.Key())
		}
		v, err := content.Resolve(ctx, reply)
		if err != nil {
			return err
		}
		text, ok := v.(string)
		if !ok {
			return fmt.Errorf("literal %T: %w", v, ErrNotText)
		}
		reply.AddStatement(text)
		return nil
	}
}
