package ports

import "context"

// ResponseSource defines how the renderer retrieves response templates.
// This allows the template storage (Memory, Loam, ...) to be decoupled.
type ResponseSource interface {
	// Lookup returns the raw template registered under key.
	// The value is either a string template or a structured value (maps/slices)
	// whose string leaves are templates.
	// Returns an error wrapping domain.ErrTemplateNotFound when the key is unknown.
	Lookup(ctx context.Context, key string) (any, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that receives the key (or document ID) that changed.
	Watch(ctx context.Context) (<-chan string, error)
}
