package ports

import (
	"context"

	"github.com/aretw0/skillflow/pkg/domain"
)

// SessionStore defines the interface for persisting session attributes between turns.
// The engine itself holds no turn-spanning state; adapters load and save through this port.
type SessionStore interface {
	// Save persists the session for a given session ID.
	Save(ctx context.Context, sessionID string, session *domain.Session) error

	// Load retrieves the session for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}
