package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract checks the behaviour every SessionStore must share.
// Stores that serialize to JSON may turn numbers into float64, so numeric
// attributes are only checked for presence.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := fmt.Sprintf("contract-%d", time.Now().UnixNano())

	t.Run("SaveLoad", func(t *testing.T) {
		sess := domain.NewSession(sessionID)
		sess.Attributes[domain.StateAttribute] = "menu"
		sess.Attributes["count"] = 42
		sess.Attributes["order"] = map[string]any{"drink": "tea"}

		require.NoError(t, store.Save(ctx, sessionID, sess))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, loaded.ID)
		assert.False(t, loaded.IsNew, "IsNew is never persisted")
		assert.Equal(t, "menu", loaded.Attributes[domain.StateAttribute])
		assert.NotNil(t, loaded.Attributes["count"])

		order, ok := loaded.Attributes["order"].(map[string]any)
		require.True(t, ok, "nested attributes keep their shape, got %T", loaded.Attributes["order"])
		assert.Equal(t, "tea", order["drink"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		sess := domain.NewSession(sessionID)
		sess.Attributes[domain.StateAttribute] = "checkout"
		require.NoError(t, store.Save(ctx, sessionID, sess))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "checkout", loaded.Attributes[domain.StateAttribute])
		assert.NotContains(t, loaded.Attributes, "count", "Save replaces every attribute")
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewSession(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting a missing session is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := sessionID+"-1", sessionID+"-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSession(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewSession(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
