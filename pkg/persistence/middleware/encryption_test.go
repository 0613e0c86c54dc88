package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/persistence/middleware"
	"github.com/aretw0/skillflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "test-session"
	original := domain.NewSession(sessionID)
	original.Attributes["secret"] = "my-secret-sauce"
	original.Attributes[domain.StateAttribute] = "menu"

	require.NoError(t, secureStore.Save(ctx, sessionID, original))

	stored, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Attributes, "secret")
	assert.NotContains(t, stored.Attributes, domain.StateAttribute)
	assert.Contains(t, stored.Attributes, "__encrypted__")

	loaded, err := secureStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Attributes["secret"])
	assert.Equal(t, "menu", loaded.Attributes[domain.StateAttribute])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	sessionID := "rotation-session"
	original := domain.NewSession(sessionID)
	original.Attributes["data"] = "encrypted-with-old-key"
	require.NoError(t, secureStoreOld.Save(ctx, sessionID, original))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, sessionID)
	require.NoError(t, err, "fallback key should decrypt")
	assert.Equal(t, "encrypted-with-old-key", loaded.Attributes["data"])

	loaded.Attributes["data"] = "encrypted-with-new-key"
	require.NoError(t, secureStoreNew.Save(ctx, sessionID, loaded))

	_, err = secureStoreOld.Load(ctx, sessionID)
	assert.ErrorIs(t, err, middleware.ErrDecrypt, "old key alone cannot read data written with the new key")
}

func TestEncryptionMiddleware_Plaintext(t *testing.T) {
	underlyingStore := memory.NewStore()
	ctx := context.Background()

	legacy := domain.NewSession("legacy")
	legacy.Attributes["state"] = "entry"
	require.NoError(t, underlyingStore.Save(ctx, "legacy", legacy))

	strict := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := strict.Load(ctx, "legacy")
	assert.ErrorIs(t, err, middleware.ErrPlaintext)

	lenient := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:      generateKey(t),
		AllowPlaintext: true,
	})(underlyingStore)
	loaded, err := lenient.Load(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "entry", loaded.Attributes["state"])
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestEncryptionMiddleware_EnvelopeIsBoundToSession(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	ctx := context.Background()

	sess := domain.NewSession("alice")
	sess.Attributes["balance"] = "100"
	require.NoError(t, secureStore.Save(ctx, "alice", sess))

	stored, err := underlyingStore.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, stored.Attributes["__key__"], 8, "the key id is stored next to the envelope")

	// Copying alice's envelope onto another session must not decrypt.
	require.NoError(t, underlyingStore.Save(ctx, "mallory", &domain.Session{ID: "mallory", Attributes: stored.Attributes}))
	_, err = secureStore.Load(ctx, "mallory")
	assert.ErrorIs(t, err, middleware.ErrDecrypt)
}
