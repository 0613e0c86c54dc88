package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
)

// Attributes of an encrypted session at rest.
const (
	envelopeKey = "__encrypted__"
	keyIDKey    = "__key__"
)

var (
	// ErrDecrypt is returned when no configured key opens a stored session.
	ErrDecrypt = errors.New("decryption failed with all available keys")

	// ErrPlaintext is returned when a plaintext session is loaded and
	// AllowPlaintext is off.
	ErrPlaintext = errors.New("session is missing encrypted data envelope")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are retired keys still accepted on Load, so keys can be
	// rotated without downtime. Sessions move to ActiveKey on their next Save.
	FallbackKeys [][]byte

	// AllowPlaintext lets Load return sessions saved before encryption was
	// enabled. They are encrypted on their next Save.
	AllowPlaintext bool
}

type sealer struct {
	id   string
	aead cipher.AEAD
}

type encryptionMiddleware struct {
	next           ports.SessionStore
	active         sealer
	keys           []sealer
	allowPlaintext bool
}

// NewEncryptionMiddleware creates a middleware that encrypts session
// attributes with AES-GCM. The stored session only carries an opaque
// envelope and the id of the key that sealed it. The session ID is bound as
// additional data, so an envelope copied to another session fails to open.
// It panics if a key is not 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	active := mustSealer(config.ActiveKey)
	keys := []sealer{active}
	for _, k := range config.FallbackKeys {
		keys = append(keys, mustSealer(k))
	}

	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:           next,
			active:         active,
			keys:           keys,
			allowPlaintext: config.AllowPlaintext,
		}
	}
}

func mustSealer(key []byte) sealer {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("invalid encryption key: %v", err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(fmt.Sprintf("invalid encryption key: %v", err))
	}
	return sealer{id: keyID(key), aead: aead}
}

// keyID fingerprints a key without revealing it.
func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	plaintext, err := json.Marshal(sess.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	nonce := make([]byte, m.active.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}
	sealed := m.active.aead.Seal(nonce, nonce, plaintext, []byte(sessionID))

	return m.next.Save(ctx, sessionID, &domain.Session{
		ID: sessionID,
		Attributes: map[string]any{
			envelopeKey: base64.StdEncoding.EncodeToString(sealed),
			keyIDKey:    m.active.id,
		},
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	stored, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	encoded, ok := stored.Attributes[envelopeKey].(string)
	if !ok {
		if m.allowPlaintext {
			return stored, nil
		}
		return nil, ErrPlaintext
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	id, _ := stored.Attributes[keyIDKey].(string)
	plaintext, err := m.open(sealed, id, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %q: %w", sessionID, err)
	}

	attrs := make(map[string]any)
	if err := json.Unmarshal(plaintext, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}
	return &domain.Session{ID: sessionID, Attributes: attrs}, nil
}

// open tries the key named by id first, then every other key in order.
func (m *encryptionMiddleware) open(sealed []byte, id string, aad []byte) ([]byte, error) {
	for _, k := range m.keys {
		if k.id == id {
			if plain, err := openWith(k.aead, sealed, aad); err == nil {
				return plain, nil
			}
		}
	}
	for _, k := range m.keys {
		if k.id == id {
			continue
		}
		if plain, err := openWith(k.aead, sealed, aad); err == nil {
			return plain, nil
		}
	}
	return nil, ErrDecrypt
}

func openWith(aead cipher.AEAD, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, aad)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
