package cli

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/skillflow/internal/logging"
	"github.com/aretw0/skillflow/pkg/adapters/file"
	"github.com/aretw0/skillflow/pkg/adapters/redis"
	"github.com/aretw0/skillflow/pkg/persistence/middleware"
	"github.com/aretw0/skillflow/pkg/ports"
	"github.com/aretw0/skillflow/pkg/session"
	backend "github.com/redis/go-redis/v9"
)

// Environment variables read by OpenStore.
const (
	// EnvSessionKey holds the base64 AES-256 key used to encrypt sessions at rest.
	EnvSessionKey = "SKILLFLOW_SESSION_KEY"

	// EnvSessionFallbackKeys holds comma-separated retired keys, still accepted on Load.
	EnvSessionFallbackKeys = "SKILLFLOW_SESSION_FALLBACK_KEYS"

	// EnvPIIKeys holds comma-separated patterns of attribute keys masked before saving.
	EnvPIIKeys = "SKILLFLOW_PII_KEYS"
)

// StoreOptions select the session backend.
type StoreOptions struct {
	// Dir is the project directory. File sessions live under Dir/.skillflow/sessions.
	Dir string

	// RedisURL switches to the Redis store and distributed locker when set.
	RedisURL string

	// TTL expires Redis sessions. Zero keeps them forever.
	TTL time.Duration

	Logger *slog.Logger
}

// Store is an opened session backend.
type Store struct {
	Manager *session.Manager
	Backend string

	closeFn func() error
}

// Close releases the backend connection, if any.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// OpenStore builds the session manager for the CLI: Redis when a URL is given,
// the file store otherwise, wrapped by PII masking and encryption when the
// environment configures them.
func OpenStore(opts StoreOptions) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	out := &Store{}
	var (
		base        ports.SessionStore
		managerOpts = []session.Option{session.WithLogger(opts.Logger)}
	)

	if opts.RedisURL != "" {
		redisOpts, err := backend.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(redisOpts)

		var storeOpts []redis.Option
		if opts.TTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(opts.TTL))
		}
		base = redis.NewFromClient(client, storeOpts...)
		managerOpts = append(managerOpts, session.WithLocker(redis.NewLocker(client, "skillflow:lock:")))
		out.Backend = "redis"
		out.closeFn = client.Close
	} else {
		base = file.New(filepath.Join(opts.Dir, file.DefaultPath))
		out.Backend = "file"
	}

	mws, err := middlewaresFromEnv()
	if err != nil {
		if out.closeFn != nil {
			_ = out.closeFn()
		}
		return nil, err
	}
	if len(mws) > 0 {
		opts.Logger.Debug("session store middleware enabled", "count", len(mws))
	}

	out.Manager = session.NewManager(middleware.Chain(base, mws...), managerOpts...)
	return out, nil
}

// middlewaresFromEnv returns PII masking first so values are masked before
// they are encrypted.
func middlewaresFromEnv() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware

	if keys := splitList(os.Getenv(EnvPIIKeys)); len(keys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(keys))
	}

	raw := strings.TrimSpace(os.Getenv(EnvSessionKey))
	if raw == "" {
		return mws, nil
	}
	active, err := decodeKey(EnvSessionKey, raw)
	if err != nil {
		return nil, err
	}
	var fallbacks [][]byte
	for _, s := range splitList(os.Getenv(EnvSessionFallbackKeys)) {
		key, err := decodeKey(EnvSessionFallbackKeys, s)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, key)
	}

	mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:      active,
		FallbackKeys:   fallbacks,
		AllowPlaintext: true,
	}))
	return mws, nil
}

func decodeKey(name, value string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base64: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s: key must be 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
