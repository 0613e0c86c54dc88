package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/skillflow/pkg/adapters/memory"
	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
	"github.com/aretw0/skillflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	attrs := make(map[string]any, len(sess.Attributes))
	for k, v := range sess.Attributes {
		attrs[k] = v
	}
	s.data[sessionID] = &domain.Session{ID: sessionID, Attributes: attrs}
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[sessionID]; ok {
		attrs := make(map[string]any, len(sess.Attributes))
		for k, v := range sess.Attributes {
			attrs[k] = v
		}
		return &domain.Session{ID: sessionID, Attributes: attrs}, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_TurnsAreSerialized(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	turns := 10

	// Read-Modify-Write without locking would lose increments.
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Turn(ctx, id, func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
				reply := domain.NewReply(sess.Attributes)
				count, _ := reply.Attribute("count")
				n, _ := count.(int)
				reply.SetAttribute("count", n+1)
				return reply, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, turns, sess.Attributes["count"])
}

func TestManager_LoadOrNew(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	fresh, err := manager.LoadOrNew(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, fresh.IsNew)
	assert.Equal(t, "abc", fresh.ID)

	_, err = manager.Load(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "LoadOrNew does not persist")

	require.NoError(t, manager.Save(ctx, "abc", fresh))
	existing, err := manager.LoadOrNew(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, existing.IsNew)
}

func TestManager_Turn(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	res, err := manager.Turn(ctx, "s1", func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		assert.True(t, sess.IsNew)
		reply := domain.NewReply(sess.Attributes)
		reply.SetAttribute(domain.StateAttribute, "menu")
		return reply, nil
	})
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	require.NotNil(t, res.Diff.State)
	assert.Equal(t, "menu", *res.Diff.State)

	stored, err := manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "menu", stored.Attributes[domain.StateAttribute])

	// A terminated reply closes the session.
	_, err = manager.Turn(ctx, "s1", func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		assert.False(t, sess.IsNew)
		reply := domain.NewReply(sess.Attributes)
		reply.Terminate()
		return reply, nil
	})
	require.NoError(t, err)

	_, err = manager.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_TurnErrorWritesNothing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	boom := errors.New("boom")

	res, err := manager.Turn(ctx, "s1", func(ctx context.Context, sess *domain.Session) (*domain.Reply, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

type recordingLocker struct {
	mu     sync.Mutex
	locked []string
	ttl    time.Duration
	fail   error
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.ttl = ttl
	l.mu.Unlock()
	return func(ctx context.Context) error { return nil }, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))

	require.NoError(t, manager.Save(context.Background(), "s1", domain.NewSession("s1")))
	assert.Equal(t, []string{"s1"}, locker.locked)
	assert.Equal(t, time.Second, locker.ttl)

	locker.fail = errors.New("busy")
	err := manager.Save(context.Background(), "s1", domain.NewSession("s1"))
	assert.ErrorIs(t, err, locker.fail)
}
