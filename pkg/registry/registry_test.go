package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, req *domain.Request, reply *domain.Reply) (domain.Next, error) {
	return domain.Stay(), nil
}

func TestBuilder_OnState_AssignsName(t *testing.T) {
	b := registry.NewBuilder()
	require.NoError(t, b.OnState("entry", domain.State{
		Name:    "ignored",
		Intents: map[string]domain.IntentHandler{"LaunchIntent": noop},
	}))

	reg := b.Build()
	s, err := reg.Resolve("entry")
	require.NoError(t, err)
	assert.Equal(t, "entry", s.Name)
	assert.Contains(t, s.Intents, "LaunchIntent")
}

func TestBuilder_OnState_RejectsDuplicates(t *testing.T) {
	b := registry.NewBuilder()
	require.NoError(t, b.OnState("entry", domain.State{}))

	err := b.OnState("entry", domain.State{})
	assert.ErrorIs(t, err, domain.ErrDuplicateState)

	assert.Error(t, b.OnState("", domain.State{}))
}

func TestRegistry_Resolve_Unknown(t *testing.T) {
	reg := registry.NewBuilder().Build()

	_, err := reg.Resolve("nowhere")
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	var unknown *domain.UnknownStateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nowhere", unknown.Name)
}

func TestRegistry_IsSnapshot(t *testing.T) {
	b := registry.NewBuilder()
	require.NoError(t, b.OnState("entry", domain.State{}))
	b.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error { return nil })

	reg := b.Build()

	require.NoError(t, b.OnState("late", domain.State{}))
	b.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error { return nil })

	assert.False(t, reg.Has("late"), "registry must not observe post-build registrations")
	assert.Len(t, reg.Hooks(), 1)
	assert.Equal(t, []string{"entry"}, reg.Names())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_HooksKeepOrder(t *testing.T) {
	b := registry.NewBuilder()
	var log []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		b.OnBeforeStateChanged(func(ctx context.Context, req *domain.Request, reply *domain.Reply) error {
			log = append(log, name)
			return nil
		})
	}

	for _, h := range b.Build().Hooks() {
		require.NoError(t, h(context.Background(), &domain.Request{}, domain.NewReply(nil)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, log)
}
