package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return NewStateStore(client), mr
}

func TestStateStore_SaveAndConsume(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "state-abc", 10*time.Minute))

	ok, err := store.Consume(ctx, "state-abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStateStore_ConsumeIsSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "state-abc", 10*time.Minute))

	ok, err := store.Consume(ctx, "state-abc")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Consume(ctx, "state-abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_ConsumeUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	ok, err := store.Consume(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_ConsumeExpired(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "state-abc", time.Minute))
	mr.FastForward(2 * time.Minute)

	ok, err := store.Consume(ctx, "state-abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
