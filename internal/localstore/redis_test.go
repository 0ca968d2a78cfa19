package localstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "dash", "device-1", nil), mr
}

func TestRedis_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	tab := r.Tab("a")

	require.NoError(t, tab.Set(ctx, "authToken", "tok"))
	got, err := mr.Get("dash:device-1:authToken")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	v, ok, err := tab.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	require.NoError(t, tab.Delete(ctx, "authToken"))
	_, ok, err = tab.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_WatchSkipsOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, _ := setupRedis(t)
	a, b := r.Tab("a"), r.Tab("b")

	chA, err := a.Watch(ctx)
	require.NoError(t, err)
	chB, err := b.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "activeOrganizationId", "org-2"))

	c := receive(t, chB)
	assert.Equal(t, "activeOrganizationId", c.Key)
	assert.Equal(t, "org-2", c.Value)
	assert.Equal(t, "a", c.Source)
	assertSilent(t, chA)
}

func TestRedis_OriginsAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	one := NewRedis(rdb, "dash", "device-1", nil).Tab("a")
	two := NewRedis(rdb, "dash", "device-2", nil).Tab("a")

	require.NoError(t, one.Set(ctx, "authToken", "tok"))
	_, ok, err := two.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.False(t, ok)
}
