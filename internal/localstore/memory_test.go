package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no change delivered")
	}
	return Change{}
}

func assertSilent(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_NotifiesOtherTabsOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	a, b := m.Tab("a"), m.Tab("b")

	chA, err := a.Watch(ctx)
	require.NoError(t, err)
	chB, err := b.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "k", "v1"))

	c := receive(t, chB)
	assert.Equal(t, Change{Key: "k", Value: "v1", Source: "a"}, c)
	assertSilent(t, chA)

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestMemory_SameValueDoesNotNotify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	a, b := m.Tab("a"), m.Tab("b")
	require.NoError(t, a.Set(ctx, "k", "v"))

	chB, err := b.Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "k", "v"))
	assertSilent(t, chB)
}

func TestMemory_DeleteNotifiesPerExistingKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemory()
	a, b := m.Tab("a"), m.Tab("b")
	require.NoError(t, a.Set(ctx, "k1", "v"))

	chB, err := b.Watch(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Delete(ctx, "k1", "missing"))

	c := receive(t, chB)
	assert.Equal(t, "k1", c.Key)
	assert.True(t, c.Deleted())
	assertSilent(t, chB)
	assert.Empty(t, m.Snapshot())
}

func TestMemory_WatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewMemory().Tab("a").Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("watch channel not closed")
	}
}
