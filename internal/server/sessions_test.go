package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docdash/internal/extraction"
)

func TestSessionStoreEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := newSessionStore(10*time.Minute, func() *extraction.AsyncController {
		return extraction.NewAsyncController(nil, nil, extraction.DefaultAsyncConfig())
	})
	store.now = func() time.Time { return now }

	stale := store.create()
	fresh := store.create()
	require.NotEqual(t, stale.id, fresh.id)

	now = now.Add(8 * time.Minute)
	_, ok := store.get(fresh.id)
	require.True(t, ok)

	now = now.Add(5 * time.Minute)
	require.Equal(t, 1, store.evict())

	_, ok = store.get(stale.id)
	require.False(t, ok)
	_, ok = store.get(fresh.id)
	require.True(t, ok)
	require.Equal(t, 1, store.len())

	store.closeAll()
	require.Zero(t, store.len())
}

func TestSessionStoreRemove(t *testing.T) {
	store := newSessionStore(0, func() *extraction.AsyncController {
		return extraction.NewAsyncController(nil, nil, extraction.DefaultAsyncConfig())
	})
	require.Equal(t, DefaultSessionTTL, store.ttl)

	sess := store.create()
	require.True(t, store.remove(sess.id))
	require.False(t, store.remove(sess.id))
}
