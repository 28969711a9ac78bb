package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSlidingExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1", "a", time.Hour))
	got, ok := s.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "a", got)

	now = now.Add(50 * time.Minute)
	require.NoError(t, s.Put(ctx, "u1", "b", time.Hour))

	now = now.Add(50 * time.Minute)
	got, ok = s.Get(ctx, "u1")
	require.True(t, ok, "write should have restarted the expiry window")
	assert.Equal(t, "b", got)

	now = now.Add(11 * time.Minute)
	_, ok = s.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestMemoryStoreUsersAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u1", "one", 0))
	_, ok := s.Get(ctx, "u2")
	assert.False(t, ok)
}
