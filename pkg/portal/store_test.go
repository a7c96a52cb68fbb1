package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationhub/identity/pkg/portal"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := portal.NewMemoryStore()
	ctx := context.Background()

	token := &portal.Token{
		Value:     "abc",
		ExpiresAt: time.Now().Add(24 * time.Hour),
		Connected: true,
	}
	require.NoError(t, store.Set(ctx, token))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.Value)
	assert.True(t, got.Connected)
	assert.False(t, got.Synced)
}

func TestMemoryStore_ExpiredTokenReadsAsAbsent(t *testing.T) {
	store := portal.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &portal.Token{
		Value:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
		Connected: true,
	}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_LastWriterWins(t *testing.T) {
	store := portal.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &portal.Token{Value: "first", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Set(ctx, &portal.Token{Value: "second", ExpiresAt: time.Now().Add(time.Hour)}))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Value)
}

func TestMemoryStore_ClearRemovesToken(t *testing.T) {
	store := portal.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &portal.Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Clear(ctx))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := portal.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, &portal.Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}))

	first, err := store.Get(ctx)
	require.NoError(t, err)
	first.Synced = true

	second, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, second.Synced, "mutating a read result must not write through")
}
