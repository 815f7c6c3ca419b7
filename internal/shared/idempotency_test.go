package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyClaimOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, store.Claim(ctx, "sales", key))
	err := store.Claim(ctx, "sales", key)
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrConflict)

	// keys are scoped per module
	require.NoError(t, store.Claim(ctx, "debt", key))
}

func TestIdempotencyReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, store.Claim(ctx, "sales", key))
	require.NoError(t, store.Release(ctx, "sales", key))
	require.NoError(t, store.Claim(ctx, "sales", key))
}

func TestIdempotencyExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, store.Claim(ctx, "sales", key))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, store.Claim(ctx, "sales", key))
}

func TestIdempotencyRejectsMalformedKey(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Claim(context.Background(), "sales", "not-a-uuid")
	require.ErrorIs(t, err, ErrValidation)
}
