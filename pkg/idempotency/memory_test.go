package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ClaimOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, claimed, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, StateInProgress, first.State)

	second, claimed, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, first.ClaimToken, second.ClaimToken)
}

func TestMemoryStore_CompleteRequiresOwnership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	claim, _, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)

	stranger := claim
	stranger.ClaimToken[0] ^= 0xff
	assert.ErrorIs(t, s.Complete(ctx, stranger, []byte(`{}`)), ErrClaimLost)

	require.NoError(t, s.Complete(ctx, claim, []byte(`{"ok":true}`)))
	assert.ErrorIs(t, s.Complete(ctx, claim, []byte(`{"ok":false}`)), ErrClaimLost, "completed result is immutable")

	rec, claimed, err := s.Claim(ctx, "Cmd", "R1", 0)
	require.NoError(t, err)
	assert.False(t, claimed, "completed records are never taken over")
	assert.Equal(t, StateCompleted, rec.State)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Result))
	assert.False(t, rec.CompletedAt.IsZero())
}

func TestMemoryStore_ReleaseOnlyByOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale, _, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	current, claimed, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)
	assert.NotEqual(t, stale.ClaimToken, current.ClaimToken)

	require.NoError(t, s.Release(ctx, stale))
	assert.Equal(t, 1, s.Len(), "a stale owner must not release the new claim")

	require.NoError(t, s.Release(ctx, current))
	assert.Zero(t, s.Len())
}

func TestMemoryStore_ReleaseKeepsCompleted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	claim, _, err := s.Claim(ctx, "Cmd", "R1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, claim, []byte(`{}`)))

	require.NoError(t, s.Release(ctx, claim))
	assert.Equal(t, 1, s.Len())
}
