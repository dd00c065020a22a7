package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/pkg/testkit"
)

func TestStateTracker_Exec(t *testing.T) {
	client := testkit.Redis(t)
	tracker := New(client, "")
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "alice", nil
	}

	ref, err := tracker.Exec(ctx, "k1", fn)
	require.NoError(t, err)
	assert.Equal(t, "alice", ref)

	ref, err = tracker.Exec(ctx, "k1", fn)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Equal(t, "alice", ref)
	assert.Equal(t, 1, calls)

	stored, err := client.Get(ctx, "idempotency:k1").Result()
	require.NoError(t, err)
	assert.Equal(t, "completed|alice", stored)
}

func TestStateTracker_FailureReleasesKey(t *testing.T) {
	client := testkit.Redis(t)
	tracker := New(client, "test:")
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := tracker.Exec(ctx, "k2", func(context.Context) (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	ref, err := tracker.Exec(ctx, "k2", func(context.Context) (string, error) { return "bob", nil })
	require.NoError(t, err)
	assert.Equal(t, "bob", ref)
}

func TestStateTracker_InProgress(t *testing.T) {
	client := testkit.Redis(t)
	tracker := New(client, "")
	ctx := context.Background()

	state, _, err := tracker.Acquire(ctx, "k3", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateNone, state)

	_, err = tracker.Exec(ctx, "k3", func(context.Context) (string, error) { return "x", nil })
	require.ErrorIs(t, err, ErrAlreadyInProgress)

	require.NoError(t, client.Set(ctx, "idempotency:k4", "garbage", time.Minute).Err())
	state, _, err = tracker.Acquire(ctx, "k4", time.Minute)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateError, state)

	require.NoError(t, tracker.MarkFailed(ctx, "k5", time.Minute))
	_, err = tracker.Exec(ctx, "k5", func(context.Context) (string, error) { return "x", nil })
	require.ErrorIs(t, err, ErrAlreadyFailed)
}
