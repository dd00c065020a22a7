package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RunsAndCollects(t *testing.T) {
	t.Parallel()

	m := NewManager(4)
	var ran atomic.Int32
	boom := errors.New("boom")

	for range 3 {
		require.True(t, m.Go(context.Background(), "count", func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.True(t, m.Go(context.Background(), "fail", func(context.Context) error { return boom }))

	err := m.Wait()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, int32(3), ran.Load())

	assert.False(t, m.Go(context.Background(), "late", func(context.Context) error { return nil }))
}

func TestManager_RecoversPanic(t *testing.T) {
	t.Parallel()

	m := NewManager(1)
	m.Go(context.Background(), "panicky", func(context.Context) error { panic("kaboom") })

	err := m.Wait()
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestManager_Saturated(t *testing.T) {
	t.Parallel()

	m := NewManager(1)
	release := make(chan struct{})
	started := make(chan struct{})

	require.True(t, m.Go(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.False(t, m.Go(context.Background(), "dropped", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, m.Wait())
}

func TestManager_CanceledContext(t *testing.T) {
	t.Parallel()

	m := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	m.Go(ctx, "skip", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, m.Wait())
	assert.False(t, ran.Load())
}

func TestManager_Nil(t *testing.T) {
	t.Parallel()

	var m *Manager
	assert.False(t, m.Go(context.Background(), "x", nil))
	assert.NoError(t, m.Wait())
}
