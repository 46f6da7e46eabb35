package async_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()
		f := async.Async(context.Background(), 42, func(_ context.Context, n int) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return fmt.Sprintf("n=%d", n), nil
		})

		res, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, "n=42", res)
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
			return 0, boom
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled context skips task", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var called atomic.Bool
		f := async.Async(ctx, 0, func(context.Context, int) (int, error) {
			called.Store(true)
			return 1, nil
		})

		_, err := f.Await()
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called.Load())
	})

	t.Run("recovers panic", func(t *testing.T) {
		t.Parallel()
		f := async.Async(context.Background(), 0, func(context.Context, int) (int, error) {
			panic("adapter exploded")
		})

		_, err := f.Await()
		require.ErrorIs(t, err, async.ErrPanic)
		assert.Contains(t, err.Error(), "adapter exploded")
	})
}

func TestSettle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	failed := errors.New("provider rejected")

	futures := []*async.Future[string]{
		async.Async(ctx, "a", func(_ context.Context, s string) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return s, nil
		}),
		async.Async(ctx, "b", func(context.Context, string) (string, error) {
			return "", failed
		}),
		async.Async(ctx, "c", func(_ context.Context, s string) (string, error) {
			return s, nil
		}),
	}

	outcomes := async.Settle(futures...)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "a", outcomes[0].Value)
	assert.False(t, outcomes[1].OK())
	assert.ErrorIs(t, outcomes[1].Err, failed)
	assert.Equal(t, "c", outcomes[2].Value)

	assert.Empty(t, async.Settle[string]())
}
