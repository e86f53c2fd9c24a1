package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	t.Run("succeeds without retry", func(t *testing.T) {
		calls := 0
		result, err := Do(context.Background(), Options{BaseDelay: time.Millisecond}, "op", func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		result, err := Do(context.Background(), Options{MaxRetries: 3, BaseDelay: time.Millisecond}, "op", func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts retries and returns last error", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), Options{MaxRetries: 2, BaseDelay: time.Millisecond}, "op", func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("permanent")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls) // initial attempt + 2 retries
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Do(ctx, Options{MaxRetries: 5, BaseDelay: time.Millisecond}, "op", func(ctx context.Context) (int, error) {
			return 0, errors.New("boom")
		})
		require.Error(t, err)
	})
}
