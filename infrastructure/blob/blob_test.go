package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "path-backend/pkg/errors"
)

type failingStore struct {
	calls int
	err   error
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte) error {
	f.calls++
	return f.err
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	return nil, f.err
}

func TestCompressed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	raw := NewMemory()
	store, err := NewCompressed(raw)
	require.NoError(t, err)
	defer store.Close()

	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 2000))
	require.NoError(t, store.Put(ctx, "content/a", payload))

	stored, err := raw.Get(ctx, "content/a")
	require.NoError(t, err)
	assert.Less(t, len(stored), len(payload)/10)

	data, err := store.Get(ctx, "content/a")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestCompressed_MissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	raw := NewMemory()
	store, err := NewCompressed(raw)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "content/missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeContentNotFound))

	require.NoError(t, raw.Put(ctx, "content/bad", []byte("not zstd")))
	_, err = store.Get(ctx, "content/bad")
	assert.Error(t, err)
}

func TestBreaker(t *testing.T) {
	ctx := context.Background()
	config := DefaultBreakerConfig()
	config.MinRequests = 2
	config.FailureThreshold = 0.5
	config.Timeout = time.Hour

	t.Run("opens after failures", func(t *testing.T) {
		next := &failingStore{err: errors.New("connection reset")}
		breaker := NewBreaker(next, config, zap.NewNop())

		assert.Error(t, breaker.Put(ctx, "a", nil))
		assert.Error(t, breaker.Put(ctx, "a", nil))
		assert.Equal(t, gobreaker.StateOpen, breaker.State())

		_, err := breaker.Get(ctx, "a")
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
		assert.Equal(t, 2, next.calls)
	})

	t.Run("missing blobs do not trip", func(t *testing.T) {
		next := &failingStore{err: pkgerrors.ContentNotFound("a")}
		breaker := NewBreaker(next, config, zap.NewNop())

		for i := 0; i < 5; i++ {
			_, err := breaker.Get(ctx, "a")
			assert.True(t, pkgerrors.IsNotFound(err))
		}
		assert.Equal(t, gobreaker.StateClosed, breaker.State())
	})

	t.Run("passes data through", func(t *testing.T) {
		mem := NewMemory()
		breaker := NewBreaker(mem, config, zap.NewNop())
		require.NoError(t, breaker.Put(ctx, "a", []byte("payload")))

		data, err := breaker.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
		assert.Equal(t, 1, mem.Len())
	})
}
