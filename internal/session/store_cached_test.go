package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore blocks IsRevoked until release is closed, then answers with
// the lookup's own context error, if any.
type gatedStore struct {
	*MemoryStore
	started chan struct{}
	release chan struct{}
}

func (g *gatedStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return g.MemoryStore.IsRevoked(ctx, id)
}

// deadRedis points at a closed port so every cache read misses quickly.
func deadRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedStore_CancelledCallerDoesNotFailSharedLookup(t *testing.T) {
	inner := &gatedStore{MemoryStore: NewMemoryStore(), started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := newRecord("S1", "U1", "T1", t0)
	_, err := inner.Create(context.Background(), rec)
	require.NoError(t, err)

	s := NewCachedStore(inner, deadRedis(t), time.Minute, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := s.IsRevoked(ctxA, rec.ID)
		errA <- err
	}()
	select {
	case <-inner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("inner lookup never started")
	}

	type outcome struct {
		revoked bool
		err     error
	}
	resB := make(chan outcome, 1)
	go func() {
		revoked, err := s.IsRevoked(context.Background(), rec.ID)
		resB <- outcome{revoked, err}
	}()

	// Give B time to miss the cache and join the in-flight lookup.
	time.Sleep(200 * time.Millisecond)
	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(inner.release)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.False(t, got.revoked)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestCachedStore_FallsBackToInnerWhenRedisDown(t *testing.T) {
	inner := NewMemoryStore()
	rec := newRecord("S1", "U1", "T1", t0)
	_, err := inner.Create(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, inner.Revoke(context.Background(), rec.ID, ReasonLogout, t0))

	s := NewCachedStore(inner, deadRedis(t), time.Minute, nil)
	revoked, err := s.IsRevoked(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}
