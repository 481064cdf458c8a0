package frontier_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawld/internal/coordination"
	"github.com/jonesrussell/crawld/internal/filter"
	"github.com/jonesrussell/crawld/internal/frontier"
)

func newTestFrontier(t *testing.T, maxRetries int) (*frontier.Frontier, *coordination.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := coordination.New(client)
	f := filter.New(store, 1000, 0.01)
	return frontier.New(store, f, time.Minute, maxRetries), store
}

func TestEnqueueThenClaimReturnsURL(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 3)

	require.NoError(t, f.Enqueue(ctx, "https://a.test/", 0))

	url, err := f.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, "https://a.test/", url)
}

func TestDuplicateEnqueueAdmitsOnce(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 3)

	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))
	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))
	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))

	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func TestClaimOnEmptyFrontierReturnsErrEmpty(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 3)

	_, err := f.Claim(ctx, "worker-1")
	require.ErrorIs(t, err, frontier.ErrEmpty)
}

func TestCompleteThenClaimRequiresReenqueue(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 3)

	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))
	url, err := f.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, f.Complete(ctx, url, "worker-1"))

	_, err = f.Claim(ctx, "worker-1")
	require.ErrorIs(t, err, frontier.ErrEmpty)
}

func TestFailWithRequeueReturnsURLToFrontier(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 3)

	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))
	url, err := f.Claim(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, f.Fail(ctx, url, "worker-1", true))

	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func TestFailExceedingMaxRetriesDropsURL(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFrontier(t, 1)

	require.NoError(t, f.Enqueue(ctx, "https://a.test/x", 0))

	for range 2 {
		url, err := f.Claim(ctx, "worker-1")
		require.NoError(t, err)
		require.NoError(t, f.Fail(ctx, url, "worker-1", true))
	}

	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
}

func TestSweepStaleRecoversExpiredClaims(t *testing.T) {
	ctx := context.Background()
	f, store := newTestFrontier(t, 3)
	f = frontier.New(store, mustFilter(store), -time.Second, 3) // already-expired TTL

	require.NoError(t, f.Enqueue(ctx, "https://a.test/slow", 0))
	_, err := f.Claim(ctx, "worker-1")
	require.NoError(t, err)

	recovered, err := f.SweepStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, recovered)

	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func mustFilter(store *coordination.Store) *filter.Filter {
	return filter.New(store, 1000, 0.01)
}
