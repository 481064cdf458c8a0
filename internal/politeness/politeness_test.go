package politeness_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawld/internal/coordination"
	"github.com/jonesrussell/crawld/internal/politeness"
)

func newController(t *testing.T, cfg politeness.Config) *politeness.Controller {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := coordination.New(client)
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.RobotsCacheTTL == 0 {
		cfg.RobotsCacheTTL = time.Hour
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crawld-test"
	}
	return politeness.New(store, cfg)
}

func TestTryAcquireExclusiveToOneWorker(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{LeaseTTL: time.Minute})

	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-1"))
	err := c.TryAcquire(ctx, "a.test", "worker-2")
	require.ErrorIs(t, err, politeness.ErrBusy)
}

func TestReleaseAllowsNextAcquire(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{LeaseTTL: time.Minute})

	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-1"))
	require.NoError(t, c.Release(ctx, "a.test", "worker-1"))
	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-2"))
}

func TestReleaseIgnoresWrongOwner(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{LeaseTTL: time.Minute})

	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-1"))
	require.NoError(t, c.Release(ctx, "a.test", "worker-2"))

	err := c.TryAcquire(ctx, "a.test", "worker-3")
	require.ErrorIs(t, err, politeness.ErrBusy)
}

func TestTryAcquireEnforcesFloorDelay(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{LeaseTTL: time.Minute, FloorDelay: time.Hour})

	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-1"))
	require.NoError(t, c.Release(ctx, "a.test", "worker-1"))

	err := c.TryAcquire(ctx, "a.test", "worker-2")
	require.ErrorIs(t, err, politeness.ErrDelayNotElapsed)
}

func TestIsAllowedRespectsDisallow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	ctx := context.Background()
	c := newController(t, politeness.Config{})

	allowed, err := c.IsAllowed(ctx, srv.URL+"/private/page")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = c.IsAllowed(ctx, srv.URL+"/public/page")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsAllowedFailsOpenOnFetchError(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{})

	allowed, err := c.IsAllowed(ctx, "http://127.0.0.1:1/page")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRecordOutcomeDoublesDelayOnFailure(t *testing.T) {
	ctx := context.Background()
	c := newController(t, politeness.Config{LeaseTTL: time.Minute})

	require.NoError(t, c.RecordOutcome(ctx, "a.test", true))
	require.NoError(t, c.RecordOutcome(ctx, "a.test", true))

	require.NoError(t, c.TryAcquire(ctx, "a.test", "worker-1"))
	require.NoError(t, c.Release(ctx, "a.test", "worker-1"))

	err := c.TryAcquire(ctx, "a.test", "worker-2")
	require.ErrorIs(t, err, politeness.ErrDelayNotElapsed)
}
