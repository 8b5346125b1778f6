package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingWarehouse answers every statement with a one-row frame and counts round trips.
type countingWarehouse struct {
	calls atomic.Int64
	err   error
	gate  chan struct{}
}

func (w *countingWarehouse) Query(ctx context.Context, sql string, args ...any) (*models.Frame, error) {
	w.calls.Add(1)
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return nil, classify(ctx.Err(), "failed to query")
		}
	}
	if w.err != nil {
		return nil, w.err
	}
	return models.NewFrame("sql").Append(sql), nil
}

func (w *countingWarehouse) Ping(context.Context) error { return nil }
func (w *countingWarehouse) Dialect() query.Dialect     { return query.Question }
func (w *countingWarehouse) Close() error               { return nil }

func TestCachedWarehouseMemoizesByStatementAndArgs(t *testing.T) {
	inner := &countingWarehouse{}
	c := NewCachedWarehouse(inner, 5*time.Minute)
	ctx := context.Background()

	_, err := c.Query(ctx, "SELECT * FROM vw_regional_health")
	require.NoError(t, err)
	_, err = c.Query(ctx, "SELECT * FROM vw_regional_health")
	require.NoError(t, err)
	_, err = c.Query(ctx, "SELECT * FROM fleet_health_scored WHERE region IN (?)", "Texas")
	require.NoError(t, err)
	_, err = c.Query(ctx, "SELECT * FROM fleet_health_scored WHERE region IN (?)", "Ohio")
	require.NoError(t, err)

	assert.Equal(t, int64(3), inner.calls.Load())
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(3), stats.Misses)
	assert.Equal(t, 3, stats.Entries)
}

func TestInvalidateForcesNewRoundTrips(t *testing.T) {
	inner := &countingWarehouse{}
	c := NewCachedWarehouse(inner, 5*time.Minute)
	ctx := context.Background()

	statements := []string{"SELECT 1", "SELECT 2", "SELECT 3"}
	for _, s := range statements {
		_, err := c.Query(ctx, s)
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), inner.calls.Load())

	assert.Equal(t, 3, c.Invalidate())
	for _, s := range statements {
		_, err := c.Query(ctx, s)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(6), inner.calls.Load())
	assert.Equal(t, uint64(1), c.Stats().Invalidations)
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	inner := &countingWarehouse{}
	c := NewCachedWarehouse(inner, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = c.Query(ctx, "SELECT 1")
	now = now.Add(59 * time.Second)
	_, _ = c.Query(ctx, "SELECT 1")
	assert.Equal(t, int64(1), inner.calls.Load())

	now = now.Add(2 * time.Second)
	_, _ = c.Query(ctx, "SELECT 1")
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	inner := &countingWarehouse{err: ErrUnavailable}
	c := NewCachedWarehouse(inner, time.Minute)
	ctx := context.Background()

	_, err := c.Query(ctx, "SELECT 1")
	assert.True(t, errors.Is(err, ErrUnavailable))
	_, err = c.Query(ctx, "SELECT 1")
	assert.Error(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestConcurrentMissesShareOneRoundTrip(t *testing.T) {
	inner := &countingWarehouse{gate: make(chan struct{})}
	c := NewCachedWarehouse(inner, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := c.Query(context.Background(), "SELECT * FROM vw_fleet_health_metrics")
			assert.NoError(t, err)
			assert.Equal(t, 1, f.Len())
		}()
	}
	// let the goroutines pile onto the in-flight load before releasing it
	assert.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.gate)
	wg.Wait()

	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	inner := &countingWarehouse{gate: make(chan struct{})}
	c := NewCachedWarehouse(inner, time.Minute)
	const stmt = "SELECT * FROM vw_regional_health"

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Query(ctxA, stmt)
		errA <- err
	}()
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		frame *models.Frame
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		f, err := c.Query(context.Background(), stmt)
		resB <- result{f, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)

	close(inner.gate)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 1, b.frame.Len())
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1, c.Stats().Entries)
}

func TestLoadStartedBeforeInvalidateIsNotStored(t *testing.T) {
	inner := &countingWarehouse{gate: make(chan struct{})}
	c := NewCachedWarehouse(inner, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Query(context.Background(), "SELECT 1")
	}()
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	c.Invalidate()
	close(inner.gate)
	<-done

	assert.Equal(t, 0, c.Stats().Entries)
}
