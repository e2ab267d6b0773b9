package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoryx/internal/memory/biz"
	"github.com/kart-io/memoryx/pkg/infra/pool"
)

var errExtraction = errors.New("extraction failed")

type fakeExtractor struct {
	calls     int32
	failUntil int32
	lastUser  atomic.Value
}

func (f *fakeExtractor) Extract(_ context.Context, userID string) (biz.Stats, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastUser.Store(userID)
	if n <= f.failUntil {
		return biz.Stats{}, errExtraction
	}
	return biz.Stats{MessagesExtracted: 1}, nil
}

func setupTestScheduler(t *testing.T, extractor Extractor, cfg Config) (*Scheduler, *goredis.Client, *pool.Pool) {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	p, err := pool.NewPool("extraction-test", pool.ExtractionPoolConfig())
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return New(rdb, p, extractor, cfg), rdb, p
}

func TestScheduler_Schedule_CreatesDelayedJob(t *testing.T) {
	s, rdb, _ := setupTestScheduler(t, &fakeExtractor{}, TestConfig())
	ctx := context.Background()

	res, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, ResultScheduled, res)

	score, err := rdb.ZScore(ctx, queueKey, "user-1").Result()
	require.NoError(t, err)
	require.Greater(t, score, float64(time.Now().UnixMilli()))

	state, err := rdb.HGet(ctx, metaKey("user-1"), "state").Result()
	require.NoError(t, err)
	require.Equal(t, "delayed", state)
}

func TestScheduler_Schedule_PostponesExisting(t *testing.T) {
	s, rdb, _ := setupTestScheduler(t, &fakeExtractor{}, TestConfig())
	ctx := context.Background()

	_, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)
	first, err := rdb.ZScore(ctx, queueKey, "user-1").Result()
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	res, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, ResultPostponed, res)

	second, err := rdb.ZScore(ctx, queueKey, "user-1").Result()
	require.NoError(t, err)
	require.Greater(t, second, first)
}

func TestScheduler_Schedule_NoopWhileActive(t *testing.T) {
	s, rdb, _ := setupTestScheduler(t, &fakeExtractor{}, TestConfig())
	ctx := context.Background()

	require.NoError(t, rdb.HSet(ctx, metaKey("user-1"), "state", "active").Err())

	res, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, ResultNoop, res)
}

func TestScheduler_Schedule_PromotesAfterMaxWait(t *testing.T) {
	cfg := TestConfig()
	s, _, _ := setupTestScheduler(t, &fakeExtractor{}, cfg)
	ctx := context.Background()

	_, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)
	start := time.Now()

	var res ScheduleResult
	require.Eventually(t, func() bool {
		res, err = s.Schedule(ctx, "user-1")
		require.NoError(t, err)
		return res == ResultPromoted
	}, 2*time.Second, 10*time.Millisecond, "debounce coalescing must eventually promote a continuously postponed job")

	require.Equal(t, ResultPromoted, res)
	require.GreaterOrEqual(t, time.Since(start), cfg.MaxWait)
}

func TestScheduler_Dispatch_RunsExtractionAndClearsDedup(t *testing.T) {
	extractor := &fakeExtractor{}
	cfg := TestConfig()
	s, rdb, _ := setupTestScheduler(t, extractor, cfg)
	ctx := context.Background()

	_, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&extractor.calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return rdb.Exists(ctx, metaKey("user-1")).Val() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_Dispatch_RetriesOnFailure(t *testing.T) {
	extractor := &fakeExtractor{failUntil: 1}
	cfg := TestConfig()
	s, _, _ := setupTestScheduler(t, extractor, cfg)
	ctx := context.Background()

	_, err := s.Schedule(ctx, "user-1")
	require.NoError(t, err)

	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&extractor.calls) >= 2
	}, 3*time.Second, 10*time.Millisecond)
}
