// Package scheduler implements the per-user debounced extraction queue: a
// caller announces a new conversation turn with Schedule, which returns
// immediately, and a bounded worker pool drains due jobs and runs extraction
// out of band.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kart-io/memoryx/internal/memory/biz"
	"github.com/kart-io/memoryx/pkg/id"
	ctxlog "github.com/kart-io/memoryx/pkg/infra/logger"
	"github.com/kart-io/memoryx/pkg/infra/pool"
	"github.com/kart-io/memoryx/pkg/infra/tracing"
)

const (
	queueKey      = "memory:extract:queue"
	metaKeyPrefix = "memory:extract:meta:"
	tracerName    = "memory-scheduler"
)

// Extractor runs one extraction cycle for a user. biz.Pipeline satisfies
// this.
type Extractor interface {
	Extract(ctx context.Context, userID string) (biz.Stats, error)
}

// Config holds the scheduler's operational profile.
type Config struct {
	// DebounceDelay is D_debounce: how long a job waits after the most
	// recent schedule() call before it becomes eligible to run.
	DebounceDelay time.Duration

	// MaxWait is D_max_wait: a job continuously delayed longer than this
	// is promoted to immediate execution.
	MaxWait time.Duration

	// MaxAttempts is N_attempts: total extraction attempts (the first run
	// included) before a job is marked failed.
	MaxAttempts int

	// BackoffBase is the base of the exponential retry backoff.
	BackoffBase time.Duration

	// RateLimit and RateBurst configure the global token bucket (R_max
	// per R_window expressed as a rate.Limiter).
	RateLimit rate.Limit
	RateBurst int

	// PollInterval is how often the dispatch loop checks for due jobs.
	PollInterval time.Duration

	// FailedTTL bounds how long a failed job's metadata is retained.
	FailedTTL time.Duration
}

// ProductionConfig returns the suggested production operational profile.
func ProductionConfig() Config {
	return Config{
		DebounceDelay: 30 * time.Second,
		MaxWait:       5 * time.Minute,
		MaxAttempts:   3,
		BackoffBase:   2 * time.Second,
		RateLimit:     10,
		RateBurst:     10,
		PollInterval:  time.Second,
		FailedTTL:     24 * time.Hour,
	}
}

// TestConfig returns a fast profile suited to automated tests.
func TestConfig() Config {
	return Config{
		DebounceDelay: 150 * time.Millisecond,
		MaxWait:       500 * time.Millisecond,
		MaxAttempts:   3,
		BackoffBase:   20 * time.Millisecond,
		RateLimit:     50,
		RateBurst:     50,
		PollInterval:  20 * time.Millisecond,
		FailedTTL:     time.Second,
	}
}

// Scheduler maintains the per-user dedup/delay/promote state machine on top
// of a Redis sorted set and drains due jobs through a bounded worker pool.
type Scheduler struct {
	rdb       *goredis.Client
	pool      *pool.Pool
	limiter   *rate.Limiter
	extractor Extractor
	cfg       Config

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a Scheduler. The pool is expected to be sized N_workers
// (pool.ExtractionPoolConfig by convention).
func New(rdb *goredis.Client, workerPool *pool.Pool, extractor Extractor, cfg Config) *Scheduler {
	return &Scheduler{
		rdb:       rdb,
		pool:      workerPool,
		limiter:   rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		extractor: extractor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

func metaKey(userID string) string {
	return metaKeyPrefix + userID
}

// ScheduleResult reports what the debounce state machine did.
type ScheduleResult string

const (
	ResultScheduled ScheduleResult = "scheduled"
	ResultPostponed ScheduleResult = "postponed"
	ResultPromoted  ScheduleResult = "promoted"
	ResultNoop      ScheduleResult = "noop"
)

// Schedule registers interest in extracting for userID. It returns quickly;
// it never runs extraction inline.
func (s *Scheduler) Schedule(ctx context.Context, userID string) (ScheduleResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "scheduler.Schedule")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.UserID, userID))

	now := time.Now().UnixMilli()

	res, err := scheduleScript.Run(ctx, s.rdb,
		[]string{queueKey, metaKey(userID)},
		userID, now, s.cfg.DebounceDelay.Milliseconds(), s.cfg.MaxWait.Milliseconds(),
	).Text()
	if err != nil {
		err = fmt.Errorf("schedule user %s: %w", userID, err)
		tracing.RecordError(ctx, err)
		return "", err
	}

	tracing.AddSpanAttributes(ctx, tracing.String("scheduler.result", res))
	tracing.SetSpanOK(ctx)
	return ScheduleResult(res), nil
}

// Start launches the dispatch loop in the background. It returns
// immediately; call Stop to shut it down.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop signals the dispatch loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.dispatchReady(ctx)
		}
	}
}

// dispatchReady pops due jobs and submits one worker task per user to the
// pool, bounded by the rate limiter.
func (s *Scheduler) dispatchReady(ctx context.Context) {
	now := time.Now().UnixMilli()
	limit := s.pool.Cap()
	if limit <= 0 {
		limit = 1
	}

	ids, err := dequeueScript.Run(ctx, s.rdb, []string{queueKey}, now, limit).StringSlice()
	if err != nil {
		logger.Errorw("scheduler dequeue failed", "error", err)
		return
	}

	for _, userID := range ids {
		userID := userID
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if err := s.pool.SubmitWithContext(ctx, func() { s.runJob(ctx, userID) }); err != nil {
			logger.Errorw("scheduler submit failed", "user_id", userID, "error", err)
		}
	}
}

// runJob executes one extraction attempt and advances the job's state
// machine on success, retry, or exhaustion. Each attempt gets its own
// correlation ID so the extraction pipeline's logs for a single run can be
// grepped out of a busy worker's interleaved output.
func (s *Scheduler) runJob(ctx context.Context, userID string) {
	ctx = ctxlog.WithRequestID(ctxlog.WithUserID(ctx, userID), id.NewULID())
	ctx, span := tracing.StartSpan(ctx, tracerName, "scheduler.runJob")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.String(tracing.UserID, userID))

	log := ctxlog.GetLogger(ctx)

	key := metaKey(userID)

	_, err := s.extractor.Extract(ctx, userID)
	if err == nil {
		if delErr := s.rdb.Del(ctx, key).Err(); delErr != nil {
			log.Errorw("scheduler clear dedup key failed", "error", delErr)
		}
		tracing.SetSpanOK(ctx)
		return
	}

	log.Errorw("extraction failed", "error", err)
	tracing.RecordError(ctx, err)

	attempts, incrErr := s.rdb.HIncrBy(ctx, key, "attempts", 1).Result()
	if incrErr != nil {
		log.Errorw("scheduler record attempt failed", "error", incrErr)
		return
	}

	if int(attempts) >= s.cfg.MaxAttempts {
		s.rdb.HSet(ctx, key, "state", "failed")
		s.rdb.Expire(ctx, key, s.cfg.FailedTTL)
		return
	}

	backoff := s.cfg.BackoffBase * time.Duration(1<<uint(attempts-1))
	fireAt := time.Now().Add(backoff).UnixMilli()

	s.rdb.HSet(ctx, key, "state", "delayed")
	s.rdb.ZAdd(ctx, queueKey, goredis.Z{Score: float64(fireAt), Member: userID})
}
