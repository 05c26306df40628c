package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/metrics"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultStore persists attempts.
type ResultStore interface {
	InsertBatch(ctx context.Context, batch []model.ResultPayload) ([]model.TestResult, error)
	Insert(ctx context.Context, p model.ResultPayload) (*model.TestResult, error)
}

// ProgressInvalidator drops a student's cached progress.
type ProgressInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID int) error
}

// Requeuer pushes an attempt back onto the ingest queue.
type Requeuer interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ResultWorker drains the result ingest queue into Postgres, then
// invalidates the affected progress caches and notifies live streams.
type ResultWorker struct {
	store ResultStore
	cache ProgressInvalidator
	rdb   *redis.Client
	queue Requeuer
	log   zerolog.Logger
}

func NewResultWorker(store ResultStore, cache ProgressInvalidator, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		store: store,
		cache: cache,
		rdb:   rdb,
		queue: rdb,
		log:   log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.ResultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if shouldFlush(len(batch), time.Since(lastFlush)) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.ResultIngestQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			p, err := decodePayload(item[1])
			if err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Dropping invalid result payload")
				metrics.ResultsIngested.WithLabelValues("dropped").Inc()
				continue
			}

			batch = append(batch, p)
		}
	}
}

// shouldFlush reports whether a pending batch is full or has waited long enough.
func shouldFlush(pending int, sinceFlush time.Duration) bool {
	return pending > 0 && (pending >= ResultBatchSize || sinceFlush >= ResultBatchTimeout)
}

// decodePayload parses and sanity-checks one queued attempt.
func decodePayload(raw string) (model.ResultPayload, error) {
	var p model.ResultPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, err
	}
	switch {
	case p.StudentID <= 0 || p.TestID <= 0:
		return p, fmt.Errorf("invalid ids student=%d test=%d", p.StudentID, p.TestID)
	case p.Percentage < 0 || p.Percentage > 100:
		return p, fmt.Errorf("percentage %v out of range", p.Percentage)
	case p.CompletedAt.IsZero():
		return p, errors.New("missing completed_at")
	}
	return p, nil
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.ResultPayload) {
	if len(batch) == 0 {
		return
	}

	stored, err := w.store.InsertBatch(ctx, batch)
	if err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk result insert failed, using fallback")
		stored = w.insertEach(ctx, batch)
	} else if skipped := len(batch) - len(stored); skipped > 0 {
		w.log.Warn().Int("skipped", skipped).Msg("Results referencing deleted tests or students were skipped")
		metrics.ResultsIngested.WithLabelValues("dropped").Add(float64(skipped))
	}

	metrics.ResultsIngested.WithLabelValues("stored").Add(float64(len(stored)))
	if len(stored) == 0 {
		return
	}

	for _, studentID := range distinctStudents(stored) {
		if err := w.cache.InvalidateStudent(ctx, studentID); err != nil {
			w.log.Warn().Err(err).Int("student_id", studentID).Msg("Progress cache invalidation failed")
		}
	}
	w.publish(ctx, stored)
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *ResultWorker) insertEach(ctx context.Context, batch []model.ResultPayload) []model.TestResult {
	stored := make([]model.TestResult, 0, len(batch))
	for _, p := range batch {
		tr, err := w.store.Insert(ctx, p)
		switch {
		case err == nil:
			stored = append(stored, *tr)
		case repository.IsForeignKeyViolation(err):
			w.log.Warn().Int("student_id", p.StudentID).Int("test_id", p.TestID).Msg("Dropping result for deleted test or student")
			metrics.ResultsIngested.WithLabelValues("dropped").Inc()
		default:
			if qerr := w.requeue(ctx, p); qerr != nil {
				w.log.Error().Err(qerr).AnErr("insert_error", err).
					Int("student_id", p.StudentID).Int("test_id", p.TestID).
					Float64("percentage", p.Percentage).Time("completed_at", p.CompletedAt).
					Msg("insert and requeue failed, result lost")
				metrics.ResultsIngested.WithLabelValues("lost").Inc()
				continue
			}
			w.log.Error().Err(err).Int("student_id", p.StudentID).Msg("insert failed, requeued")
			metrics.ResultsIngested.WithLabelValues("requeued").Inc()
		}
	}
	return stored
}

func (w *ResultWorker) requeue(ctx context.Context, p model.ResultPayload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return w.queue.RPush(ctx, config.WorkerKey.ResultIngestQueue, raw).Err()
}

// ----------------------------------------------------------------
// Redis PubSub notification
// ----------------------------------------------------------------

func (w *ResultWorker) publish(ctx context.Context, stored []model.TestResult) {
	pipe := w.rdb.Pipeline()
	for _, evt := range resultEvents(stored) {
		raw, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		pipe.Publish(ctx, config.CacheKey.StudentProgressChannel(evt.StudentID), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Publishing result events failed")
	}
}

// distinctStudents returns each student id once, in first-seen order.
func distinctStudents(results []model.TestResult) []int {
	seen := make(map[int]struct{}, len(results))
	ids := make([]int, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.StudentID]; ok {
			continue
		}
		seen[r.StudentID] = struct{}{}
		ids = append(ids, r.StudentID)
	}
	return ids
}

func resultEvents(results []model.TestResult) []model.ResultEvent {
	events := make([]model.ResultEvent, 0, len(results))
	for _, r := range results {
		events = append(events, model.ResultEvent{
			Type:       model.ResultEventRecorded,
			StudentID:  r.StudentID,
			TestID:     r.TestID,
			Percentage: r.Percentage,
			RecordedAt: r.CreatedAt,
		})
	}
	return events
}
