package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
)

// ResultService accepts attempt submissions and lists past attempts.
type ResultService struct {
	catalog *CatalogService
	results *repository.TestResultRepository
	rdb     *redis.Client
	log     zerolog.Logger
	now     func() time.Time
}

// NewResultService creates a new ResultService.
func NewResultService(catalog *CatalogService, results *repository.TestResultRepository, rdb *redis.Client, log zerolog.Logger) *ResultService {
	return &ResultService{
		catalog: catalog,
		results: results,
		rdb:     rdb,
		log:     log.With().Str("component", "result_service").Logger(),
		now:     time.Now,
	}
}

// Submit queues an attempt for the ingestion worker. The test must exist.
func (s *ResultService) Submit(ctx context.Context, studentID, testID int, req model.SubmitResultRequest) (*model.ResultPayload, error) {
	if _, err := s.catalog.GetTest(ctx, testID); err != nil {
		return nil, err
	}

	p := &model.ResultPayload{
		StudentID:  studentID,
		TestID:     testID,
		Percentage: *req.Percentage,
	}
	if req.CompletedAt != nil && !req.CompletedAt.IsZero() {
		p.CompletedAt = req.CompletedAt.UTC()
	} else {
		p.CompletedAt = s.now().UTC()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.ResultIngestQueue, raw).Err(); err != nil {
		return nil, fmt.Errorf("enqueue result: %w", err)
	}

	s.log.Debug().Int("student_id", studentID).Int("test_id", testID).Float64("percentage", p.Percentage).Msg("result queued")
	return p, nil
}

// ListAttempts returns the student's attempts at a test, newest first.
func (s *ResultService) ListAttempts(ctx context.Context, studentID, testID int) ([]model.TestResult, error) {
	if _, err := s.catalog.GetTest(ctx, testID); err != nil {
		return nil, err
	}
	results, err := s.results.ListByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return results, nil
}
