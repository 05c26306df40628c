package service

import (
	"context"
	"fmt"
	"math"

	"github.com/somosuni/lms-backend/internal/repository"
)

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts         repository.DashboardCounts          `json:"counts"`
	PassThreshold  float64                             `json:"pass_threshold"`
	PassingCount   int                                 `json:"passing_attempts"`
	PassRate       float64                             `json:"pass_rate"`
	RecentAttempts []repository.DashboardRecentAttempt `json:"recent_attempts"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo      *repository.DashboardRepository
	threshold ThresholdSource
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository, threshold ThresholdSource) *DashboardService {
	return &DashboardService{repo: repo, threshold: threshold}
}

// GetDashboardData collects counts, the attempt pass rate and recent activity.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	counts, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}

	threshold := s.threshold.PassThreshold(ctx)
	passing, err := s.repo.CountPassingAttempts(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("passing attempts: %w", err)
	}

	recent, err := s.repo.GetRecentAttempts(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}

	return &DashboardData{
		Counts:         counts,
		PassThreshold:  threshold,
		PassingCount:   passing,
		PassRate:       passRate(passing, counts.Attempts),
		RecentAttempts: recent,
	}, nil
}

// passRate returns passing/total as a percentage with one decimal.
func passRate(passing, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(passing)*1000/float64(total)) / 10
}
