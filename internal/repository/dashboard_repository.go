package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DashboardCounts are the catalog and activity totals.
type DashboardCounts struct {
	Courses  int `json:"courses"`
	Modules  int `json:"modules"`
	Tests    int `json:"tests"`
	Students int `json:"students"`
	Attempts int `json:"attempts"`
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (DashboardCounts, error) {
	var c DashboardCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM courses),
			(SELECT COUNT(*) FROM modules),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM test_results)`,
	).Scan(&c.Courses, &c.Modules, &c.Tests, &c.Students, &c.Attempts)
	return c, err
}

// CountPassingAttempts counts attempts scoring at least threshold.
func (r *DashboardRepository) CountPassingAttempts(ctx context.Context, threshold float64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_results WHERE percentage >= $1`, threshold,
	).Scan(&n)
	return n, err
}

// DashboardRecentAttempt is one row of the recent activity feed.
type DashboardRecentAttempt struct {
	ID          int64     `json:"id"`
	StudentName string    `json:"student_name"`
	CourseTitle string    `json:"course_title"`
	TestTitle   string    `json:"test_title"`
	Percentage  float64   `json:"percentage"`
	CompletedAt time.Time `json:"completed_at"`
}

// GetRecentAttempts retrieves the last N recorded attempts.
func (r *DashboardRepository) GetRecentAttempts(ctx context.Context, limit int) ([]DashboardRecentAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tr.id, s.name, c.title, t.title, tr.percentage, tr.completed_at
		 FROM test_results tr
		 JOIN students s ON s.id = tr.student_id
		 JOIN tests t ON t.id = tr.test_id
		 JOIN modules m ON m.id = t.module_id
		 JOIN courses c ON c.id = m.course_id
		 ORDER BY tr.created_at DESC, tr.id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []DashboardRecentAttempt{}
	for rows.Next() {
		var a DashboardRecentAttempt
		if err := rows.Scan(&a.ID, &a.StudentName, &a.CourseTitle, &a.TestTitle, &a.Percentage, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
