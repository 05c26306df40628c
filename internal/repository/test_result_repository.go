package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/somosuni/lms-backend/internal/model"
)

// TestResultRepository handles recorded test attempts.
type TestResultRepository struct {
	pool *pgxpool.Pool
}

// NewTestResultRepository creates a new TestResultRepository.
func NewTestResultRepository(pool *pgxpool.Pool) *TestResultRepository {
	return &TestResultRepository{pool: pool}
}

// InsertBatch stores many attempts in one round trip using UNNEST and
// returns the rows actually written. Attempts referencing a deleted test or
// student are skipped rather than failing the batch.
func (r *TestResultRepository) InsertBatch(ctx context.Context, batch []model.ResultPayload) ([]model.TestResult, error) {
	n := len(batch)
	if n == 0 {
		return nil, nil
	}

	students := make([]int, 0, n)
	tests := make([]int, 0, n)
	percentages := make([]float64, 0, n)
	completedAts := make([]time.Time, 0, n)
	for _, p := range batch {
		students = append(students, p.StudentID)
		tests = append(tests, p.TestID)
		percentages = append(percentages, p.Percentage)
		completedAts = append(completedAts, p.CompletedAt)
	}

	return r.list(ctx,
		`INSERT INTO test_results (student_id, test_id, percentage, completed_at)
		 SELECT u.student_id, u.test_id, u.percentage, u.completed_at
		 FROM UNNEST(
		 	$1::int[],
		 	$2::int[],
		 	$3::float8[],
		 	$4::timestamptz[]
		 ) AS u (student_id, test_id, percentage, completed_at)
		 JOIN tests t ON t.id = u.test_id
		 JOIN students s ON s.id = u.student_id
		 RETURNING id, student_id, test_id, percentage, completed_at, created_at`,
		students, tests, percentages, completedAts,
	)
}

// Insert stores a single attempt.
func (r *TestResultRepository) Insert(ctx context.Context, p model.ResultPayload) (*model.TestResult, error) {
	var t model.TestResult
	err := r.pool.QueryRow(ctx,
		`INSERT INTO test_results (student_id, test_id, percentage, completed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, student_id, test_id, percentage, completed_at, created_at`,
		p.StudentID, p.TestID, p.Percentage, p.CompletedAt,
	).Scan(&t.ID, &t.StudentID, &t.TestID, &t.Percentage, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByStudent returns every attempt of a student across all tests.
func (r *TestResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.TestResult, error) {
	return r.list(ctx,
		`SELECT id, student_id, test_id, percentage, completed_at, created_at
		 FROM test_results WHERE student_id = $1
		 ORDER BY completed_at DESC, id`, studentID)
}

// ListByStudentAndTest returns a student's attempts at one test, newest first.
func (r *TestResultRepository) ListByStudentAndTest(ctx context.Context, studentID, testID int) ([]model.TestResult, error) {
	return r.list(ctx,
		`SELECT id, student_id, test_id, percentage, completed_at, created_at
		 FROM test_results WHERE student_id = $1 AND test_id = $2
		 ORDER BY completed_at DESC, id`, studentID, testID)
}

// ListByCourse returns every attempt at any test of the course.
func (r *TestResultRepository) ListByCourse(ctx context.Context, courseID int) ([]model.TestResult, error) {
	return r.list(ctx,
		`SELECT tr.id, tr.student_id, tr.test_id, tr.percentage, tr.completed_at, tr.created_at
		 FROM test_results tr
		 JOIN tests t ON t.id = tr.test_id
		 JOIN modules m ON m.id = t.module_id
		 WHERE m.course_id = $1
		 ORDER BY tr.student_id, tr.completed_at DESC, tr.id`, courseID)
}

func (r *TestResultRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.TestResult, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.TestResult{}
	for rows.Next() {
		var tr model.TestResult
		if err := rows.Scan(&tr.ID, &tr.StudentID, &tr.TestID, &tr.Percentage, &tr.CompletedAt, &tr.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, tr)
	}
	return results, rows.Err()
}
