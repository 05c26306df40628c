package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/config"
	"github.com/somosuni/lms-backend/internal/metrics"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/progress"
	"github.com/somosuni/lms-backend/internal/repository"
)

// OutlineSource loads catalog structure.
type OutlineSource interface {
	GetOutline(ctx context.Context, courseID int) (*model.CourseOutline, error)
	GetModuleOutline(ctx context.Context, moduleID int) (*model.ModuleOutline, error)
	GetTest(ctx context.Context, id int) (*model.Test, error)
	ListCourseIDsForStudent(ctx context.Context, studentID int) ([]int, error)
}

// ResultSource loads recorded attempts.
type ResultSource interface {
	ListByStudent(ctx context.Context, studentID int) ([]model.TestResult, error)
	ListByStudentAndTest(ctx context.Context, studentID, testID int) ([]model.TestResult, error)
	ListByCourse(ctx context.Context, courseID int) ([]model.TestResult, error)
}

// ProgressCache stores rendered progress views per student. Set must refuse
// a view whose generation was superseded by an invalidation.
type ProgressCache interface {
	Get(ctx context.Context, key string, dst interface{}) error
	Generation(ctx context.Context, studentID int) (repository.CacheGeneration, error)
	Set(ctx context.Context, studentID int, gen repository.CacheGeneration, key string, v interface{}) error
	InvalidateStudent(ctx context.Context, studentID int) error
	InvalidateAll(ctx context.Context) error
}

// ThresholdSource resolves the pass mark currently in force.
type ThresholdSource interface {
	PassThreshold(ctx context.Context) float64
}

// StudentNamer resolves display names for reports.
type StudentNamer interface {
	NamesByID(ctx context.Context, ids []int) (map[int]string, error)
}

// CourseProgressView is a student's progress through one course.
type CourseProgressView struct {
	CourseID      int     `json:"course_id"`
	Title         string  `json:"title"`
	PassThreshold float64 `json:"pass_threshold"`
	progress.CourseProgress
}

// ModuleProgressView is a student's progress through one module.
type ModuleProgressView struct {
	ModuleID      int     `json:"module_id"`
	Title         string  `json:"title"`
	PassThreshold float64 `json:"pass_threshold"`
	progress.ModuleProgress
}

// TestStatusView describes the student's standing on one test.
type TestStatusView struct {
	TestID        int                  `json:"test_id"`
	Completed     bool                 `json:"completed"`
	Attempts      int                  `json:"attempts"`
	LatestResult  *progress.TestResult `json:"latest_result"`
	PassThreshold float64              `json:"pass_threshold"`
}

// CourseSummary is one line of the progress overview.
type CourseSummary struct {
	CourseID   int    `json:"course_id"`
	Title      string `json:"title"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// ProgressOverview lists every course the student has attempted.
type ProgressOverview struct {
	StudentID     int             `json:"student_id"`
	PassThreshold float64         `json:"pass_threshold"`
	Courses       []CourseSummary `json:"courses"`
}

// StudentCourseProgress is one row of a course report.
type StudentCourseProgress struct {
	StudentID  int    `json:"student_id"`
	Name       string `json:"name"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// CourseReport shows every student with at least one attempt in a course.
type CourseReport struct {
	CourseID      int                     `json:"course_id"`
	Title         string                  `json:"title"`
	PassThreshold float64                 `json:"pass_threshold"`
	Students      []StudentCourseProgress `json:"students"`
}

// ProgressService renders progress views from the catalog and recorded attempts.
// Rendered views are cached per student; a failing cache only costs a recomputation.
type ProgressService struct {
	outlines  OutlineSource
	results   ResultSource
	cache     ProgressCache
	threshold ThresholdSource
	students  StudentNamer
	log       zerolog.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(
	outlines OutlineSource,
	results ResultSource,
	cache ProgressCache,
	threshold ThresholdSource,
	students StudentNamer,
	log zerolog.Logger,
) *ProgressService {
	return &ProgressService{
		outlines:  outlines,
		results:   results,
		cache:     cache,
		threshold: threshold,
		students:  students,
		log:       log.With().Str("component", "progress_service").Logger(),
	}
}

func (s *ProgressService) calculator(ctx context.Context) progress.Calculator {
	return progress.NewCalculator(progress.Policy{PassThreshold: s.threshold.PassThreshold(ctx)})
}

// CourseProgress returns the student's progress in a course.
func (s *ProgressService) CourseProgress(ctx context.Context, studentID, courseID int) (*CourseProgressView, error) {
	key := config.CacheKey.CourseProgressKey(studentID, courseID)
	return cached(ctx, s, studentID, key, func() (*CourseProgressView, error) {
		outline, err := s.outline(ctx, courseID)
		if err != nil {
			return nil, err
		}
		results, err := s.studentResults(ctx, studentID)
		if err != nil {
			return nil, err
		}
		return s.courseView(s.calculator(ctx), outline, results), nil
	})
}

// ModuleProgress returns the student's progress in a module.
func (s *ProgressService) ModuleProgress(ctx context.Context, studentID, moduleID int) (*ModuleProgressView, error) {
	key := config.CacheKey.ModuleProgressKey(studentID, moduleID)
	return cached(ctx, s, studentID, key, func() (*ModuleProgressView, error) {
		m, err := s.outlines.GetModuleOutline(ctx, moduleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrModuleNotFound
			}
			return nil, fmt.Errorf("load module outline: %w", err)
		}
		results, err := s.studentResults(ctx, studentID)
		if err != nil {
			return nil, err
		}
		calc := s.calculator(ctx)
		return &ModuleProgressView{
			ModuleID:       m.ID,
			Title:          m.Title,
			PassThreshold:  calc.Policy().PassThreshold,
			ModuleProgress: calc.ModuleProgress(progress.IntID(m.ID), testIDs(m.TestIDs), results),
		}, nil
	})
}

// TestStatus returns the latest attempt at a test and whether it counts as completed.
func (s *ProgressService) TestStatus(ctx context.Context, studentID, testID int) (*TestStatusView, error) {
	if _, err := s.outlines.GetTest(ctx, testID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("load test: %w", err)
	}

	rows, err := s.results.ListByStudentAndTest(ctx, studentID, testID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	results := toProgressResults(rows)

	calc := s.calculator(ctx)
	view := &TestStatusView{
		TestID:        testID,
		Attempts:      len(results),
		PassThreshold: calc.Policy().PassThreshold,
	}
	if latest, ok := calc.LatestResultFor(progress.IntID(testID), results); ok {
		view.LatestResult = &latest
		view.Completed = calc.Passed(latest)
	}
	return view, nil
}

// Overview summarizes every course the student has attempted.
func (s *ProgressService) Overview(ctx context.Context, studentID int) (*ProgressOverview, error) {
	key := config.CacheKey.ProgressOverviewKey(studentID)
	return cached(ctx, s, studentID, key, func() (*ProgressOverview, error) {
		courseIDs, err := s.outlines.ListCourseIDsForStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		results, err := s.studentResults(ctx, studentID)
		if err != nil {
			return nil, err
		}

		calc := s.calculator(ctx)
		overview := &ProgressOverview{
			StudentID:     studentID,
			PassThreshold: calc.Policy().PassThreshold,
			Courses:       make([]CourseSummary, 0, len(courseIDs)),
		}
		for _, id := range courseIDs {
			outline, err := s.outline(ctx, id)
			if errors.Is(err, ErrCourseNotFound) {
				continue // deleted since the id list was read
			}
			if err != nil {
				return nil, err
			}
			v := s.courseView(calc, outline, results)
			overview.Courses = append(overview.Courses, CourseSummary{
				CourseID:   v.CourseID,
				Title:      v.Title,
				Completed:  v.Completed,
				Total:      v.Total,
				Percentage: v.Percentage,
			})
		}
		return overview, nil
	})
}

// CourseReport computes course progress for every student with attempts in the course,
// ordered by percentage descending then student id.
func (s *ProgressService) CourseReport(ctx context.Context, courseID int) (*CourseReport, error) {
	outline, err := s.outline(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rows, err := s.results.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course results: %w", err)
	}

	byStudent := make(map[int][]model.TestResult)
	for _, r := range rows {
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}
	ids := make([]int, 0, len(byStudent))
	for id := range byStudent {
		ids = append(ids, id)
	}

	names, err := s.students.NamesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load student names: %w", err)
	}

	calc := s.calculator(ctx)
	modules := toProgressModules(outline)
	report := &CourseReport{
		CourseID:      outline.ID,
		Title:         outline.Title,
		PassThreshold: calc.Policy().PassThreshold,
		Students:      make([]StudentCourseProgress, 0, len(ids)),
	}
	for _, id := range ids {
		cp := calc.CourseProgress(progress.IntID(outline.ID), modules, toProgressResults(byStudent[id]))
		report.Students = append(report.Students, StudentCourseProgress{
			StudentID:  id,
			Name:       names[id],
			Completed:  cp.Completed,
			Total:      cp.Total,
			Percentage: cp.Percentage,
		})
	}
	sort.Slice(report.Students, func(i, j int) bool {
		a, b := report.Students[i], report.Students[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		return a.StudentID < b.StudentID
	})
	return report, nil
}

// Invalidate drops every cached view of the student.
func (s *ProgressService) Invalidate(ctx context.Context, studentID int) error {
	return s.cache.InvalidateStudent(ctx, studentID)
}

func (s *ProgressService) outline(ctx context.Context, courseID int) (*model.CourseOutline, error) {
	outline, err := s.outlines.GetOutline(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course outline: %w", err)
	}
	return outline, nil
}

func (s *ProgressService) studentResults(ctx context.Context, studentID int) ([]progress.TestResult, error) {
	rows, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return toProgressResults(rows), nil
}

func (s *ProgressService) courseView(calc progress.Calculator, outline *model.CourseOutline, results []progress.TestResult) *CourseProgressView {
	return &CourseProgressView{
		CourseID:       outline.ID,
		Title:          outline.Title,
		PassThreshold:  calc.Policy().PassThreshold,
		CourseProgress: calc.CourseProgress(progress.IntID(outline.ID), toProgressModules(outline), results),
	}
}

// cached is a read-through helper over the progress cache.
func cached[T any](ctx context.Context, s *ProgressService, studentID int, key string, compute func() (T, error)) (T, error) {
	var hit T
	switch err := s.cache.Get(ctx, key, &hit); {
	case err == nil:
		metrics.ProgressCacheLookups.WithLabelValues("hit").Inc()
		return hit, nil
	case errors.Is(err, repository.ErrCacheMiss):
		metrics.ProgressCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.ProgressCacheLookups.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Str("key", key).Msg("progress cache read failed")
	}

	// read before compute so an invalidation racing the computation wins
	gen, genErr := s.cache.Generation(ctx, studentID)
	if genErr != nil {
		s.log.Warn().Err(genErr).Int("student_id", studentID).Msg("progress cache generation read failed")
	}

	v, err := compute()
	if err != nil || genErr != nil {
		return v, err
	}
	switch err := s.cache.Set(ctx, studentID, gen, key, v); {
	case err == nil:
	case errors.Is(err, repository.ErrStaleGeneration):
		s.log.Debug().Str("key", key).Msg("progress changed while computing, view not cached")
	default:
		s.log.Warn().Err(err).Str("key", key).Msg("progress cache write failed")
	}
	return v, nil
}

func toProgressResults(rows []model.TestResult) []progress.TestResult {
	out := make([]progress.TestResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, progress.TestResult{
			ID:          r.ID,
			TestID:      progress.IntID(r.TestID),
			Percentage:  r.Percentage,
			CompletedAt: r.CompletedAt,
		})
	}
	return out
}

func toProgressModules(outline *model.CourseOutline) []progress.Module {
	modules := make([]progress.Module, 0, len(outline.Modules))
	for _, m := range outline.Modules {
		modules = append(modules, progress.Module{ID: progress.IntID(m.ID), TestIDs: testIDs(m.TestIDs)})
	}
	return modules
}

func testIDs(ids []int) []progress.ID {
	out := make([]progress.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, progress.IntID(id))
	}
	return out
}
