package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/progress"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutlines struct {
	courses map[int]*model.CourseOutline
	tests   map[int]bool
}

func (f *fakeOutlines) GetOutline(_ context.Context, courseID int) (*model.CourseOutline, error) {
	if o, ok := f.courses[courseID]; ok {
		return o, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOutlines) GetModuleOutline(_ context.Context, moduleID int) (*model.ModuleOutline, error) {
	for _, c := range f.courses {
		for _, m := range c.Modules {
			if m.ID == moduleID {
				m := m
				return &m, nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOutlines) GetTest(_ context.Context, id int) (*model.Test, error) {
	if f.tests[id] {
		return &model.Test{ID: id}, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOutlines) ListCourseIDsForStudent(context.Context, int) ([]int, error) {
	ids := make([]int, 0, len(f.courses))
	for id := range f.courses {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeResults struct {
	rows []model.TestResult
}

func (f *fakeResults) ListByStudent(_ context.Context, studentID int) ([]model.TestResult, error) {
	var out []model.TestResult
	for _, r := range f.rows {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResults) ListByStudentAndTest(_ context.Context, studentID, testID int) ([]model.TestResult, error) {
	var out []model.TestResult
	for _, r := range f.rows {
		if r.StudentID == studentID && r.TestID == testID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResults) ListByCourse(context.Context, int) ([]model.TestResult, error) {
	return f.rows, nil
}

type fakeCache struct {
	getErr  error
	setErr  error
	stored  map[string]interface{}
	sets    int
	stale   int
	dropped []int
	all     int
	gens    map[int]int64
	global  int64
}

func (f *fakeCache) Get(_ context.Context, key string, dst interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	v, ok := f.stored[key]
	if !ok {
		return repository.ErrCacheMiss
	}
	switch d := dst.(type) {
	case **CourseProgressView:
		*d = v.(*CourseProgressView)
	case **ModuleProgressView:
		*d = v.(*ModuleProgressView)
	case **ProgressOverview:
		*d = v.(*ProgressOverview)
	}
	return nil
}

func (f *fakeCache) Generation(_ context.Context, studentID int) (repository.CacheGeneration, error) {
	return repository.CacheGeneration{Student: f.gens[studentID], Global: f.global}, nil
}

func (f *fakeCache) Set(_ context.Context, studentID int, gen repository.CacheGeneration, key string, v interface{}) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	if gen.Student != f.gens[studentID] || gen.Global != f.global {
		f.stale++
		return repository.ErrStaleGeneration
	}
	if f.stored == nil {
		f.stored = map[string]interface{}{}
	}
	f.stored[key] = v
	return nil
}

func (f *fakeCache) InvalidateStudent(_ context.Context, studentID int) error {
	if f.gens == nil {
		f.gens = map[int]int64{}
	}
	f.gens[studentID]++
	f.dropped = append(f.dropped, studentID)
	f.stored = nil
	return nil
}

func (f *fakeCache) InvalidateAll(context.Context) error {
	f.global++
	f.all++
	f.stored = nil
	return nil
}

// racingResults stores a new attempt and invalidates the cache right after
// the first read, as the result worker would between a read and its write-back.
type racingResults struct {
	*fakeResults
	cache *fakeCache
	late  model.TestResult
	fired bool
}

func (r *racingResults) ListByStudent(ctx context.Context, studentID int) ([]model.TestResult, error) {
	rows, err := r.fakeResults.ListByStudent(ctx, studentID)
	if !r.fired {
		r.fired = true
		r.rows = append(r.rows, r.late)
		_ = r.cache.InvalidateStudent(ctx, r.late.StudentID)
	}
	return rows, err
}

type fixedThreshold float64

func (t fixedThreshold) PassThreshold(context.Context) float64 { return float64(t) }

type fakeNames map[int]string

func (f fakeNames) NamesByID(context.Context, []int) (map[int]string, error) { return f, nil }

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newProgressFixture(rows []model.TestResult, cache *fakeCache) *ProgressService {
	outlines := &fakeOutlines{
		courses: map[int]*model.CourseOutline{
			1: {ID: 1, Title: "Algebra", Modules: []model.ModuleOutline{
				{ID: 10, Title: "Basics", TestIDs: []int{100, 101}},
				{ID: 11, Title: "Equations", TestIDs: []int{110}},
			}},
		},
		tests: map[int]bool{100: true, 101: true, 110: true},
	}
	return NewProgressService(outlines, &fakeResults{rows: rows}, cache, fixedThreshold(70),
		fakeNames{1: "Ana", 2: "Luis"}, zerolog.Nop())
}

func TestProgressService_CourseProgress(t *testing.T) {
	rows := []model.TestResult{
		{ID: 1, StudentID: 1, TestID: 100, Percentage: 90, CompletedAt: t0},
		{ID: 2, StudentID: 1, TestID: 101, Percentage: 70, CompletedAt: t0},
		{ID: 3, StudentID: 1, TestID: 110, Percentage: 95, CompletedAt: t0},
		{ID: 4, StudentID: 1, TestID: 110, Percentage: 40, CompletedAt: t0.Add(time.Hour)},
	}
	cache := &fakeCache{}
	svc := newProgressFixture(rows, cache)

	view, err := svc.CourseProgress(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", view.Title)
	assert.Equal(t, 70.0, view.PassThreshold)
	assert.Equal(t, 1, view.Completed)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 50, view.Percentage)
	assert.Equal(t, 100, view.ModuleProgress["10"].Percentage)
	// the later failing attempt supersedes the earlier pass
	assert.Equal(t, 0, view.ModuleProgress["11"].Percentage)
	assert.Equal(t, 1, cache.sets)

	again, err := svc.CourseProgress(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Same(t, view, again)
	assert.Equal(t, 1, cache.sets)
}

func TestProgressService_InvalidationDuringComputeIsNotCached(t *testing.T) {
	cache := &fakeCache{}
	fixture := newProgressFixture(nil, cache)
	results := &racingResults{
		fakeResults: &fakeResults{},
		cache:       cache,
		late:        model.TestResult{ID: 9, StudentID: 1, TestID: 110, Percentage: 100, CompletedAt: t0},
	}
	svc := NewProgressService(fixture.outlines, results, cache, fixedThreshold(70), fakeNames{}, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.ModuleProgress(ctx, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Percentage)
	assert.Equal(t, 1, cache.stale)
	assert.Empty(t, cache.stored)

	second, err := svc.ModuleProgress(ctx, 1, 11)
	require.NoError(t, err)
	assert.Equal(t, 100, second.Percentage)
	assert.Len(t, cache.stored, 1)

	third, err := svc.ModuleProgress(ctx, 1, 11)
	require.NoError(t, err)
	assert.Same(t, second, third)
}

// editedOutlines invalidates every cached view on the first outline read,
// as a catalog edit landing mid-computation would.
type editedOutlines struct {
	OutlineSource
	cache *fakeCache
	fired bool
}

func (o *editedOutlines) GetOutline(ctx context.Context, courseID int) (*model.CourseOutline, error) {
	outline, err := o.OutlineSource.GetOutline(ctx, courseID)
	if !o.fired {
		o.fired = true
		_ = o.cache.InvalidateAll(ctx)
	}
	return outline, err
}

func TestProgressService_CatalogEditDuringComputeIsNotCached(t *testing.T) {
	cache := &fakeCache{}
	fixture := newProgressFixture(nil, cache)
	outlines := &editedOutlines{OutlineSource: fixture.outlines, cache: cache}
	svc := NewProgressService(outlines, fixture.results, cache, fixedThreshold(70), fakeNames{}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.CourseProgress(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.stale)
	assert.Empty(t, cache.stored)

	_, err = svc.CourseProgress(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, cache.stored, 1)
}

func TestProgressService_CacheFailureDegradesToRecompute(t *testing.T) {
	cache := &fakeCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	svc := newProgressFixture([]model.TestResult{
		{StudentID: 1, TestID: 100, Percentage: 80, CompletedAt: t0},
	}, cache)

	view, err := svc.ModuleProgress(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Completed)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 50, view.Percentage)
	assert.Contains(t, view.TestResults, progress.ID("100"))
}

func TestProgressService_NotFound(t *testing.T) {
	svc := newProgressFixture(nil, &fakeCache{})
	ctx := context.Background()

	_, err := svc.CourseProgress(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.ModuleProgress(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = svc.TestStatus(ctx, 1, 99)
	assert.ErrorIs(t, err, ErrTestNotFound)

	_, err = svc.CourseReport(ctx, 99)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestProgressService_TestStatus(t *testing.T) {
	svc := newProgressFixture([]model.TestResult{
		{ID: 1, StudentID: 1, TestID: 100, Percentage: 60, CompletedAt: t0},
		{ID: 2, StudentID: 1, TestID: 100, Percentage: 75, CompletedAt: t0.Add(time.Minute)},
	}, &fakeCache{})

	st, err := svc.TestStatus(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.True(t, st.Completed)
	assert.Equal(t, 2, st.Attempts)
	require.NotNil(t, st.LatestResult)
	assert.Equal(t, int64(2), st.LatestResult.ID)

	st, err = svc.TestStatus(context.Background(), 1, 101)
	require.NoError(t, err)
	assert.False(t, st.Completed)
	assert.Nil(t, st.LatestResult)
	assert.Zero(t, st.Attempts)
}

func TestProgressService_OverviewAndReport(t *testing.T) {
	rows := []model.TestResult{
		{StudentID: 1, TestID: 100, Percentage: 100, CompletedAt: t0},
		{StudentID: 1, TestID: 101, Percentage: 100, CompletedAt: t0},
		{StudentID: 1, TestID: 110, Percentage: 100, CompletedAt: t0},
		{StudentID: 2, TestID: 100, Percentage: 50, CompletedAt: t0},
	}
	svc := newProgressFixture(rows, &fakeCache{})
	ctx := context.Background()

	ov, err := svc.Overview(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ov.Courses, 1)
	assert.Equal(t, CourseSummary{CourseID: 1, Title: "Algebra", Completed: 2, Total: 2, Percentage: 100}, ov.Courses[0])

	report, err := svc.CourseReport(ctx, 1)
	require.NoError(t, err)
	require.Len(t, report.Students, 2)
	assert.Equal(t, StudentCourseProgress{StudentID: 1, Name: "Ana", Completed: 2, Total: 2, Percentage: 100}, report.Students[0])
	assert.Equal(t, StudentCourseProgress{StudentID: 2, Name: "Luis", Completed: 0, Total: 2, Percentage: 0}, report.Students[1])
}

func TestProgressService_Invalidate(t *testing.T) {
	cache := &fakeCache{}
	svc := newProgressFixture(nil, cache)
	require.NoError(t, svc.Invalidate(context.Background(), 7))
	assert.Equal(t, []int{7}, cache.dropped)
}
