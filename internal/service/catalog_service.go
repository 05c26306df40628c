package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/response"
)

// Catalog errors.
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrTestNotFound   = errors.New("test not found")
)

// CatalogService manages courses, modules and tests.
type CatalogService struct {
	repo  *repository.CourseRepository
	cache ProgressCache
	log   zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(repo *repository.CourseRepository, cache ProgressCache, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "catalog_service").Logger(),
	}
}

// structureChanged drops cached progress after an edit that moves or removes tests.
func (s *CatalogService) structureChanged(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate progress cache after catalog change")
	}
}

// ─── Courses ────────────────────────────────────────────────────────────────

// ListCourses returns a page of courses.
func (s *CatalogService) ListCourses(ctx context.Context, page, perPage int) ([]model.Course, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)
	courses, total, err := s.repo.ListCourses(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, response.NewPagination(p.Page, p.PerPage, total), nil
}

// GetCourse returns one course.
func (s *CatalogService) GetCourse(ctx context.Context, id int) (*model.Course, error) {
	c, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCourseNotFound, "get course")
	}
	return c, nil
}

// CreateCourse stores a new course.
func (s *CatalogService) CreateCourse(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	c := &model.Course{Title: req.Title, Description: req.Description, CoverURL: req.CoverURL}
	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

// UpdateCourse edits a course's descriptive fields.
func (s *CatalogService) UpdateCourse(ctx context.Context, id int, req model.UpdateCourseRequest) (*model.Course, error) {
	c := &model.Course{ID: id, Title: req.Title, Description: req.Description, CoverURL: req.CoverURL}
	if err := s.repo.UpdateCourse(ctx, c); err != nil {
		return nil, notFound(err, ErrCourseNotFound, "update course")
	}
	return c, nil
}

// DeleteCourse removes a course with everything under it.
func (s *CatalogService) DeleteCourse(ctx context.Context, id int) error {
	if err := s.repo.DeleteCourse(ctx, id); err != nil {
		return notFound(err, ErrCourseNotFound, "delete course")
	}
	s.structureChanged(ctx)
	return nil
}

// GetOutline returns the course structure in catalog order.
func (s *CatalogService) GetOutline(ctx context.Context, courseID int) (*model.CourseOutline, error) {
	o, err := s.repo.GetOutline(ctx, courseID)
	if err != nil {
		return nil, notFound(err, ErrCourseNotFound, "get outline")
	}
	return o, nil
}

// ─── Modules ────────────────────────────────────────────────────────────────

// ListModules returns the modules of a course.
func (s *CatalogService) ListModules(ctx context.Context, courseID int) ([]model.Module, error) {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	modules, err := s.repo.ListModules(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// CreateModule adds a module to a course.
func (s *CatalogService) CreateModule(ctx context.Context, courseID int, req model.CreateModuleRequest) (*model.Module, error) {
	m := &model.Module{CourseID: courseID, Title: req.Title, Position: -1}
	if req.Position != nil {
		m.Position = *req.Position
	}
	if err := s.repo.CreateModule(ctx, m); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("create module: %w", err)
	}
	s.structureChanged(ctx)
	return m, nil
}

// UpdateModule renames or reorders a module.
func (s *CatalogService) UpdateModule(ctx context.Context, id int, req model.UpdateModuleRequest) (*model.Module, error) {
	m := &model.Module{ID: id, Title: req.Title, Position: req.Position}
	if err := s.repo.UpdateModule(ctx, m); err != nil {
		return nil, notFound(err, ErrModuleNotFound, "update module")
	}
	s.structureChanged(ctx)
	return m, nil
}

// DeleteModule removes a module and its tests.
func (s *CatalogService) DeleteModule(ctx context.Context, id int) error {
	if err := s.repo.DeleteModule(ctx, id); err != nil {
		return notFound(err, ErrModuleNotFound, "delete module")
	}
	s.structureChanged(ctx)
	return nil
}

// ─── Tests ──────────────────────────────────────────────────────────────────

// ListTests returns the tests of a module.
func (s *CatalogService) ListTests(ctx context.Context, moduleID int) ([]model.Test, error) {
	if _, err := s.repo.GetModule(ctx, moduleID); err != nil {
		return nil, notFound(err, ErrModuleNotFound, "get module")
	}
	tests, err := s.repo.ListTests(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}

// GetTest returns one test.
func (s *CatalogService) GetTest(ctx context.Context, id int) (*model.Test, error) {
	t, err := s.repo.GetTest(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrTestNotFound, "get test")
	}
	return t, nil
}

// CreateTest adds a test to a module.
func (s *CatalogService) CreateTest(ctx context.Context, moduleID int, req model.CreateTestRequest) (*model.Test, error) {
	t := &model.Test{ModuleID: moduleID, Title: req.Title, Position: -1}
	if req.Position != nil {
		t.Position = *req.Position
	}
	if err := s.repo.CreateTest(ctx, t); err != nil {
		if repository.IsForeignKeyViolation(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("create test: %w", err)
	}
	s.structureChanged(ctx)
	return t, nil
}

// UpdateTest renames or reorders a test.
func (s *CatalogService) UpdateTest(ctx context.Context, id int, req model.UpdateTestRequest) (*model.Test, error) {
	t := &model.Test{ID: id, Title: req.Title, Position: req.Position}
	if err := s.repo.UpdateTest(ctx, t); err != nil {
		return nil, notFound(err, ErrTestNotFound, "update test")
	}
	s.structureChanged(ctx)
	return t, nil
}

// DeleteTest removes a test and its recorded attempts.
func (s *CatalogService) DeleteTest(ctx context.Context, id int) error {
	if err := s.repo.DeleteTest(ctx, id); err != nil {
		return notFound(err, ErrTestNotFound, "delete test")
	}
	s.structureChanged(ctx)
	return nil
}

// notFound maps pgx.ErrNoRows to sentinel and wraps anything else.
func notFound(err, sentinel error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}
