package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/somosuni/lms-backend/internal/model"
)

// CourseRepository handles course, module and test data access.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// ─── Courses ────────────────────────────────────────────────────────────────

// ListCourses returns every course with its module count, newest first.
func (r *CourseRepository) ListCourses(ctx context.Context, limit, offset int) ([]model.Course, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.title, c.description, c.cover_url,
		        (SELECT COUNT(*) FROM modules m WHERE m.course_id = c.id),
		        c.created_at, c.updated_at
		 FROM courses c
		 ORDER BY c.created_at DESC, c.id DESC
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.CoverURL, &c.ModuleCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		courses = append(courses, c)
	}
	return courses, total, rows.Err()
}

// GetCourse retrieves a course by ID.
func (r *CourseRepository) GetCourse(ctx context.Context, id int) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.title, c.description, c.cover_url,
		        (SELECT COUNT(*) FROM modules m WHERE m.course_id = c.id),
		        c.created_at, c.updated_at
		 FROM courses c WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.CoverURL, &c.ModuleCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCourse inserts a new course.
func (r *CourseRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, description, cover_url)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.Title, c.Description, c.CoverURL,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// UpdateCourse modifies a course. Returns pgx.ErrNoRows when it does not exist.
func (r *CourseRepository) UpdateCourse(ctx context.Context, c *model.Course) error {
	return r.pool.QueryRow(ctx,
		`UPDATE courses SET title = $1, description = $2, cover_url = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING created_at, updated_at`,
		c.Title, c.Description, c.CoverURL, c.ID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// DeleteCourse removes a course; modules, tests and results cascade.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListCourseIDsForStudent returns the courses in which the student has at least one attempt.
func (r *CourseRepository) ListCourseIDsForStudent(ctx context.Context, studentID int) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT m.course_id
		 FROM test_results tr
		 JOIN tests t ON t.id = tr.test_id
		 JOIN modules m ON m.id = t.module_id
		 WHERE tr.student_id = $1
		 ORDER BY m.course_id`, studentID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// ─── Modules ────────────────────────────────────────────────────────────────

// ListModules returns the modules of a course ordered by position.
func (r *CourseRepository) ListModules(ctx context.Context, courseID int) ([]model.Module, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.course_id, m.title, m.position,
		        (SELECT COUNT(*) FROM tests t WHERE t.module_id = m.id),
		        m.created_at, m.updated_at
		 FROM modules m
		 WHERE m.course_id = $1
		 ORDER BY m.position, m.id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modules := []model.Module{}
	for rows.Next() {
		var m model.Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Position, &m.TestCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModule retrieves a module by ID.
func (r *CourseRepository) GetModule(ctx context.Context, id int) (*model.Module, error) {
	m := &model.Module{}
	err := r.pool.QueryRow(ctx,
		`SELECT m.id, m.course_id, m.title, m.position,
		        (SELECT COUNT(*) FROM tests t WHERE t.module_id = m.id),
		        m.created_at, m.updated_at
		 FROM modules m WHERE m.id = $1`, id,
	).Scan(&m.ID, &m.CourseID, &m.Title, &m.Position, &m.TestCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateModule inserts a module. A negative Position appends it after the last one.
func (r *CourseRepository) CreateModule(ctx context.Context, m *model.Module) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO modules (course_id, title, position)
		 VALUES ($1, $2, CASE WHEN $3::int < 0
		     THEN (SELECT COALESCE(MAX(position) + 1, 0) FROM modules WHERE course_id = $1)
		     ELSE $3::int END)
		 RETURNING id, position, created_at, updated_at`,
		m.CourseID, m.Title, m.Position,
	).Scan(&m.ID, &m.Position, &m.CreatedAt, &m.UpdatedAt)
}

// UpdateModule renames or reorders a module.
func (r *CourseRepository) UpdateModule(ctx context.Context, m *model.Module) error {
	return r.pool.QueryRow(ctx,
		`UPDATE modules SET title = $1, position = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING course_id, created_at, updated_at`,
		m.Title, m.Position, m.ID,
	).Scan(&m.CourseID, &m.CreatedAt, &m.UpdatedAt)
}

// DeleteModule removes a module and its tests.
func (r *CourseRepository) DeleteModule(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ─── Tests ──────────────────────────────────────────────────────────────────

// ListTests returns the tests of a module ordered by position.
func (r *CourseRepository) ListTests(ctx context.Context, moduleID int) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, module_id, title, position, created_at, updated_at
		 FROM tests WHERE module_id = $1
		 ORDER BY position, id`, moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []model.Test{}
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.ModuleID, &t.Title, &t.Position, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// GetTest retrieves a test by ID.
func (r *CourseRepository) GetTest(ctx context.Context, id int) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, module_id, title, position, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.ModuleID, &t.Title, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTest inserts a test. A negative Position appends it after the last one.
func (r *CourseRepository) CreateTest(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (module_id, title, position)
		 VALUES ($1, $2, CASE WHEN $3::int < 0
		     THEN (SELECT COALESCE(MAX(position) + 1, 0) FROM tests WHERE module_id = $1)
		     ELSE $3::int END)
		 RETURNING id, position, created_at, updated_at`,
		t.ModuleID, t.Title, t.Position,
	).Scan(&t.ID, &t.Position, &t.CreatedAt, &t.UpdatedAt)
}

// UpdateTest renames or reorders a test.
func (r *CourseRepository) UpdateTest(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`UPDATE tests SET title = $1, position = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING module_id, created_at, updated_at`,
		t.Title, t.Position, t.ID,
	).Scan(&t.ModuleID, &t.CreatedAt, &t.UpdatedAt)
}

// DeleteTest removes a test and its recorded results.
func (r *CourseRepository) DeleteTest(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ─── Outline ────────────────────────────────────────────────────────────────

// GetOutline loads a course with its modules and test ids in catalog order.
// Modules without tests are kept with an empty TestIDs slice.
func (r *CourseRepository) GetOutline(ctx context.Context, courseID int) (*model.CourseOutline, error) {
	outline := &model.CourseOutline{ID: courseID, Modules: []model.ModuleOutline{}}
	if err := r.pool.QueryRow(ctx, `SELECT title FROM courses WHERE id = $1`, courseID).Scan(&outline.Title); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.title, t.id
		 FROM modules m
		 LEFT JOIN tests t ON t.module_id = m.id
		 WHERE m.course_id = $1
		 ORDER BY m.position, m.id, t.position, t.id`, courseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			moduleID    int
			moduleTitle string
			testID      *int
		)
		if err := rows.Scan(&moduleID, &moduleTitle, &testID); err != nil {
			return nil, err
		}
		n := len(outline.Modules)
		if n == 0 || outline.Modules[n-1].ID != moduleID {
			outline.Modules = append(outline.Modules, model.ModuleOutline{ID: moduleID, Title: moduleTitle, TestIDs: []int{}})
			n++
		}
		if testID != nil {
			outline.Modules[n-1].TestIDs = append(outline.Modules[n-1].TestIDs, *testID)
		}
	}
	return outline, rows.Err()
}

// GetModuleOutline loads one module with its ordered test ids.
func (r *CourseRepository) GetModuleOutline(ctx context.Context, moduleID int) (*model.ModuleOutline, error) {
	m := &model.ModuleOutline{ID: moduleID}
	err := r.pool.QueryRow(ctx,
		`SELECT m.title,
		        COALESCE(ARRAY_AGG(t.id ORDER BY t.position, t.id) FILTER (WHERE t.id IS NOT NULL), '{}')
		 FROM modules m
		 LEFT JOIN tests t ON t.module_id = m.id
		 WHERE m.id = $1
		 GROUP BY m.id, m.title`, moduleID,
	).Scan(&m.Title, &m.TestIDs)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key violation,
// i.e. the referenced parent row is gone.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
