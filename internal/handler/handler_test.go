package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/middleware"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/progress"
	"github.com/somosuni/lms-backend/internal/repository"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
	"github.com/somosuni/lms-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// ─── Helpers ────────────────────────────────────────────────────────

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

// newRouter returns an engine that injects claims for userID, standing in for the JWT middleware.
func newRouter(userID int) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: userID})
		c.Next()
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// ─── Error mapping ──────────────────────────────────────────────────

func TestFailFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrCourseNotFound, http.StatusNotFound, response.ErrCourseNotFound},
		{service.ErrModuleNotFound, http.StatusNotFound, response.ErrModuleNotFound},
		{service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
		{service.ErrStudentNotFound, http.StatusNotFound, response.ErrNotFound},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{service.ErrSessionAlreadyActive, http.StatusConflict, response.ErrSessionActive},
		{repository.ErrDuplicateStudentNumber, http.StatusConflict, response.ErrConflict},
		{service.ErrInvalidSetting, http.StatusBadRequest, response.ErrValidation},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) { failFromError(c, tc.err) })
			w, env := do(t, r, http.MethodGet, "/", nil)
			assert.Equal(t, tc.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestParamIDRejectsNonPositive(t *testing.T) {
	r := gin.New()
	r.GET("/x/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if ok {
			c.JSON(http.StatusOK, gin.H{"data": id})
		}
	})

	for _, raw := range []string{"abc", "0", "-3"} {
		w, env := do(t, r, http.MethodGet, "/x/"+raw, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
		require.NotNil(t, env.Error)
		assert.Equal(t, response.ErrInvalidID, env.Error.Code)
	}

	w, env := do(t, r, http.MethodGet, "/x/42", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "42", string(env.Data))
}

// ─── Catalog ────────────────────────────────────────────────────────

type fakeCatalog struct {
	CatalogManager
	courses     map[int]*model.Course
	page, per   int
	lastCreated model.CreateCourseRequest
}

func (f *fakeCatalog) ListCourses(_ context.Context, page, perPage int) ([]model.Course, *response.Pagination, error) {
	f.page, f.per = page, perPage
	out := make([]model.Course, 0, len(f.courses))
	for _, c := range f.courses {
		out = append(out, *c)
	}
	return out, response.NewPagination(page, perPage, len(out)), nil
}

func (f *fakeCatalog) GetCourse(_ context.Context, id int) (*model.Course, error) {
	if c, ok := f.courses[id]; ok {
		return c, nil
	}
	return nil, service.ErrCourseNotFound
}

func (f *fakeCatalog) CreateCourse(_ context.Context, req model.CreateCourseRequest) (*model.Course, error) {
	f.lastCreated = req
	return &model.Course{ID: 9, Title: req.Title, Description: req.Description}, nil
}

func (f *fakeCatalog) DeleteCourse(_ context.Context, id int) error {
	if _, ok := f.courses[id]; !ok {
		return service.ErrCourseNotFound
	}
	delete(f.courses, id)
	return nil
}

func catalogRouter(f *fakeCatalog) *gin.Engine {
	h := NewCatalogHandler(f)
	r := gin.New()
	r.GET("/courses", h.ListCourses)
	r.POST("/courses", h.CreateCourse)
	r.GET("/courses/:id", h.GetCourse)
	r.DELETE("/courses/:id", h.DeleteCourse)
	return r
}

func TestCatalogHandler_Courses(t *testing.T) {
	f := &fakeCatalog{courses: map[int]*model.Course{1: {ID: 1, Title: "Algebra"}}}
	r := catalogRouter(f)

	t.Run("list passes paging", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/courses?page=2&per_page=5", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, f.page)
		assert.Equal(t, 5, f.per)
		require.NotNil(t, env.Pagination)
		assert.Equal(t, 5, env.Pagination.PerPage)
	})

	t.Run("get", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/courses/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"Algebra"`)
	})

	t.Run("get missing", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/courses/77", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrCourseNotFound, env.Error.Code)
	})

	t.Run("create", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/courses", model.CreateCourseRequest{Title: "Geometry", Description: "Shapes"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Geometry", f.lastCreated.Title)
	})

	t.Run("create rejects missing title", func(t *testing.T) {
		w, env := do(t, r, http.MethodPost, "/courses", map[string]string{"description": "no title"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, response.ErrValidation, env.Error.Code)
		assert.Contains(t, env.Error.Fields, "title")
	})

	t.Run("delete then missing", func(t *testing.T) {
		w, _ := do(t, r, http.MethodDelete, "/courses/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w, _ = do(t, r, http.MethodDelete, "/courses/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// ─── Progress ───────────────────────────────────────────────────────

type fakeProgress struct {
	ProgressReader
	gotStudent, gotCourse int
}

func (f *fakeProgress) CourseProgress(_ context.Context, studentID, courseID int) (*service.CourseProgressView, error) {
	f.gotStudent, f.gotCourse = studentID, courseID
	if courseID == 404 {
		return nil, service.ErrCourseNotFound
	}
	return &service.CourseProgressView{
		CourseID:       courseID,
		PassThreshold:  70,
		CourseProgress: progress.CourseProgress{Completed: 1, Total: 2, Percentage: 50},
	}, nil
}

func TestProgressHandler_CourseProgress(t *testing.T) {
	f := &fakeProgress{}
	h := NewProgressHandler(f)
	r := newRouter(7)
	r.GET("/student/courses/:course_id/progress", h.GetCourseProgress)
	r.GET("/admin/courses/:id/progress", h.GetStudentCourseProgress)

	t.Run("student reads own progress", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/student/courses/3/progress", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7, f.gotStudent)
		assert.Equal(t, 3, f.gotCourse)

		var view struct {
			Completed  int `json:"completed"`
			Total      int `json:"total"`
			Percentage int `json:"percentage"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, 1, view.Completed)
		assert.Equal(t, 2, view.Total)
		assert.Equal(t, 50, view.Percentage)
	})

	t.Run("unknown course", func(t *testing.T) {
		w, _ := do(t, r, http.MethodGet, "/student/courses/404/progress", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("admin must name a student", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/admin/courses/3/progress", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, env.Error.Fields, "student_id")
	})

	t.Run("admin reads another student", func(t *testing.T) {
		w, _ := do(t, r, http.MethodGet, "/admin/courses/3/progress?student_id=12", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 12, f.gotStudent)
	})
}

// ─── Results ────────────────────────────────────────────────────────

type fakeResults struct {
	submitted []model.ResultPayload
}

func (f *fakeResults) Submit(_ context.Context, studentID, testID int, req model.SubmitResultRequest) (*model.ResultPayload, error) {
	if testID == 404 {
		return nil, service.ErrTestNotFound
	}
	p := model.ResultPayload{StudentID: studentID, TestID: testID, Percentage: *req.Percentage, CompletedAt: time.Now().UTC()}
	if req.CompletedAt != nil {
		p.CompletedAt = *req.CompletedAt
	}
	f.submitted = append(f.submitted, p)
	return &p, nil
}

func (f *fakeResults) ListAttempts(_ context.Context, studentID, testID int) ([]model.TestResult, error) {
	return []model.TestResult{{ID: 1, StudentID: studentID, TestID: testID, Percentage: 80}}, nil
}

func TestResultHandler_Submit(t *testing.T) {
	f := &fakeResults{}
	h := NewResultHandler(f)
	r := newRouter(5)
	r.POST("/tests/:test_id/results", h.SubmitResult)
	r.GET("/tests/:test_id/results", h.ListResults)

	t.Run("accepted", func(t *testing.T) {
		w, env := do(t, r, http.MethodPost, "/tests/11/results", map[string]interface{}{"percentage": 72.5})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), `"queued"`)
		require.Len(t, f.submitted, 1)
		assert.Equal(t, model.ResultPayload{StudentID: 5, TestID: 11, Percentage: 72.5, CompletedAt: f.submitted[0].CompletedAt}, f.submitted[0])
	})

	t.Run("zero percent is a valid attempt", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/tests/11/results", map[string]interface{}{"percentage": 0})
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	bad := map[string]map[string]interface{}{
		"missing percentage": {},
		"over 100":           {"percentage": 100.1},
		"negative":           {"percentage": -5},
		"future completion":  {"percentage": 50, "completed_at": time.Now().Add(time.Hour).Format(time.RFC3339)},
	}
	for name, body := range bad {
		t.Run(name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, "/tests/11/results", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, response.ErrValidation, env.Error.Code)
		})
	}

	t.Run("unknown test", func(t *testing.T) {
		w, env := do(t, r, http.MethodPost, "/tests/404/results", map[string]interface{}{"percentage": 10})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, response.ErrTestNotFound, env.Error.Code)
	})

	t.Run("list", func(t *testing.T) {
		w, env := do(t, r, http.MethodGet, "/tests/11/results", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"results"`)
	})
}

// ─── Health ─────────────────────────────────────────────────────────

func TestHealthHandler(t *testing.T) {
	healthy := PingFunc(func(context.Context) error { return nil })
	broken := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	r := gin.New()
	r.GET("/ok", NewHealthHandler(map[string]Pinger{"postgres": healthy}).Health)
	r.GET("/bad", NewHealthHandler(map[string]Pinger{"postgres": healthy, "redis": broken}).Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}

// ─── Settings ───────────────────────────────────────────────────────

type fakeSettings struct {
	values    map[string]string
	threshold float64
}

func (f *fakeSettings) GetAllSettings(context.Context) (map[string]string, error) {
	return f.values, nil
}

func (f *fakeSettings) GetPublicSettings(context.Context) (map[string]string, error) {
	return map[string]string{model.SettingSiteName: f.values[model.SettingSiteName]}, nil
}

func (f *fakeSettings) UpdateSettings(_ context.Context, settings map[string]string) error {
	if v, ok := settings[model.SettingPassThreshold]; ok {
		t, err := service.ParsePassThreshold(v)
		if err != nil {
			return err
		}
		f.threshold = t
	}
	for k, v := range settings {
		f.values[k] = v
	}
	return nil
}

func (f *fakeSettings) PassThreshold(context.Context) float64 { return f.threshold }

func TestSettingHandler_Update(t *testing.T) {
	f := &fakeSettings{values: map[string]string{model.SettingSiteName: "Somos"}, threshold: 70}
	h := NewSettingHandler(f)
	r := gin.New()
	r.PUT("/settings", h.UpdateSettings)

	w, env := do(t, r, http.MethodPut, "/settings", model.UpdateSettingsRequest{
		Settings: map[string]string{model.SettingPassThreshold: "80"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Settings      map[string]string `json:"settings"`
		PassThreshold float64           `json:"pass_threshold"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, 80.0, body.PassThreshold)
	assert.Equal(t, "80", body.Settings[model.SettingPassThreshold])

	w, env = do(t, r, http.MethodPut, "/settings", model.UpdateSettingsRequest{
		Settings: map[string]string{model.SettingPassThreshold: "120"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Equal(t, 80.0, f.threshold)

	w, _ = do(t, r, http.MethodPut, "/settings", map[string]interface{}{"settings": map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty update is rejected")
}
