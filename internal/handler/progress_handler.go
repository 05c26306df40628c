package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/middleware"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
)

// ProgressReader renders progress views.
type ProgressReader interface {
	Overview(ctx context.Context, studentID int) (*service.ProgressOverview, error)
	CourseProgress(ctx context.Context, studentID, courseID int) (*service.CourseProgressView, error)
	ModuleProgress(ctx context.Context, studentID, moduleID int) (*service.ModuleProgressView, error)
	TestStatus(ctx context.Context, studentID, testID int) (*service.TestStatusView, error)
	CourseReport(ctx context.Context, courseID int) (*service.CourseReport, error)
}

// ProgressHandler serves progress for the signed-in student and for admins.
type ProgressHandler struct {
	progress ProgressReader
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progress ProgressReader) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// GetOverview godoc
// GET /api/v1/student/progress
// Summarizes every course the student has attempted.
func (h *ProgressHandler) GetOverview(c *gin.Context) {
	claims := middleware.GetClaims(c)
	overview, err := h.progress.Overview(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// GetCourseProgress godoc
// GET /api/v1/student/courses/:course_id/progress
func (h *ProgressHandler) GetCourseProgress(c *gin.Context) {
	courseID, ok := paramID(c, "course_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	view, err := h.progress.CourseProgress(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetModuleProgress godoc
// GET /api/v1/student/modules/:module_id/progress
func (h *ProgressHandler) GetModuleProgress(c *gin.Context) {
	moduleID, ok := paramID(c, "module_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	view, err := h.progress.ModuleProgress(c.Request.Context(), claims.UserID, moduleID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetTestStatus godoc
// GET /api/v1/student/tests/:test_id/status
// Returns the latest attempt and whether it meets the pass threshold.
func (h *ProgressHandler) GetTestStatus(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	view, err := h.progress.TestStatus(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetStudentCourseProgress godoc
// GET /api/v1/admin/courses/:id/progress?student_id=
func (h *ProgressHandler) GetStudentCourseProgress(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	studentID, err := strconv.Atoi(c.Query("student_id"))
	if err != nil || studentID <= 0 {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"student_id": "student_id is required"})
		return
	}
	view, err := h.progress.CourseProgress(c.Request.Context(), studentID, courseID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetCourseReport godoc
// GET /api/v1/admin/courses/:id/report
// Lists course progress for every student with at least one attempt.
func (h *ProgressHandler) GetCourseReport(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.progress.CourseReport(c.Request.Context(), courseID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
