package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/validator"
)

// CatalogManager is the catalog surface the admin API needs.
type CatalogManager interface {
	ListCourses(ctx context.Context, page, perPage int) ([]model.Course, *response.Pagination, error)
	GetCourse(ctx context.Context, id int) (*model.Course, error)
	CreateCourse(ctx context.Context, req model.CreateCourseRequest) (*model.Course, error)
	UpdateCourse(ctx context.Context, id int, req model.UpdateCourseRequest) (*model.Course, error)
	DeleteCourse(ctx context.Context, id int) error
	GetOutline(ctx context.Context, courseID int) (*model.CourseOutline, error)

	ListModules(ctx context.Context, courseID int) ([]model.Module, error)
	CreateModule(ctx context.Context, courseID int, req model.CreateModuleRequest) (*model.Module, error)
	UpdateModule(ctx context.Context, id int, req model.UpdateModuleRequest) (*model.Module, error)
	DeleteModule(ctx context.Context, id int) error

	ListTests(ctx context.Context, moduleID int) ([]model.Test, error)
	CreateTest(ctx context.Context, moduleID int, req model.CreateTestRequest) (*model.Test, error)
	UpdateTest(ctx context.Context, id int, req model.UpdateTestRequest) (*model.Test, error)
	DeleteTest(ctx context.Context, id int) error
}

// CatalogHandler handles course, module and test management.
type CatalogHandler struct {
	catalog CatalogManager
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog CatalogManager) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCourses godoc
// GET /api/v1/admin/courses
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	page, perPage := pageParams(c)
	courses, pagination, err := h.catalog.ListCourses(c.Request.Context(), page, perPage)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"courses": courses}, pagination)
}

// GetCourse godoc
// GET /api/v1/admin/courses/:id
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	course, err := h.catalog.GetCourse(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// CreateCourse godoc
// POST /api/v1/admin/courses
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// UpdateCourse godoc
// PUT /api/v1/admin/courses/:id
func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	course, err := h.catalog.UpdateCourse(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// DeleteCourse godoc
// DELETE /api/v1/admin/courses/:id
// Removes the course together with its modules, tests and recorded attempts.
func (h *CatalogHandler) DeleteCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCourse(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "course deleted successfully"})
}

// GetOutline godoc
// GET /api/v1/admin/courses/:id/outline
// Returns the ordered modules of the course with their ordered test ids.
func (h *CatalogHandler) GetOutline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	outline, err := h.catalog.GetOutline(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, outline)
}

// ListModules godoc
// GET /api/v1/admin/courses/:id/modules
func (h *CatalogHandler) ListModules(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	modules, err := h.catalog.ListModules(c.Request.Context(), courseID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"modules": modules})
}

// CreateModule godoc
// POST /api/v1/admin/courses/:id/modules
func (h *CatalogHandler) CreateModule(c *gin.Context) {
	courseID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.CreateModuleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	module, err := h.catalog.CreateModule(c.Request.Context(), courseID, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"module": module})
}

// UpdateModule godoc
// PUT /api/v1/admin/modules/:id
func (h *CatalogHandler) UpdateModule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateModuleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	module, err := h.catalog.UpdateModule(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"module": module})
}

// DeleteModule godoc
// DELETE /api/v1/admin/modules/:id
func (h *CatalogHandler) DeleteModule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteModule(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "module deleted successfully"})
}

// ListTests godoc
// GET /api/v1/admin/modules/:id/tests
func (h *CatalogHandler) ListTests(c *gin.Context) {
	moduleID, ok := paramID(c, "id")
	if !ok {
		return
	}
	tests, err := h.catalog.ListTests(c.Request.Context(), moduleID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// CreateTest godoc
// POST /api/v1/admin/modules/:id/tests
func (h *CatalogHandler) CreateTest(c *gin.Context) {
	moduleID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	test, err := h.catalog.CreateTest(c.Request.Context(), moduleID, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:id
func (h *CatalogHandler) UpdateTest(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	test, err := h.catalog.UpdateTest(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:id
func (h *CatalogHandler) DeleteTest(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteTest(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "test deleted successfully"})
}
