package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
	"github.com/somosuni/lms-backend/internal/validator"
)

// StudentHandler handles admin-facing student management.
type StudentHandler struct {
	studentService *service.StudentService
	authService    *service.AuthService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentService *service.StudentService, authService *service.AuthService) *StudentHandler {
	return &StudentHandler{studentService: studentService, authService: authService}
}

// ListStudents godoc
// GET /api/v1/admin/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	page, perPage := pageParams(c)
	students, pagination, err := h.studentService.ListStudents(c.Request.Context(), page, perPage)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// CreateStudent godoc
// POST /api/v1/admin/students
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student := &model.Student{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  req.Password,
	}
	// Service will hash the password.
	if err := h.studentService.Create(c.Request.Context(), student); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:id/reset-session
// Clears a student's active Redis session, allowing them to log in on a new device.
func (h *StudentHandler) ResetStudentSession(c *gin.Context) {
	studentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}
