package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/middleware"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/validator"
)

// ResultRecorder accepts and lists test attempts.
type ResultRecorder interface {
	Submit(ctx context.Context, studentID, testID int, req model.SubmitResultRequest) (*model.ResultPayload, error)
	ListAttempts(ctx context.Context, studentID, testID int) ([]model.TestResult, error)
}

// ResultHandler handles student test submissions.
type ResultHandler struct {
	results ResultRecorder
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results ResultRecorder) *ResultHandler {
	return &ResultHandler{results: results}
}

// SubmitResult godoc
// POST /api/v1/student/tests/:test_id/results
// Queues the attempt; progress reflects it once the ingestion worker stores it.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}
	var req model.SubmitResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	queued, err := h.results.Submit(c.Request.Context(), claims.UserID, testID, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Accepted(c, gin.H{"result": queued, "status": "queued"})
}

// ListResults godoc
// GET /api/v1/student/tests/:test_id/results
func (h *ResultHandler) ListResults(c *gin.Context) {
	testID, ok := paramID(c, "test_id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	results, err := h.results.ListAttempts(c.Request.Context(), claims.UserID, testID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}
