package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/service"
)

// DashboardSource aggregates the numbers shown on the admin dashboard.
type DashboardSource interface {
	GetDashboardData(ctx context.Context) (*service.DashboardData, error)
}

type DashboardHandler struct {
	dashboard DashboardSource
}

func NewDashboardHandler(dashboard DashboardSource) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Counts, the attempt pass rate at the active threshold and the latest attempts.
// The payload is per-admin and changes with every submission, so it is never cached.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboard.GetDashboardData(c.Request.Context())
	if err != nil {
		failFromError(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	response.Success(c, http.StatusOK, data)
}
