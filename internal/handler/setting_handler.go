package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/somosuni/lms-backend/internal/model"
	"github.com/somosuni/lms-backend/internal/response"
	"github.com/somosuni/lms-backend/internal/validator"
)

// SettingStore reads and writes app settings.
type SettingStore interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
	GetPublicSettings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, settings map[string]string) error
	PassThreshold(ctx context.Context) float64
}

type SettingHandler struct {
	settings SettingStore
}

func NewSettingHandler(settings SettingStore) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// GetAllSettings godoc
// GET /api/v1/admin/settings
func (h *SettingHandler) GetAllSettings(c *gin.Context) {
	h.respondAll(c)
}

// UpdateSettings godoc
// PUT /api/v1/admin/settings
// Responds with the stored settings and the threshold now in force.
func (h *SettingHandler) UpdateSettings(c *gin.Context) {
	var req model.UpdateSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settings.UpdateSettings(c.Request.Context(), req.Settings); err != nil {
		failFromError(c, err)
		return
	}
	h.respondAll(c)
}

func (h *SettingHandler) respondAll(c *gin.Context) {
	ctx := c.Request.Context()
	settings, err := h.settings.GetAllSettings(ctx)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"settings":       settings,
		"pass_threshold": h.settings.PassThreshold(ctx),
	})
}

// GetPublicSettings godoc
// GET /api/v1/public/settings
func (h *SettingHandler) GetPublicSettings(c *gin.Context) {
	settings, err := h.settings.GetPublicSettings(c.Request.Context())
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
