package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/nefziamine/skill-evaluator/internal/validator"
	"github.com/rs/zerolog"
)

type SettingHandler struct {
	settingService *service.SettingService
	log            zerolog.Logger
}

func NewSettingHandler(settingService *service.SettingService, log zerolog.Logger) *SettingHandler {
	return &SettingHandler{
		settingService: settingService,
		log:            log.With().Str("component", "setting_handler").Logger(),
	}
}

// GetAllSettings godoc
// GET /api/v1/admin/settings
func (h *SettingHandler) GetAllSettings(c *gin.Context) {
	settings, err := h.settingService.GetAllSettings(c.Request.Context())
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}

// UpdateSettings godoc
// PUT /api/v1/admin/settings
func (h *SettingHandler) UpdateSettings(c *gin.Context) {
	var req model.UpdateSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if fields := service.ValidateSettings(req.Settings); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settingService.UpdateSettings(c.Request.Context(), req.Settings); err != nil {
		failFromService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "settings updated successfully"})
}

// GetPublicSettings godoc
// GET /api/v1/public/settings
func (h *SettingHandler) GetPublicSettings(c *gin.Context) {
	settings, err := h.settingService.GetPublicSettings(c.Request.Context())
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
