package handlers

import (
	"net/http"

	"crm-gin/internal/dto"
	"crm-gin/internal/middleware"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Settings Handler
// Per-tenant integration settings and their connection tests
// ===========================================================================

type SettingsHandler struct {
	settings     services.SettingsService
	integrations services.IntegrationService
	logger       *zap.Logger
}

func NewSettingsHandler(settings services.SettingsService, integrations services.IntegrationService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, integrations: integrations, logger: logger}
}

// Get returns every section with secrets masked
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	masked, err := h.settings.Masked(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(masked))
}

// Update stores one section. Masked secrets keep their stored value.
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.settings.UpdateSection(c.Request.Context(), tenant, req.Section, req.Data); err != nil {
		respondError(c, h.logger, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	h.logger.Info("settings updated",
		zap.String("tenant_id", tenant.String()),
		zap.String("user_id", userID.String()),
		zap.String("section", req.Section),
	)

	masked, err := h.settings.Masked(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(masked))
}

// Test checks the connection of the :section integration. An optional body
// carries values to test before saving them.
// POST /api/settings/:section/test
func (h *SettingsHandler) Test(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.TestSettingsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if err := h.integrations.Test(c.Request.Context(), tenant, c.Param("section"), req.Data); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(dto.OKResponse{OK: true}))
}

// OVHDomains lists the domains of the OVH account
// GET /api/settings/ovh/domains
func (h *SettingsHandler) OVHDomains(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	domains, err := h.integrations.OVHDomains(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(domains))
}

// SyncOVHDomains imports OVH domains into the CRM
// POST /api/settings/ovh/sync
func (h *SettingsHandler) SyncOVHDomains(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	result, err := h.integrations.SyncOVHDomains(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(result))
}

func (h *SettingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	settings := rg.Group("/settings", middleware.RequireAdmin())
	{
		settings.GET("", h.Get)
		settings.PUT("", h.Update)
		settings.GET("/ovh/domains", h.OVHDomains)
		settings.POST("/ovh/sync", h.SyncOVHDomains)
		settings.POST("/:section/test", h.Test)
	}
}
