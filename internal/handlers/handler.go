package handlers

import (
	"net/http"

	"crm-gin/internal/dto"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Shared helpers
// ===========================================================================

// respondError writes the status and envelope matching err. Errors that
// carry no user message are logged since the client only sees a generic text.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, dto.ErrorFromErr(err))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", err.Error()))
}

// paramID parses a uuid path param, answering 400 when malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_ID", "Identifiant invalide"))
		return uuid.Nil, false
	}
	return id, true
}

// tenantID reads the authenticated tenant, answering 401 when absent
func tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetTenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentification requise"))
		return uuid.Nil, false
	}
	return id, true
}
