package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crm-gin/internal/dto"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// GoCardless Handler
// Open banking consent flow. The callback is public: the bank redirects the
// browser there with the requisition reference in ?ref.
// ===========================================================================

type GoCardlessHandler struct {
	gocardless  services.GoCardlessService
	frontendURL string
	logger      *zap.Logger
}

func NewGoCardlessHandler(gocardless services.GoCardlessService, frontendURL string, logger *zap.Logger) *GoCardlessHandler {
	return &GoCardlessHandler{
		gocardless:  gocardless,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

// GET /api/gocardless/institutions
func (h *GoCardlessHandler) Institutions(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	institutions, err := h.gocardless.Institutions(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(institutions))
}

// POST /api/gocardless/requisitions
func (h *GoCardlessHandler) CreateRequisition(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	link, err := h.gocardless.CreateRequisition(c.Request.Context(), tenant, req.InstitutionID, req.AccountName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.Success(link))
}

// Callback finishes the link and sends the browser back to the dashboard
// GET /api/gocardless/callback
func (h *GoCardlessHandler) Callback(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", "Référence manquante"))
		return
	}

	q := url.Values{}
	accounts, err := h.gocardless.CompleteLink(c.Request.Context(), ref)
	if err != nil {
		h.logger.Warn("gocardless link failed", zap.String("ref", ref), zap.Error(err))
		q.Set("bank_error", dto.ErrorFromErr(err).Error.Message)
	} else {
		q.Set("bank_linked", strconv.Itoa(len(accounts)))
	}

	if h.frontendURL == "" {
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, dto.Success(accounts))
		return
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/treasury?"+q.Encode())
}

// POST /api/gocardless/accounts/:id/sync
func (h *GoCardlessHandler) SyncAccount(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result, err := h.gocardless.SyncAccount(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(result))
}

// RegisterRoutes mounts the authenticated routes on rg and the public
// callback on public
func (h *GoCardlessHandler) RegisterRoutes(public, rg *gin.RouterGroup) {
	public.GET("/gocardless/callback", h.Callback)

	gc := rg.Group("/gocardless")
	{
		gc.GET("/institutions", h.Institutions)
		gc.POST("/requisitions", h.CreateRequisition)
		gc.POST("/accounts/:id/sync", h.SyncAccount)
	}
}
