package handlers

import (
	"net/http"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/dateparse"
	"crm-gin/internal/dto"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Invoice Handler
// ===========================================================================

type InvoiceHandler struct {
	invoices services.InvoiceService
	now      func() time.Time
	loc      *time.Location
	logger   *zap.Logger
}

func NewInvoiceHandler(invoices services.InvoiceService, now func() time.Time, loc *time.Location, logger *zap.Logger) *InvoiceHandler {
	if now == nil {
		now = time.Now
	}
	return &InvoiceHandler{invoices: invoices, now: now, loc: loc, logger: logger}
}

func toBillingLines(items []dto.LineRequest) []billing.Line {
	if items == nil {
		return nil
	}
	lines := make([]billing.Line, len(items))
	for i, it := range items {
		lines[i] = billing.Line{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			VATRate:     it.VATRate,
		}
	}
	return lines
}

// List
// GET /api/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.SetDefaults()

	filter := repositories.InvoiceFilter{ClientID: req.ClientID, Number: req.Number}
	if req.Status != "" {
		filter.Statuses = []models.InvoiceStatus{models.InvoiceStatus(req.Status)}
	}

	invoices, total, err := h.invoices.List(c.Request.Context(), tenant, filter, repositories.FindOptions{
		Offset:  req.Offset(),
		Limit:   req.Limit,
		OrderBy: "issue_date",
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessWithMeta(invoices, dto.NewMeta(req.Page, req.Limit, total)))
}

// Create
// POST /api/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	invoice, err := h.invoices.Create(c.Request.Context(), tenant, services.CreateInvoiceInput{
		ClientID:  req.ClientID,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		Lines:     toBillingLines(req.Items),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.Success(invoice))
}

// Get
// GET /api/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoices.Get(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(invoice))
}

// Update
// PUT /api/invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := services.UpdateInvoiceInput{
		DueDate: req.DueDate,
		Notes:   req.Notes,
		Lines:   toBillingLines(req.Items),
	}
	if req.Status != nil {
		status := models.InvoiceStatus(*req.Status)
		in.Status = &status
	}

	invoice, err := h.invoices.Update(c.Request.Context(), tenant, id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(invoice))
}

// Delete
// DELETE /api/invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.invoices.Delete(c.Request.Context(), tenant, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(dto.OKResponse{OK: true}))
}

// SendEmail
// POST /api/invoices/:id/send-email
func (h *InvoiceHandler) SendEmail(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoices.SendEmail(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(invoice))
}

// SetDueDate accepts ISO dates as well as "12/03/2026" or "lundi"
// PUT /api/invoices/:id/due-date
func (h *InvoiceHandler) SetDueDate(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.SetDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	due, err := dateparse.New(h.now, h.loc).Parse(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_DATE", "Date d'échéance non reconnue"))
		return
	}

	invoice, err := h.invoices.SetDueDate(c.Request.Context(), tenant, id, due)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(invoice))
}

// MarkPaid
// POST /api/invoices/:id/mark-paid
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MarkPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	invoice, err := h.invoices.MarkPaid(c.Request.Context(), tenant, id, req.PaymentDate, req.PaymentMethod)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(invoice))
}

// ReconcileSuggestions
// GET /api/invoices/:id/reconcile-suggestions
func (h *InvoiceHandler) ReconcileSuggestions(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	txs, err := h.invoices.ReconcileSuggestions(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(txs))
}

func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", h.List)
		invoices.POST("", h.Create)
		invoices.GET("/:id", h.Get)
		invoices.PUT("/:id", h.Update)
		invoices.DELETE("/:id", h.Delete)
		invoices.POST("/:id/send-email", h.SendEmail)
		invoices.PUT("/:id/due-date", h.SetDueDate)
		invoices.POST("/:id/mark-paid", h.MarkPaid)
		invoices.GET("/:id/reconcile-suggestions", h.ReconcileSuggestions)
	}
}
