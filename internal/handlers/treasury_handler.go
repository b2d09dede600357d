package handlers

import (
	"net/http"

	"crm-gin/internal/dto"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Treasury Handler
// ===========================================================================

type TreasuryHandler struct {
	treasury services.TreasuryService
	logger   *zap.Logger
}

func NewTreasuryHandler(treasury services.TreasuryService, logger *zap.Logger) *TreasuryHandler {
	return &TreasuryHandler{treasury: treasury, logger: logger}
}

// GET /api/treasury/accounts
func (h *TreasuryHandler) ListAccounts(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	accounts, err := h.treasury.ListAccounts(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(accounts))
}

// POST /api/treasury/accounts
func (h *TreasuryHandler) CreateAccount(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	account, err := h.treasury.CreateAccount(c.Request.Context(), tenant, services.CreateBankAccountInput{
		Name:           req.Name,
		BankName:       req.BankName,
		IBAN:           req.IBAN,
		BIC:            req.BIC,
		Currency:       req.Currency,
		CurrentBalance: req.CurrentBalance,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.Success(account))
}

// GET /api/treasury/transactions
func (h *TreasuryHandler) ListTransactions(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.SetDefaults()

	filter := repositories.TransactionFilter{
		AccountID:  req.AccountID,
		Reconciled: req.Reconciled,
		From:       req.From,
		To:         req.To,
		Search:     req.Search,
	}
	txs, total, err := h.treasury.ListTransactions(c.Request.Context(), tenant, filter, repositories.FindOptions{
		Offset:  req.Offset(),
		Limit:   req.Limit,
		OrderBy: "booking_date",
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessWithMeta(txs, dto.NewMeta(req.Page, req.Limit, total)))
}

// POST /api/treasury/transactions/:id/reconcile
func (h *TreasuryHandler) Reconcile(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.treasury.Reconcile(c.Request.Context(), tenant, id, req.InvoiceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(result))
}

// GET /api/treasury/summary
func (h *TreasuryHandler) Summary(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	summary, err := h.treasury.Summary(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(summary))
}

func (h *TreasuryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	treasury := rg.Group("/treasury")
	{
		treasury.GET("/summary", h.Summary)
		treasury.GET("/accounts", h.ListAccounts)
		treasury.POST("/accounts", h.CreateAccount)
		treasury.GET("/transactions", h.ListTransactions)
		treasury.POST("/transactions/:id/reconcile", h.Reconcile)
	}
}
