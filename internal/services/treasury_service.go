package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Treasury Service
// Bank accounts, imported transactions and invoice reconciliation
// ===========================================================================

type CreateBankAccountInput struct {
	Name           string
	BankName       string
	IBAN           string
	BIC            string
	Currency       string
	CurrentBalance float64
}

type AccountBalance struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	BankName   string            `json:"bank_name,omitempty"`
	Balance    float64           `json:"balance"`
	Currency   string            `json:"currency"`
	SyncStatus models.SyncStatus `json:"sync_status"`
	LastSyncAt *time.Time        `json:"last_sync_at,omitempty"`
}

type TreasurySummary struct {
	TotalBalance       float64          `json:"total_balance"`
	Accounts           []AccountBalance `json:"accounts"`
	Income30Days       float64          `json:"income_30_days"`
	Expenses30Days     float64          `json:"expenses_30_days"`
	UnreconciledCount  int64            `json:"unreconciled_count"`
	UnreconciledAmount float64          `json:"unreconciled_amount"`
	UnpaidInvoices     int64            `json:"unpaid_invoices"`
	UnpaidAmount       float64          `json:"unpaid_amount"`
}

// ReconcileResult tells whether reconciling also settled the invoice
type ReconcileResult struct {
	Transaction *models.BankTransaction `json:"transaction"`
	Invoice     *models.Invoice         `json:"invoice"`
	MarkedPaid  bool                    `json:"marked_paid"`
}

type TreasuryService interface {
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]models.BankAccount, error)
	CreateAccount(ctx context.Context, tenantID uuid.UUID, in CreateBankAccountInput) (*models.BankAccount, error)
	ListTransactions(ctx context.Context, tenantID uuid.UUID, filter repositories.TransactionFilter, opts repositories.FindOptions) ([]models.BankTransaction, int64, error)
	// Reconcile links a transaction to an invoice and marks the invoice paid
	// when the amount covers its total.
	Reconcile(ctx context.Context, tenantID, transactionID, invoiceID uuid.UUID) (*ReconcileResult, error)
	Summary(ctx context.Context, tenantID uuid.UUID) (*TreasurySummary, error)
}

type treasuryService struct {
	store    *repositories.Store
	invoices InvoiceService
	clock    cache.Clock
	logger   *zap.Logger
}

func NewTreasuryService(store *repositories.Store, invoices InvoiceService, clock cache.Clock, logger *zap.Logger) TreasuryService {
	return &treasuryService{store: store, invoices: invoices, clock: clock, logger: logger}
}

func (s *treasuryService) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]models.BankAccount, error) {
	return s.store.BankAccounts.ListByTenant(ctx, tenantID)
}

func (s *treasuryService) CreateAccount(ctx context.Context, tenantID uuid.UUID, in CreateBankAccountInput) (*models.BankAccount, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Invalid("Le nom du compte est requis")
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = "EUR"
	}
	acc := &models.BankAccount{
		Name:           strings.TrimSpace(in.Name),
		BankName:       in.BankName,
		IBAN:           strings.ReplaceAll(strings.ToUpper(in.IBAN), " ", ""),
		BIC:            strings.ToUpper(in.BIC),
		Currency:       currency,
		CurrentBalance: billing.Round2(in.CurrentBalance),
		SyncStatus:     models.SyncNever,
	}
	acc.TenantID = tenantID
	if err := s.store.BankAccounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("create bank account: %w", err)
	}
	return acc, nil
}

func (s *treasuryService) ListTransactions(ctx context.Context, tenantID uuid.UUID, filter repositories.TransactionFilter, opts repositories.FindOptions) ([]models.BankTransaction, int64, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = "booking_date"
	}
	return s.store.Transactions.List(ctx, tenantID, filter, opts)
}

func (s *treasuryService) Reconcile(ctx context.Context, tenantID, transactionID, invoiceID uuid.UUID) (*ReconcileResult, error) {
	tx, err := s.store.Transactions.FindByID(ctx, tenantID, transactionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Transaction")
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if tx.IsReconciled {
		return nil, apperrors.New(apperrors.ErrConflict, "Cette transaction est déjà rapprochée")
	}
	if !tx.IsCredit() {
		return nil, apperrors.Invalid("Seul un crédit peut être rapproché d'une facture")
	}
	inv, err := s.invoices.Get(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	tx.IsReconciled = true
	tx.InvoiceID = &inv.ID
	if err := s.store.Transactions.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	result := &ReconcileResult{Transaction: tx, Invoice: inv}
	if !inv.IsPaid() && (tx.Amount >= inv.TotalTTC || billing.AmountsMatch(tx.Amount, inv.TotalTTC)) {
		booked := tx.BookingDate
		paid, err := s.invoices.MarkPaid(ctx, tenantID, inv.ID, &booked, "virement")
		if err != nil {
			return nil, err
		}
		result.Invoice = paid
		result.MarkedPaid = true
	}

	s.logger.Info("transaction reconciled",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("invoice", inv.Number),
		zap.Bool("marked_paid", result.MarkedPaid),
	)
	return result, nil
}

func (s *treasuryService) Summary(ctx context.Context, tenantID uuid.UUID) (*TreasurySummary, error) {
	accounts, err := s.store.BankAccounts.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := &TreasurySummary{Accounts: make([]AccountBalance, 0, len(accounts))}
	for _, a := range accounts {
		out.TotalBalance += a.CurrentBalance
		out.Accounts = append(out.Accounts, AccountBalance{
			ID: a.ID, Name: a.Name, BankName: a.BankName, Balance: a.CurrentBalance,
			Currency: a.Currency, SyncStatus: a.SyncStatus, LastSyncAt: a.LastSyncAt,
		})
	}
	out.TotalBalance = billing.Round2(out.TotalBalance)

	since := s.clock.Now().AddDate(0, 0, -30)
	flow, err := s.store.Transactions.Flows(ctx, tenantID, repositories.TransactionFilter{From: &since})
	if err != nil {
		return nil, fmt.Errorf("cash flow: %w", err)
	}
	out.Income30Days = billing.Round2(flow.Credits)
	out.Expenses30Days = billing.Round2(-flow.Debits)

	pending, err := s.store.Transactions.Flows(ctx, tenantID, repositories.UnreconciledCredits())
	if err != nil {
		return nil, fmt.Errorf("unreconciled: %w", err)
	}
	out.UnreconciledCount = pending.Count
	out.UnreconciledAmount = billing.Round2(pending.Credits)

	unpaid, err := s.store.Invoices.Sum(ctx, tenantID, repositories.UnpaidInvoices())
	if err != nil {
		return nil, fmt.Errorf("unpaid invoices: %w", err)
	}
	out.UnpaidInvoices = unpaid.Count
	out.UnpaidAmount = billing.Round2(unpaid.Total)
	return out, nil
}
