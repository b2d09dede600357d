package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Invoice Service Implementation
// ===========================================================================

type invoiceServiceImpl struct {
	store    *repositories.Store
	settings SettingsService
	mailer   *mail.Mailer
	notifier Notifier
	clock    cache.Clock
	logger   *zap.Logger
}

func NewInvoiceService(
	store *repositories.Store,
	settings SettingsService,
	mailer *mail.Mailer,
	notifier Notifier,
	clock cache.Clock,
	logger *zap.Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		store:    store,
		settings: settings,
		mailer:   mailer,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

func invoiceItems(totals billing.Totals) []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(totals.Lines))
	for i, l := range totals.Lines {
		items = append(items, models.InvoiceItem{
			Position:    i + 1,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPriceHT: l.UnitPrice,
			VATRate:     l.VATRate,
			TotalHT:     l.TotalHT,
			TaxAmount:   l.TaxAmount,
			TotalTTC:    l.TotalTTC,
		})
	}
	return items
}

func applyTotals(inv *models.Invoice, totals billing.Totals) {
	inv.SubtotalHT = totals.SubtotalHT
	inv.TaxAmount = totals.TaxAmount
	inv.TotalTTC = totals.TotalTTC
}

func (s *invoiceServiceImpl) Create(ctx context.Context, tenantID uuid.UUID, in CreateInvoiceInput) (*models.Invoice, error) {
	if err := billing.ValidateLines(in.Lines); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}

	client, err := s.store.Clients.FindByID(ctx, tenantID, in.ClientID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Client")
		}
		return nil, fmt.Errorf("find client: %w", err)
	}

	issue := s.clock.Now()
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}
	due := in.DueDate
	if due == nil {
		d := issue.Add(DefaultPaymentTerm)
		due = &d
	}

	totals := billing.ComputeLineTotals(in.Lines)
	inv := &models.Invoice{
		ClientID:  client.ID,
		Status:    models.InvoiceDraft,
		IssueDate: issue,
		DueDate:   due,
		Notes:     in.Notes,
		Items:     invoiceItems(totals),
	}
	inv.TenantID = tenantID
	applyTotals(inv, totals)

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		seq, err := tx.Invoices.NextSequence(ctx, tenantID, issue)
		if err != nil {
			return err
		}
		inv.Number = billing.FormatNumber(billing.PrefixInvoice, issue, seq)
		return tx.Invoices.CreateWithItems(ctx, inv)
	})
	if err != nil {
		s.logger.Error("create invoice failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	inv.Client = client

	s.logger.Info("invoice created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("number", inv.Number),
		zap.Float64("total_ttc", inv.TotalTTC),
	)
	s.notifier.InvoiceChanged(ctx, tenantID, realtime.InvoiceCreated, inv)
	return inv, nil
}

func (s *invoiceServiceImpl) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.store.Invoices.FindByID(ctx, tenantID, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Facture")
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceServiceImpl) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Invoice, error) {
	inv, err := s.store.Invoices.FindByNumber(ctx, tenantID, strings.TrimSpace(number))
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Facture")
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceServiceImpl) List(ctx context.Context, tenantID uuid.UUID, filter repositories.InvoiceFilter, opts repositories.FindOptions) ([]models.Invoice, int64, error) {
	return s.store.Invoices.List(ctx, tenantID, filter, opts)
}

func (s *invoiceServiceImpl) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInvoiceInput) (*models.Invoice, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid() {
		return nil, apperrors.New(apperrors.ErrConflict, "Une facture payée ne peut plus être modifiée")
	}

	if in.DueDate != nil {
		inv.DueDate = in.DueDate
	}
	if in.Notes != nil {
		inv.Notes = *in.Notes
	}
	if in.Status != nil {
		if *in.Status == models.InvoicePaid {
			return nil, apperrors.Invalid("Utilisez le marquage comme payée pour encaisser une facture")
		}
		inv.Status = *in.Status
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if in.Lines != nil {
			if err := billing.ValidateLines(in.Lines); err != nil {
				return apperrors.Invalid(err.Error())
			}
			totals := billing.ComputeLineTotals(in.Lines)
			applyTotals(inv, totals)
			inv.Items = invoiceItems(totals)
			if err := tx.Invoices.ReplaceItems(ctx, inv.ID, inv.Items); err != nil {
				return err
			}
		}
		return tx.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *invoiceServiceImpl) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if inv.IsPaid() {
		return apperrors.New(apperrors.ErrConflict, "Une facture payée ne peut pas être supprimée")
	}
	if err := s.store.Invoices.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.logger.Info("invoice deleted", zap.String("number", inv.Number))
	return nil
}

func (s *invoiceServiceImpl) SendEmail(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceCancelled {
		return nil, apperrors.Invalid("Une facture annulée ne peut pas être envoyée")
	}
	if inv.Client == nil || inv.Client.Email == "" {
		return nil, apperrors.Invalid("Le client n'a pas d'adresse email")
	}

	tenant, err := s.settings.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	msg, err := mail.Invoice(tenant.Name, inv, tenant.Settings.SEPA)
	if err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	if err := s.mailer.Send(ctx, tenantID, msg); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv.SentAt = &now
	if inv.Status == models.InvoiceDraft {
		inv.Status = models.InvoiceSent
	}
	if err := s.store.Invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	s.notifier.InvoiceChanged(ctx, tenantID, realtime.InvoiceSent, inv)
	return inv, nil
}

func (s *invoiceServiceImpl) SetDueDate(ctx context.Context, tenantID, id uuid.UUID, due time.Time) (*models.Invoice, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid() {
		return nil, apperrors.New(apperrors.ErrConflict, "Une facture payée ne peut plus être modifiée")
	}
	inv.DueDate = &due
	// moving the due date out of the past brings an overdue invoice back to sent
	if inv.Status == models.InvoiceOverdue && due.After(s.clock.Now()) {
		inv.Status = models.InvoiceSent
	}
	if err := s.store.Invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceServiceImpl) MarkPaid(ctx context.Context, tenantID, id uuid.UUID, paidAt *time.Time, method string) (*models.Invoice, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.IsPaid() {
		return nil, apperrors.New(apperrors.ErrConflict, fmt.Sprintf("La facture %s est déjà payée", inv.Number))
	}
	if inv.Status == models.InvoiceCancelled {
		return nil, apperrors.Invalid("Une facture annulée ne peut pas être payée")
	}

	when := s.clock.Now()
	if paidAt != nil {
		when = *paidAt
	}
	inv.Status = models.InvoicePaid
	inv.PaymentDate = &when
	if method != "" {
		inv.PaymentMethod = method
	}
	if err := s.store.Invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	s.logger.Info("invoice paid",
		zap.String("tenant_id", tenantID.String()),
		zap.String("number", inv.Number),
	)
	s.notifier.InvoiceChanged(ctx, tenantID, realtime.InvoicePaid, inv)
	return inv, nil
}

func (s *invoiceServiceImpl) ListUnpaid(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	items, _, err := s.store.Invoices.List(ctx, tenantID, repositories.UnpaidInvoices(),
		repositories.FindOptions{Limit: 100, OrderBy: "due_date", OrderDir: "asc"})
	return items, err
}

func (s *invoiceServiceImpl) ListOverdue(ctx context.Context, tenantID uuid.UUID) ([]models.Invoice, error) {
	items, _, err := s.store.Invoices.List(ctx, tenantID, repositories.OverdueInvoices(s.clock.Now()),
		repositories.FindOptions{Limit: 100, OrderBy: "due_date", OrderDir: "asc"})
	return items, err
}

func (s *invoiceServiceImpl) RefreshOverdue(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	n, err := s.store.Invoices.MarkOverdue(ctx, tenantID, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	if n > 0 {
		s.logger.Info("invoices now overdue", zap.String("tenant_id", tenantID.String()), zap.Int64("count", n))
	}
	return n, nil
}

func (s *invoiceServiceImpl) ReconcileSuggestions(ctx context.Context, tenantID, id uuid.UUID) ([]models.BankTransaction, error) {
	inv, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	credits, _, err := s.store.Transactions.List(ctx, tenantID, repositories.UnreconciledCredits(),
		repositories.FindOptions{Limit: 500, OrderBy: "booking_date", OrderDir: "desc"})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return matchTransactions(inv, credits), nil
}

// matchTransactions keeps credits paying exactly the invoice total or
// whose label mentions the invoice number. Number matches come first.
func matchTransactions(inv *models.Invoice, credits []models.BankTransaction) []models.BankTransaction {
	number := strings.ToLower(inv.Number)
	var byNumber, byAmount []models.BankTransaction
	for _, tx := range credits {
		switch {
		case number != "" && strings.Contains(strings.ToLower(tx.Label), number):
			byNumber = append(byNumber, tx)
		case billing.AmountsMatch(tx.Amount, inv.TotalTTC):
			byAmount = append(byAmount, tx)
		}
	}
	return append(byNumber, byAmount...)
}
