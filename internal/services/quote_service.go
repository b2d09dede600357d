package services

import (
	"context"
	"fmt"
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
// Quote Service
// ===========================================================================

// DefaultQuoteValidity applies when a quote is created without end date
const DefaultQuoteValidity = 30 * 24 * time.Hour

type CreateQuoteInput struct {
	ClientID   uuid.UUID
	ValidUntil *time.Time
	Notes      string
	Lines      []billing.Line
}

type QuoteService interface {
	Create(ctx context.Context, tenantID uuid.UUID, in CreateQuoteInput) (*models.Quote, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Quote, error)
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Quote, error)
	List(ctx context.Context, tenantID uuid.UUID, filter repositories.QuoteFilter, opts repositories.FindOptions) ([]models.Quote, int64, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.QuoteStatus) (*models.Quote, error)
	SendEmail(ctx context.Context, tenantID, id uuid.UUID) (*models.Quote, error)
	// ConvertToInvoice creates the invoice and the quote back-reference in one
	// transaction. A quote converts at most once.
	ConvertToInvoice(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error)
}

type quoteService struct {
	store    *repositories.Store
	settings SettingsService
	mailer   *mail.Mailer
	notifier Notifier
	clock    cache.Clock
	logger   *zap.Logger
}

func NewQuoteService(store *repositories.Store, settings SettingsService, mailer *mail.Mailer, notifier Notifier, clock cache.Clock, logger *zap.Logger) QuoteService {
	return &quoteService{store: store, settings: settings, mailer: mailer, notifier: notifier, clock: clock, logger: logger}
}

func quoteItems(totals billing.Totals) []models.QuoteItem {
	items := make([]models.QuoteItem, 0, len(totals.Lines))
	for i, l := range totals.Lines {
		items = append(items, models.QuoteItem{
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

func (s *quoteService) Create(ctx context.Context, tenantID uuid.UUID, in CreateQuoteInput) (*models.Quote, error) {
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

	now := s.clock.Now()
	validUntil := in.ValidUntil
	if validUntil == nil {
		v := now.Add(DefaultQuoteValidity)
		validUntil = &v
	}

	totals := billing.ComputeLineTotals(in.Lines)
	q := &models.Quote{
		ClientID:   client.ID,
		Status:     models.QuoteDraft,
		IssueDate:  now,
		ValidUntil: validUntil,
		Notes:      in.Notes,
		SubtotalHT: totals.SubtotalHT,
		TaxAmount:  totals.TaxAmount,
		TotalTTC:   totals.TotalTTC,
		Items:      quoteItems(totals),
	}
	q.TenantID = tenantID

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		seq, err := tx.Quotes.NextSequence(ctx, tenantID, now)
		if err != nil {
			return err
		}
		q.Number = billing.FormatNumber(billing.PrefixQuote, now, seq)
		return tx.Quotes.CreateWithItems(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}
	q.Client = client

	s.logger.Info("quote created", zap.String("number", q.Number), zap.Float64("total_ttc", q.TotalTTC))
	return q, nil
}

func (s *quoteService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Quote, error) {
	q, err := s.store.Quotes.FindByID(ctx, tenantID, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Devis")
		}
		return nil, fmt.Errorf("find quote: %w", err)
	}
	return q, nil
}

func (s *quoteService) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*models.Quote, error) {
	q, err := s.store.Quotes.FindByNumber(ctx, tenantID, number)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Devis")
		}
		return nil, fmt.Errorf("find quote: %w", err)
	}
	return q, nil
}

func (s *quoteService) List(ctx context.Context, tenantID uuid.UUID, filter repositories.QuoteFilter, opts repositories.FindOptions) ([]models.Quote, int64, error) {
	return s.store.Quotes.List(ctx, tenantID, filter, opts)
}

func (s *quoteService) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.QuoteStatus) (*models.Quote, error) {
	if !models.IsValidQuoteStatus(string(status)) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "Statut de devis invalide: %s", status)
	}
	q, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if q.IsConverted() && status != models.QuoteAccepted {
		return nil, apperrors.New(apperrors.ErrConflict, "Ce devis a été converti en facture, son statut ne peut plus changer")
	}
	q.Status = status
	if status == models.QuoteSent && q.SentAt == nil {
		now := s.clock.Now()
		q.SentAt = &now
	}
	if err := s.store.Quotes.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	return q, nil
}

func (s *quoteService) SendEmail(ctx context.Context, tenantID, id uuid.UUID) (*models.Quote, error) {
	q, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	tenant, err := s.settings.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	msg, err := mail.Quote(tenant.Name, q)
	if err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	if err := s.mailer.Send(ctx, tenantID, msg); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	q.SentAt = &now
	if q.Status == models.QuoteDraft {
		q.Status = models.QuoteSent
	}
	if err := s.store.Quotes.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	return q, nil
}

func (s *quoteService) ConvertToInvoice(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	var inv *models.Invoice

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		q, err := tx.Quotes.FindByID(ctx, tenantID, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				return apperrors.NotFound("Devis")
			}
			return err
		}
		if q.IsConverted() {
			return apperrors.New(apperrors.ErrAlreadyConverted, "Ce devis a déjà été converti en facture")
		}

		lines := make([]billing.Line, 0, len(q.Items))
		for _, it := range q.Items {
			rate := it.VATRate
			lines = append(lines, billing.Line{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPriceHT, VATRate: &rate})
		}
		totals := billing.ComputeLineTotals(lines)

		now := s.clock.Now()
		due := now.Add(DefaultPaymentTerm)
		inv = &models.Invoice{
			ClientID:  q.ClientID,
			Status:    models.InvoiceDraft,
			IssueDate: now,
			DueDate:   &due,
			Notes:     fmt.Sprintf("Facture issue du devis %s", q.Number),
			Items:     invoiceItems(totals),
		}
		inv.TenantID = tenantID
		applyTotals(inv, totals)

		seq, err := tx.Invoices.NextSequence(ctx, tenantID, now)
		if err != nil {
			return err
		}
		inv.Number = billing.FormatNumber(billing.PrefixInvoice, now, seq)
		if err := tx.Invoices.CreateWithItems(ctx, inv); err != nil {
			return err
		}
		// conditional write: loses cleanly against a concurrent conversion
		if err := tx.Quotes.LinkInvoice(ctx, tenantID, q.ID, inv.ID); err != nil {
			return err
		}
		inv.Client = q.Client
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyConverted) || apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("quote conversion failed", zap.String("quote_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("convert quote: %w", err)
	}

	s.logger.Info("quote converted", zap.String("quote_id", id.String()), zap.String("invoice", inv.Number))
	s.notifier.InvoiceChanged(ctx, tenantID, realtime.QuoteConverted, inv)
	return inv, nil
}
