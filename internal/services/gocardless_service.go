package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/billing"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/gocardless"
	"crm-gin/internal/metrics"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// GoCardless Service
// Open banking link flow and transaction import
// ===========================================================================

// initialSyncWindow bounds the first import of a freshly linked account
const initialSyncWindow = 90 * 24 * time.Hour

type SyncResult struct {
	AccountID       uuid.UUID `json:"account_id"`
	NewTransactions int64     `json:"new_transactions"`
	Balance         float64   `json:"balance"`
}

type RequisitionLink struct {
	RequisitionID string `json:"requisition_id"`
	Link          string `json:"link"`
}

type GoCardlessService interface {
	Institutions(ctx context.Context, tenantID uuid.UUID) ([]gocardless.Institution, error)
	// CreateRequisition starts the bank consent flow and returns the
	// URL the user must open
	CreateRequisition(ctx context.Context, tenantID uuid.UUID, institutionID, accountName string) (*RequisitionLink, error)
	// CompleteLink runs on the bank redirect; reference identifies the tenant
	CompleteLink(ctx context.Context, reference string) ([]models.BankAccount, error)
	SyncAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*SyncResult, error)
}

type goCardlessService struct {
	store     *repositories.Store
	settings  SettingsService
	client    *gocardless.Client
	notifier  Notifier
	publicURL string
	clock     cache.Clock
	logger    *zap.Logger
}

func NewGoCardlessService(
	store *repositories.Store,
	settings SettingsService,
	client *gocardless.Client,
	notifier Notifier,
	publicURL string,
	clock cache.Clock,
	logger *zap.Logger,
) GoCardlessService {
	return &goCardlessService{
		store:     store,
		settings:  settings,
		client:    client,
		notifier:  notifier,
		publicURL: strings.TrimRight(publicURL, "/"),
		clock:     clock,
		logger:    logger,
	}
}

func (s *goCardlessService) credentials(ctx context.Context, tenantID uuid.UUID) (gocardless.Credentials, models.GoCardlessSettings, error) {
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return gocardless.Credentials{}, models.GoCardlessSettings{}, err
	}
	gc := settings.GoCardless
	if !gc.Configured() {
		return gocardless.Credentials{}, gc, apperrors.New(apperrors.ErrNotConfigured, "GoCardless n'est pas configuré")
	}
	return gocardless.Credentials{SecretID: gc.SecretID, SecretKey: gc.SecretKey}, gc, nil
}

func (s *goCardlessService) Institutions(ctx context.Context, tenantID uuid.UUID) ([]gocardless.Institution, error) {
	creds, gc, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	country := gc.Country
	if country == "" {
		country = "FR"
	}
	list, err := s.client.Institutions(ctx, creds, country)
	if err != nil {
		return nil, apperrors.External("GoCardless", err)
	}
	return list, nil
}

func referenceFor(tenantID uuid.UUID) string {
	return tenantID.String() + "." + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func tenantFromReference(ref string) (uuid.UUID, error) {
	head, _, _ := strings.Cut(ref, ".")
	id, err := uuid.Parse(head)
	if err != nil {
		return uuid.Nil, apperrors.Invalid("Référence bancaire invalide")
	}
	return id, nil
}

func (s *goCardlessService) CreateRequisition(ctx context.Context, tenantID uuid.UUID, institutionID, accountName string) (*RequisitionLink, error) {
	creds, _, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	redirect := s.publicURL + "/api/gocardless/callback"
	req, err := s.client.CreateRequisition(ctx, creds, institutionID, redirect, referenceFor(tenantID))
	if err != nil {
		return nil, apperrors.External("GoCardless", err)
	}

	// placeholder account, completed by the callback
	if accountName == "" {
		accountName = institutionID
	}
	acc := &models.BankAccount{
		Name:                    accountName,
		BankName:                institutionID,
		Currency:                "EUR",
		GoCardlessRequisitionID: req.ID,
		SyncStatus:              models.SyncPending,
	}
	acc.TenantID = tenantID
	if err := s.store.BankAccounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("create pending account: %w", err)
	}

	s.logger.Info("gocardless requisition created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("requisition_id", req.ID),
	)
	return &RequisitionLink{RequisitionID: req.ID, Link: req.Link}, nil
}

func (s *goCardlessService) CompleteLink(ctx context.Context, reference string) ([]models.BankAccount, error) {
	tenantID, err := tenantFromReference(reference)
	if err != nil {
		return nil, err
	}
	creds, _, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	all, err := s.store.BankAccounts.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var linked []models.BankAccount
	for i := range all {
		placeholder := &all[i]
		if placeholder.SyncStatus != models.SyncPending || placeholder.GoCardlessRequisitionID == "" {
			continue
		}
		req, err := s.client.GetRequisition(ctx, creds, placeholder.GoCardlessRequisitionID)
		if err != nil {
			return nil, apperrors.External("GoCardless", err)
		}
		if !req.Linked() || len(req.Accounts) == 0 {
			continue
		}

		for n, externalID := range req.Accounts {
			if existing, err := s.store.BankAccounts.FindByExternalAccountID(ctx, tenantID, externalID); err == nil {
				linked = append(linked, *existing)
				continue
			}

			acc := placeholder
			if n > 0 {
				acc = &models.BankAccount{Name: placeholder.Name, BankName: placeholder.BankName, GoCardlessRequisitionID: req.ID}
				acc.TenantID = tenantID
			}
			acc.GoCardlessAccountID = externalID
			acc.SyncStatus = models.SyncNever
			if details, err := s.client.AccountDetails(ctx, creds, externalID); err == nil {
				acc.IBAN = details.IBAN
				if details.Currency != "" {
					acc.Currency = details.Currency
				}
				if details.Name != "" && n > 0 {
					acc.Name = details.Name
				}
			}

			if n == 0 {
				err = s.store.BankAccounts.Update(ctx, acc)
			} else {
				err = s.store.BankAccounts.Create(ctx, acc)
			}
			if err != nil {
				return nil, fmt.Errorf("save linked account: %w", err)
			}
			linked = append(linked, *acc)
		}
	}

	s.logger.Info("gocardless link completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("accounts", len(linked)),
	)
	return linked, nil
}

func (s *goCardlessService) SyncAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*SyncResult, error) {
	acc, err := s.store.BankAccounts.FindByID(ctx, tenantID, accountID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Compte bancaire")
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if acc.GoCardlessAccountID == "" {
		return nil, apperrors.Invalid("Ce compte n'est pas relié à une banque")
	}
	creds, _, err := s.credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	res, syncErr := s.sync(ctx, creds, acc)
	now := s.clock.Now()
	acc.LastSyncAt = &now
	if syncErr != nil {
		acc.SyncStatus = models.SyncError
		acc.SyncError = syncErr.Error()
	} else {
		acc.SyncStatus = models.SyncOK
		acc.SyncError = ""
	}
	if err := s.store.BankAccounts.Update(ctx, acc); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	if syncErr != nil {
		s.logger.Warn("bank sync failed", zap.String("account_id", acc.ID.String()), zap.Error(syncErr))
		return nil, apperrors.External("GoCardless", syncErr)
	}

	s.notifier.TreasurySynced(ctx, tenantID, &realtime.TreasuryEvent{
		Type:            realtime.TreasurySynced,
		BankAccountID:   acc.ID,
		NewTransactions: int(res.NewTransactions),
		Balance:         fmt.Sprintf("%.2f", res.Balance),
	})
	return res, nil
}

func (s *goCardlessService) sync(ctx context.Context, creds gocardless.Credentials, acc *models.BankAccount) (*SyncResult, error) {
	from := s.clock.Now().Add(-initialSyncWindow)
	if acc.LastSyncAt != nil && acc.SyncStatus == models.SyncOK {
		// overlap a few days, late bookings are common and duplicates are skipped
		from = acc.LastSyncAt.AddDate(0, 0, -3)
	}

	booked, err := s.client.BookedTransactions(ctx, creds, acc.GoCardlessAccountID, from)
	if err != nil {
		return nil, err
	}
	txs := make([]models.BankTransaction, 0, len(booked))
	for _, b := range booked {
		if b.ExternalID() == "" {
			continue
		}
		currency := b.TransactionAmount.Currency
		if currency == "" {
			currency = acc.Currency
		}
		tx := models.BankTransaction{
			BankAccountID:    acc.ID,
			ExternalID:       b.ExternalID(),
			BookingDate:      b.BookedAt(),
			Amount:           billing.Round2(b.TransactionAmount.Decimal().InexactFloat64()),
			Currency:         currency,
			Label:            b.RemittanceInformation,
			CounterpartyName: b.Counterparty(),
		}
		tx.TenantID = acc.TenantID
		txs = append(txs, tx)
	}
	inserted, err := s.store.Transactions.InsertNew(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("store transactions: %w", err)
	}
	metrics.BankSyncTransactions.Add(float64(inserted))

	bal, err := s.client.Balance(ctx, creds, acc.GoCardlessAccountID)
	if err != nil {
		return nil, err
	}
	acc.CurrentBalance = billing.Round2(bal.BalanceAmount.Decimal().InexactFloat64())

	return &SyncResult{AccountID: acc.ID, NewTransactions: inserted, Balance: acc.CurrentBalance}, nil
}
