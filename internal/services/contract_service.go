package services

import (
	"context"
	"fmt"
	"strconv"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/integrations/docuseal"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Contract Service
// Electronic signature through DocuSeal
// ===========================================================================

type ContractService interface {
	List(ctx context.Context, tenantID uuid.UUID, filter repositories.ContractFilter, opts repositories.FindOptions) ([]models.Contract, int64, error)
	// SendForSignature creates a DocuSeal submission and mails the signing
	// link to the client
	SendForSignature(ctx context.Context, tenantID, contractID uuid.UUID) (*models.Contract, error)
}

type contractService struct {
	store           *repositories.Store
	settings        SettingsService
	mailer          *mail.Mailer
	docusealBaseURL string
	logger          *zap.Logger
}

func NewContractService(
	store *repositories.Store,
	settings SettingsService,
	mailer *mail.Mailer,
	docusealBaseURL string,
	logger *zap.Logger,
) ContractService {
	return &contractService{
		store:           store,
		settings:        settings,
		mailer:          mailer,
		docusealBaseURL: docusealBaseURL,
		logger:          logger,
	}
}

func (s *contractService) List(ctx context.Context, tenantID uuid.UUID, filter repositories.ContractFilter, opts repositories.FindOptions) ([]models.Contract, int64, error) {
	return s.store.Contracts.List(ctx, tenantID, filter, opts)
}

func (s *contractService) SendForSignature(ctx context.Context, tenantID, contractID uuid.UUID) (*models.Contract, error) {
	contract, err := s.store.Contracts.FindByID(ctx, tenantID, contractID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Contrat")
		}
		return nil, fmt.Errorf("find contract: %w", err)
	}
	switch contract.Status {
	case models.ContractSigned:
		return nil, apperrors.New(apperrors.ErrConflict, "Ce contrat est déjà signé")
	case models.ContractCancelled:
		return nil, apperrors.Invalid("Ce contrat est annulé")
	}
	if contract.Client == nil || contract.Client.Email == "" {
		return nil, apperrors.Invalid("Le client n'a pas d'adresse email")
	}

	tenant, err := s.settings.Tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ds := tenant.Settings.DocuSeal
	if !ds.Configured() {
		return nil, notConfigured("DocuSeal")
	}
	if ds.TemplateID == 0 {
		return nil, apperrors.New(apperrors.ErrNotConfigured, "Aucun modèle DocuSeal n'est défini")
	}
	base := ds.BaseURL
	if base == "" {
		base = s.docusealBaseURL
	}

	client := contract.Client
	results, err := docuseal.New(base, ds.APIKey).CreateSubmission(ctx, ds.TemplateID, []docuseal.Submitter{{
		Name:  client.ContactName(),
		Email: client.Email,
	}})
	if err != nil {
		return nil, apperrors.External("DocuSeal", err)
	}
	first := results[0]

	contract.SignatureRequestID = strconv.FormatInt(first.SubmissionID, 10)
	contract.SignatureURL = first.EmbedSrc
	contract.Status = models.ContractSent
	if err := s.store.Contracts.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}

	msg, err := mail.SignatureRequest(client.Email, mail.SignatureRequestData{
		CompanyName: tenant.Name,
		Name:        greetingFor(client),
		Title:       contract.Title,
		Link:        first.EmbedSrc,
	})
	if err == nil {
		err = s.mailer.Send(ctx, tenantID, msg)
	}
	if err != nil {
		// the submission exists, the link stays available on the contract
		s.logger.Warn("signature email not sent",
			zap.String("contract_id", contract.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("contract sent for signature",
		zap.String("tenant_id", tenantID.String()),
		zap.String("contract_id", contract.ID.String()),
		zap.String("submission_id", contract.SignatureRequestID),
	)
	return contract, nil
}

func greetingFor(c *models.Client) string {
	if name := c.ContactName(); name != "" {
		return name
	}
	return c.DisplayName()
}
