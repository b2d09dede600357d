package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Client Service
// ===========================================================================

// ClientInput carries client fields; nil pointers are left untouched on update
type ClientInput struct {
	CompanyName      *string
	ContactFirstName *string
	ContactLastName  *string
	Email            *string
	Phone            *string
	Address          *string
	PostalCode       *string
	City             *string
	Country          *string
	SIRET            *string
	VATNumber        *string
	Status           *models.ClientStatus
}

type ClientService interface {
	Search(ctx context.Context, tenantID uuid.UUID, filter repositories.ClientFilter, opts repositories.FindOptions) ([]models.Client, int64, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error)
	Create(ctx context.Context, tenantID uuid.UUID, in ClientInput) (*models.Client, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in ClientInput) (*models.Client, error)
	// Resolve finds a client by id when given, by name otherwise
	Resolve(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID, name string) (*models.Client, error)
}

type clientService struct {
	clients repositories.ClientRepository
	logger  *zap.Logger
}

func NewClientService(clients repositories.ClientRepository, logger *zap.Logger) ClientService {
	return &clientService{clients: clients, logger: logger}
}

func (s *clientService) Search(ctx context.Context, tenantID uuid.UUID, filter repositories.ClientFilter, opts repositories.FindOptions) ([]models.Client, int64, error) {
	if opts.OrderBy == "" {
		opts.OrderBy, opts.OrderDir = "company_name", "asc"
	}
	return s.clients.List(ctx, tenantID, filter, opts)
}

func (s *clientService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	c, err := s.clients.FindByID(ctx, tenantID, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Client")
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	return c, nil
}

func (s *clientService) Resolve(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID, name string) (*models.Client, error) {
	if id != nil && *id != uuid.Nil {
		return s.Get(ctx, tenantID, *id)
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.Invalid("clientId ou clientName est requis")
	}
	c, err := s.clients.FindByName(ctx, tenantID, name)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Client")
		}
		return nil, fmt.Errorf("find client by name: %w", err)
	}
	return c, nil
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func applyClient(c *models.Client, in ClientInput) error {
	apply(&c.CompanyName, in.CompanyName)
	apply(&c.ContactFirstName, in.ContactFirstName)
	apply(&c.ContactLastName, in.ContactLastName)
	apply(&c.Email, in.Email)
	apply(&c.Phone, in.Phone)
	apply(&c.Address, in.Address)
	apply(&c.PostalCode, in.PostalCode)
	apply(&c.City, in.City)
	apply(&c.Country, in.Country)
	apply(&c.SIRET, in.SIRET)
	apply(&c.VATNumber, in.VATNumber)
	if in.Status != nil {
		if !models.IsValidClientStatus(string(*in.Status)) {
			return apperrors.Newf(apperrors.ErrInvalidInput, "Statut client invalide: %s", *in.Status)
		}
		c.Status = *in.Status
	}
	c.Email = strings.ToLower(c.Email)
	if c.DisplayName() == "" {
		return apperrors.Invalid("Le nom de la société ou du contact est requis")
	}
	return nil
}

func (s *clientService) Create(ctx context.Context, tenantID uuid.UUID, in ClientInput) (*models.Client, error) {
	c := &models.Client{Status: models.ClientProspect, Country: "France"}
	c.TenantID = tenantID
	if err := applyClient(c, in); err != nil {
		return nil, err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.logger.Info("client created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("client_id", c.ID.String()),
	)
	return c, nil
}

func (s *clientService) Update(ctx context.Context, tenantID, id uuid.UUID, in ClientInput) (*models.Client, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := applyClient(c, in); err != nil {
		return nil, err
	}
	if err := s.clients.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}
