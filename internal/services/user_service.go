package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crm-gin/internal/auth"
	"crm-gin/internal/cache"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/mail"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// User Service
// Staff accounts of a tenant
// ===========================================================================

// InvitationTTL bounds the validity of the link sent to a new user
const InvitationTTL = 7 * 24 * time.Hour

type CreateUserInput struct {
	Email string
	Name  string
	Role  models.UserRole
}

type UserService interface {
	List(ctx context.Context, tenantID uuid.UUID, opts repositories.FindOptions) ([]models.User, int64, error)
	// Create adds a user without password and mails an invitation link
	// that lets them choose one
	Create(ctx context.Context, tenantID uuid.UUID, invitedBy uuid.UUID, in CreateUserInput) (*models.User, error)
}

type userService struct {
	users     repositories.UserRepository
	settings  SettingsService
	mailer    *mail.Mailer
	publicURL string
	clock     cache.Clock
	logger    *zap.Logger
}

func NewUserService(
	users repositories.UserRepository,
	settings SettingsService,
	mailer *mail.Mailer,
	publicURL string,
	clock cache.Clock,
	logger *zap.Logger,
) UserService {
	return &userService{
		users:     users,
		settings:  settings,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		clock:     clock,
		logger:    logger,
	}
}

func (s *userService) List(ctx context.Context, tenantID uuid.UUID, opts repositories.FindOptions) ([]models.User, int64, error) {
	return s.users.ListByTenant(ctx, tenantID, opts)
}

func (s *userService) Create(ctx context.Context, tenantID uuid.UUID, invitedBy uuid.UUID, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperrors.New(apperrors.ErrDuplicateEntry, "Un utilisateur existe déjà avec cet email")
	} else if !repositories.IsNotFound(err) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if role == models.RoleOwner {
		return nil, apperrors.Invalid("Un seul propriétaire par compte")
	}

	// the random password is never disclosed, the invitation link replaces it
	placeholder, _, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate invitation token: %w", err)
	}
	exp := s.clock.Now().Add(InvitationTTL)

	user := &models.User{
		Email:               email,
		Name:                strings.TrimSpace(in.Name),
		Role:                role,
		IsActive:            true,
		ResetTokenHash:      &hash,
		ResetTokenExpiresAt: &exp,
	}
	user.TenantID = tenantID
	if err := user.SetPassword(placeholder); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.invite(ctx, tenantID, invitedBy, user, raw)
	return user, nil
}

// invite mails the link; a delivery failure keeps the user, an admin can
// trigger a password reset later
func (s *userService) invite(ctx context.Context, tenantID, invitedBy uuid.UUID, user *models.User, token string) {
	data := mail.InvitationData{
		Name: user.Name,
		Link: s.publicURL + "/reset-password?token=" + token,
	}
	if tenant, err := s.settings.Tenant(ctx, tenantID); err == nil {
		data.CompanyName = tenant.Name
	}
	if inviter, err := s.users.FindByID(ctx, invitedBy); err == nil {
		data.InvitedBy = inviter.Name
	}

	msg, err := mail.Invitation(user.Email, data)
	if err == nil {
		err = s.mailer.Send(ctx, tenantID, msg)
	}
	if err != nil {
		s.logger.Warn("invitation email not sent",
			zap.String("tenant_id", tenantID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("user invited",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", user.ID.String()),
	)
}
