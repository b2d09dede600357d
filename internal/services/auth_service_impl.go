package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

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
// Auth Service Implementation
// ===========================================================================

type authServiceImpl struct {
	userRepo   repositories.UserRepository
	tenants    repositories.TenantRepository
	jwtService *auth.JWTService
	mailer     *mail.Mailer
	publicURL  string
	clock      cache.Clock
	logger     *zap.Logger
}

func NewAuthService(
	userRepo repositories.UserRepository,
	tenants repositories.TenantRepository,
	jwtService *auth.JWTService,
	mailer *mail.Mailer,
	publicURL string,
	clock cache.Clock,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		userRepo:   userRepo,
		tenants:    tenants,
		jwtService: jwtService,
		mailer:     mailer,
		publicURL:  strings.TrimRight(publicURL, "/"),
		clock:      clock,
		logger:     logger,
	}
}

// issue generates a normal pair and stores the refresh token hash
func (s *authServiceImpl) issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	tokens, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		s.logger.Error("generate token failed",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return nil, fmt.Errorf("generate token: %w", err)
	}

	tokenHash := auth.HashToken(tokens.RefreshToken)
	user.RefreshTokenHash = &tokenHash
	now := s.clock.Now()
	user.LastSeenAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		// without the stored hash the refresh token would be unusable
		return nil, fmt.Errorf("save refresh token hash: %w", err)
	}

	return &LoginResult{
		User:      user,
		Tokens:    tokens,
		ExpiresIn: int(s.jwtService.AccessDuration().Seconds()),
	}, nil
}

func tokenError(err error) error {
	if errors.Is(err, auth.ErrExpiredToken) {
		return apperrors.ErrTokenExpired
	}
	return apperrors.ErrInvalidToken
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.ErrInvalidCredentials
		}
		s.logger.Error("find user by email failed", zap.Error(err))
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if !user.IsActive || !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()),
	)
	return res, nil
}

func (s *authServiceImpl) RefreshTokens(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, apperrors.ErrInvalidToken
	}

	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != auth.HashToken(refreshToken) {
		s.logger.Warn("refresh token hash mismatch - token possibly revoked",
			zap.String("user_id", user.ID.String()),
		)
		return nil, apperrors.ErrInvalidToken
	}

	return s.issue(ctx, user)
}

func (s *authServiceImpl) ValidateAccessToken(token string) (*auth.Claims, error) {
	claims, err := s.jwtService.ValidateAccessToken(token)
	if err != nil {
		return nil, tokenError(err)
	}
	return claims, nil
}

func (s *authServiceImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, apperrors.NotFound("Utilisateur")
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (s *authServiceImpl) RevokeRefreshToken(ctx context.Context, userID uuid.UUID) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	user.RefreshTokenHash = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.logger.Info("refresh token revoked", zap.String("user_id", userID.String()))
	return nil
}

func (s *authServiceImpl) Impersonate(ctx context.Context, actor *auth.Claims, targetID uuid.UUID) (*LoginResult, error) {
	if actor.IsImpersonated() {
		return nil, apperrors.New(apperrors.ErrForbidden, "Terminez l'usurpation en cours avant d'en commencer une autre")
	}
	if actor.Role != models.RoleOwner && actor.Role != models.RoleAdmin {
		return nil, apperrors.New(apperrors.ErrForbidden, "Seuls les administrateurs peuvent usurper un utilisateur")
	}
	if actor.UserID == targetID {
		return nil, apperrors.Invalid("Impossible de s'usurper soi-même")
	}

	target, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil || target.TenantID != actor.TenantID {
		// other tenants' users are reported as missing
		return nil, apperrors.NotFound("Utilisateur")
	}
	if !target.IsActive {
		return nil, apperrors.Invalid("Cet utilisateur est désactivé")
	}
	if target.Role == models.RoleOwner && actor.Role != models.RoleOwner {
		return nil, apperrors.New(apperrors.ErrForbidden, "Seul un propriétaire peut usurper un propriétaire")
	}

	tokens, err := s.jwtService.GenerateImpersonationToken(target, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("generate impersonation token: %w", err)
	}

	s.logger.Warn("impersonation started",
		zap.String("tenant_id", actor.TenantID.String()),
		zap.String("impersonator_id", actor.UserID.String()),
		zap.String("target_id", target.ID.String()),
	)
	return &LoginResult{
		User:      target,
		Tokens:    tokens,
		ExpiresIn: int(tokens.ExpiresAt.Sub(s.clock.Now()).Seconds()),
	}, nil
}

func (s *authServiceImpl) StopImpersonation(ctx context.Context, actor *auth.Claims) (*LoginResult, error) {
	if !actor.IsImpersonated() {
		return nil, apperrors.Invalid("Aucune usurpation en cours")
	}
	original, err := s.userRepo.FindByID(ctx, *actor.ImpersonatorID)
	if err != nil || !original.IsActive {
		return nil, apperrors.ErrInvalidToken
	}

	s.logger.Info("impersonation stopped",
		zap.String("impersonator_id", original.ID.String()),
		zap.String("target_id", actor.UserID.String()),
	)
	return s.issue(ctx, original)
}

func (s *authServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("find user by email: %w", err)
	}

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	exp := s.clock.Now().Add(PasswordResetTTL)
	user.ResetTokenHash = &hash
	user.ResetTokenExpiresAt = &exp
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	companyName := ""
	if tenant, err := s.tenants.FindByID(ctx, user.TenantID); err == nil {
		companyName = tenant.Name
	}
	msg, err := mail.PasswordReset(user.Email, mail.PasswordResetData{
		CompanyName: companyName,
		Name:        user.Name,
		Link:        s.publicURL + "/reset-password?token=" + raw,
	})
	if err != nil {
		return fmt.Errorf("compose reset email: %w", err)
	}
	return s.mailer.Send(ctx, user.TenantID, msg)
}

func (s *authServiceImpl) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.userRepo.FindByResetTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if repositories.IsNotFound(err) {
			return apperrors.New(apperrors.ErrInvalidToken, "Lien de réinitialisation invalide")
		}
		return fmt.Errorf("find reset token: %w", err)
	}
	if user.ResetTokenExpiresAt == nil || s.clock.Now().After(*user.ResetTokenExpiresAt) {
		return apperrors.New(apperrors.ErrTokenExpired, "Lien de réinitialisation expiré")
	}

	if err := user.SetPassword(password); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.ResetTokenHash = nil
	user.ResetTokenExpiresAt = nil
	// every open session ends with the password change
	user.RefreshTokenHash = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("save password: %w", err)
	}

	s.logger.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}
