package services

import (
	"context"
	"time"

	"crm-gin/internal/auth"
	"crm-gin/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Auth Service Interface
// Handle authentication: login, refresh, impersonation, password reset
// ===========================================================================

// PasswordResetTTL bounds the validity of a reset link
const PasswordResetTTL = time.Hour

// LoginResult result of login operation
type LoginResult struct {
	User   *models.User
	Tokens *auth.TokenPair
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int
}

// AuthService interface for authentication operations
type AuthService interface {
	// Login authenticates user with email and password
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// RefreshTokens rotates the pair, the previous refresh token stops working
	RefreshTokens(ctx context.Context, refreshToken string) (*LoginResult, error)

	ValidateAccessToken(token string) (*auth.Claims, error)

	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// RevokeRefreshToken invalidates refresh token (for logout)
	RevokeRefreshToken(ctx context.Context, userID uuid.UUID) error

	// Impersonate lets an owner or admin act as another user of the tenant
	Impersonate(ctx context.Context, actor *auth.Claims, targetID uuid.UUID) (*LoginResult, error)

	// StopImpersonation returns a normal session for the impersonator
	StopImpersonation(ctx context.Context, actor *auth.Claims) (*LoginResult, error)

	// ForgotPassword mails a reset link; unknown emails succeed silently
	ForgotPassword(ctx context.Context, email string) error

	ResetPassword(ctx context.Context, token, password string) error
}
