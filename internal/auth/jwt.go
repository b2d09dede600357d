package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"crm-gin/internal/config"
	"crm-gin/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ===========================================================================
// JWT Service
// Generate and validate JWT tokens for authentication
// ===========================================================================

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims custom JWT claims
type Claims struct {
	UserID    uuid.UUID       `json:"user_id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	TokenType string          `json:"token_type"`

	// ImpersonatorID is the admin acting as UserID, nil for a normal session
	ImpersonatorID *uuid.UUID `json:"impersonator_id,omitempty"`

	jwt.RegisteredClaims
}

func (c *Claims) IsImpersonated() bool {
	return c.ImpersonatorID != nil
}

// TokenPair access and refresh tokens. RefreshToken is empty for
// impersonation sessions, which cannot be refreshed.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type JWTService struct {
	secret                []byte
	accessDuration        time.Duration
	refreshDuration       time.Duration
	impersonationDuration time.Duration
	now                   func() time.Time
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	imp := cfg.ImpersonationDuration
	if imp == 0 {
		imp = time.Hour
	}
	return &JWTService{
		secret:                []byte(cfg.Secret),
		accessDuration:        cfg.AccessDuration,
		refreshDuration:       cfg.RefreshDuration,
		impersonationDuration: imp,
		now:                   time.Now,
	}
}

func (s *JWTService) AccessDuration() time.Duration {
	return s.accessDuration
}

func (s *JWTService) sign(user *models.User, tokenType string, exp time.Time, impersonator *uuid.UUID) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:         user.ID,
		TenantID:       user.TenantID,
		Email:          user.Email,
		Role:           user.Role,
		TokenType:      tokenType,
		ImpersonatorID: impersonator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
			// unique id so two pairs issued in the same second differ
			ID: uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GenerateTokenPair issues a normal access + refresh pair
func (s *JWTService) GenerateTokenPair(user *models.User) (*TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.accessDuration)

	access, err := s.sign(user, TokenAccess, accessExp, nil)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, TokenRefresh, now.Add(s.refreshDuration), nil)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

// GenerateImpersonationToken issues a short-lived access token for target
// that remembers who is impersonating.
func (s *JWTService) GenerateImpersonationToken(target *models.User, impersonatorID uuid.UUID) (*TokenPair, error) {
	exp := s.now().Add(s.impersonationDuration)
	access, err := s.sign(target, TokenAccess, exp, &impersonatorID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, ExpiresAt: exp}, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenAccess)
}

func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateType(tokenString, TokenRefresh)
}

func (s *JWTService) validateType(tokenString, tokenType string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ===========================================================================
// Opaque tokens
// ===========================================================================

// HashToken returns the SHA256 hex digest stored instead of a raw token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// NewOpaqueToken returns a random URL-safe token and its hash
func NewOpaqueToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}
