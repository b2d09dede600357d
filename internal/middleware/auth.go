package middleware

import (
	"net/http"
	"strings"

	"crm-gin/internal/auth"
	"crm-gin/internal/dto"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ===========================================================================
// Auth Middleware
// Protects routes with a JWT read from the access_token cookie or a
// bearer header
// ===========================================================================

const (
	ContextKeyUserID         = "user_id"
	ContextKeyTenantID       = "tenant_id"
	ContextKeyUserRole       = "user_role"
	ContextKeyImpersonatorID = "impersonator_id"
	ContextKeyClaims         = "claims"
	// ContextKeyBearer is set when the token came from the Authorization header
	ContextKeyBearer = "auth_bearer"

	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// TokenValidator checks an access token and returns its claims
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string
		bearer := false

		if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
			tokenString = cookie
		}
		if tokenString == "" {
			parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = strings.TrimSpace(parts[1])
				bearer = true
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentification requise"))
			return
		}

		claims, err := validator.ValidateAccessToken(tokenString)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("TOKEN_EXPIRED", "Session expirée"))
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.Error("INVALID_TOKEN", "Jeton invalide"))
			}
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyTenantID, claims.TenantID)
		c.Set(ContextKeyUserRole, claims.Role)
		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyBearer, bearer)
		if claims.ImpersonatorID != nil {
			c.Set(ContextKeyImpersonatorID, *claims.ImpersonatorID)
		}

		c.Next()
	}
}

// RequireRole lets only the given roles through
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Accès refusé"))
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Droits insuffisants"))
	}
}

// RequireAdmin admits admins and owners
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleOwner)
}

// ===========================================================================
// Context helpers
// ===========================================================================

func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(ContextKeyTenantID)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

func GetUserRole(c *gin.Context) (models.UserRole, bool) {
	role, exists := c.Get(ContextKeyUserRole)
	if !exists {
		return "", false
	}
	return role.(models.UserRole), true
}

// GetImpersonatorID returns the admin behind an impersonated session
func GetImpersonatorID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(ContextKeyImpersonatorID)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	return claims.(*auth.Claims), true
}
