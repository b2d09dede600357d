package handlers

import (
	"net/http"

	"crm-gin/internal/dto"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/middleware"
	"crm-gin/internal/models"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Auth Handler
// Login, refresh, me, logout, impersonation and password reset
// ===========================================================================

const refreshCookieMaxAge = 7 * 24 * 3600

type AuthHandler struct {
	authService   services.AuthService
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthHandler(authService services.AuthService, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// UserResponse user data without secrets
type UserResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	TenantID       string  `json:"tenant_id"`
	ImpersonatedBy *string `json:"impersonated_by,omitempty"`
}

func toUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:       u.ID.String(),
		Email:    u.Email,
		Name:     u.Name,
		Role:     string(u.Role),
		TenantID: u.TenantID.String(),
	}
}

// ===========================================================================
// Handlers
// ===========================================================================

// Login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, dto.Error("INVALID_CREDENTIALS", "Email ou mot de passe incorrect"))
			return
		}
		respondError(c, h.logger, err)
		return
	}

	h.writeSession(c, result)
}

// Refresh rotates the token pair. The refresh token comes from the cookie
// or, for API clients, from the body.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(middleware.RefreshTokenCookie)
	if refreshToken == "" {
		var req dto.RefreshRequest
		_ = c.ShouldBindJSON(&req)
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, dto.Error("NO_TOKEN", "Jeton de rafraîchissement absent"))
		return
	}

	result, err := h.authService.RefreshTokens(c.Request.Context(), refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrTokenExpired) || apperrors.Is(err, apperrors.ErrInvalidToken) {
			h.clearCookies(c)
			c.JSON(http.StatusUnauthorized, dto.Error(apperrors.ErrorCode(err), "Session expirée, veuillez vous reconnecter"))
			return
		}
		respondError(c, h.logger, err)
		return
	}

	h.writeSession(c, result)
}

// Me
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentification requise"))
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := toUserResponse(user)
	if claims.ImpersonatorID != nil {
		id := claims.ImpersonatorID.String()
		resp.ImpersonatedBy = &id
	}
	c.JSON(http.StatusOK, dto.Success(resp))
}

// Logout revokes the refresh token and clears cookies
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if claims, ok := middleware.GetClaims(c); ok && !claims.IsImpersonated() {
		if err := h.authService.RevokeRefreshToken(c.Request.Context(), claims.UserID); err != nil {
			h.logger.Warn("revoke refresh token failed", zap.Error(err))
		}
	}

	h.clearCookies(c)
	c.JSON(http.StatusOK, dto.Success(dto.OKResponse{OK: true}))
}

// Impersonate
// POST /api/auth/impersonate/:userId
func (h *AuthHandler) Impersonate(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentification requise"))
		return
	}
	targetID, ok := paramID(c, "userId")
	if !ok {
		return
	}

	result, err := h.authService.Impersonate(c.Request.Context(), claims, targetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("impersonation started",
		zap.String("actor_id", claims.UserID.String()),
		zap.String("target_id", targetID.String()),
	)
	h.writeSession(c, result)
}

// StopImpersonation
// POST /api/auth/impersonate/stop
func (h *AuthHandler) StopImpersonation(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentification requise"))
		return
	}

	result, err := h.authService.StopImpersonation(c.Request.Context(), claims)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.writeSession(c, result)
}

// ForgotPassword always answers OK so emails cannot be probed
// POST /api/auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.logger.Warn("forgot password failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, dto.Success(dto.OKResponse{OK: true}))
}

// ResetPassword
// POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.Success(dto.OKResponse{OK: true}))
}

// ===========================================================================
// Cookies
// ===========================================================================

func (h *AuthHandler) writeSession(c *gin.Context, result *services.LoginResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, result.Tokens.AccessToken, result.ExpiresIn, "/", "", h.secureCookies, true)
	if result.Tokens.RefreshToken != "" {
		c.SetCookie(middleware.RefreshTokenCookie, result.Tokens.RefreshToken, refreshCookieMaxAge, "/", "", h.secureCookies, true)
	}

	csrfToken, err := middleware.GenerateCSRFToken()
	if err != nil {
		h.logger.Error("generate csrf token failed", zap.Error(err))
	} else {
		middleware.SetCSRFCookie(c, csrfToken, h.secureCookies)
	}

	c.JSON(http.StatusOK, dto.Success(dto.LoginResponse{
		User:         toUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
	}))
}

func (h *AuthHandler) clearCookies(c *gin.Context) {
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.CSRFCookieName, "", -1, "/", "", h.secureCookies, false)
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/password/forgot", h.ForgotPassword)
		auth.POST("/password/reset", h.ResetPassword)

		auth.GET("/me", authMiddleware, h.Me)
		auth.POST("/logout", authMiddleware, h.Logout)
		auth.POST("/impersonate/stop", authMiddleware, h.StopImpersonation)
		auth.POST("/impersonate/:userId", authMiddleware, middleware.RequireAdmin(), h.Impersonate)
	}
}
