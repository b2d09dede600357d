package handlers

import (
	"net/http"

	"crm-gin/internal/dto"
	"crm-gin/internal/middleware"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// User Handler
// Staff accounts of the tenant
// ===========================================================================

type UserHandler struct {
	users  services.UserService
	logger *zap.Logger
}

func NewUserHandler(users services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	var req dto.PaginationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.SetDefaults()

	users, total, err := h.users.List(c.Request.Context(), tenant, repositories.FindOptions{
		Offset:   req.Offset(),
		Limit:    req.Limit,
		OrderBy:  "name",
		OrderDir: "asc",
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out := make([]*UserResponse, len(users))
	for i := range users {
		out[i] = toUserResponse(&users[i])
	}
	c.JSON(http.StatusOK, dto.SuccessWithMeta(out, dto.NewMeta(req.Page, req.Limit, total)))
}

// Create invites a user by email
// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	role := models.RoleMember
	if req.Role != "" {
		role = models.UserRole(req.Role)
	}

	user, err := h.users.Create(c.Request.Context(), tenant, userID, services.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
		Role:  role,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.Success(toUserResponse(user)))
}

func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	{
		users.GET("", h.List)
		users.POST("", middleware.RequireAdmin(), h.Create)
	}
}
