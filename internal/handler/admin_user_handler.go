package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/response"
	"github.com/nefziamine/skill-evaluator/internal/service"
	"github.com/nefziamine/skill-evaluator/internal/validator"
	"github.com/rs/zerolog"
)

// AdminUserHandler handles account management for admins.
type AdminUserHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAdminUserHandler creates a new AdminUserHandler.
func NewAdminUserHandler(authService *service.AuthService, log zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		authService: authService,
		log:         log.With().Str("component", "admin_user_handler").Logger(),
	}
}

// createUserRequest lets an admin pick the role, unlike public sign-up.
type createUserRequest struct {
	model.RegisterRequest
	Role model.Role `json:"role" binding:"required,oneof=ADMIN RECRUITER CANDIDATE"`
}

// ListUsers godoc
// GET /api/v1/admin/users?role=&page=&per_page=
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	role := model.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"role": "must be one of ADMIN RECRUITER CANDIDATE"})
		return
	}
	page, perPage := pageParams(c)

	users, total, err := h.authService.ListUsers(c.Request.Context(), role, page, perPage)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	response.SuccessWithPagination(c, http.StatusOK, users, response.NewPagination(page, perPage, total))
}

// CreateUser godoc
// POST /api/v1/admin/users
// Creates an account of any role.
func (h *AdminUserHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req.RegisterRequest, req.Role)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	h.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("User created by admin")
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}
