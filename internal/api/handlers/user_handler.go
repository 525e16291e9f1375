package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/finlix/backend/internal/api/middleware"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/services"
	"github.com/finlix/backend/internal/utils"
)

// RegistrationMode selects how POST /users treats an existing record.
type RegistrationMode string

const (
	// RegisterCreate inserts new borrowers and leaves existing records untouched.
	RegisterCreate RegistrationMode = "create"
	// RegisterUpsert overwrites name, photo, role and status on every call.
	RegisterUpsert RegistrationMode = "upsert"
)

type UserHandler struct {
	svc  services.UserService
	mode RegistrationMode
}

func NewUserHandler(svc services.UserService, mode RegistrationMode) *UserHandler {
	if mode != RegisterUpsert {
		mode = RegisterCreate
	}
	return &UserHandler{svc: svc, mode: mode}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Role     string `json:"role"`
}

type RegisterResponse struct {
	Created bool         `json:"created"`
	User    *models.User `json:"user"`
}

func (h *UserHandler) Register(c *gin.Context) {
	const op = "UserHandler.Register"

	var req RegisterRequest
	if !bindBody(c, op, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "Email is required", nil))
		return
	}

	// set only when the route is gated; then callers may register themselves only
	if actor, ok := middleware.ActorEmail(c); ok && actor != req.Email {
		writeError(c, utils.E(utils.CodeForbidden, op, "Forbidden: cannot register other users", nil))
		return
	}

	in := services.UserInput{Name: req.Name, PhotoURL: req.PhotoURL, Role: models.Role(req.Role)}

	var (
		u       *models.User
		created bool
		err     error
	)
	if h.mode == RegisterUpsert {
		u, created, err = h.svc.Upsert(c.Request.Context(), req.Email, in)
	} else {
		u, created, err = h.svc.CreateIfAbsent(c.Request.Context(), req.Email, in)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, RegisterResponse{Created: created, User: u})
}

func (h *UserHandler) GetRole(c *gin.Context) {
	role, err := h.svc.GetRole(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandler) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if !bindBody(c, "UserHandler.SetRole", &req) {
		return
	}
	if _, err := h.svc.SetRole(c.Request.Context(), c.Param("id"), models.Role(req.Role)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User role updated successfully"})
}

func (h *UserHandler) Suspend(c *gin.Context) {
	if _, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), models.UserSuspended); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User suspended successfully"})
}

func (h *UserHandler) Approve(c *gin.Context) {
	if _, err := h.svc.SetStatus(c.Request.Context(), c.Param("id"), models.UserApproved); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User approved successfully"})
}

func (h *UserHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
