package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlix/backend/internal/api/middleware"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/services"
	"github.com/finlix/backend/internal/utils"
)

type LoanHandler struct {
	svc   services.LoanService
	roles middleware.RoleLookup
}

func NewLoanHandler(svc services.LoanService, roles middleware.RoleLookup) *LoanHandler {
	return &LoanHandler{svc: svc, roles: roles}
}

func (h *LoanHandler) ListOwn(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	loans, err := h.svc.ListForActor(c.Request.Context(), email, c.Query("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

// Create files a loan. Managers create catalogue loans with createdBy set;
// everyone else files a Pending application.
func (h *LoanHandler) Create(c *gin.Context) {
	const op = "LoanHandler.Create"

	email, ok := requireEmail(c)
	if !ok {
		return
	}

	var body map[string]any
	if !bindBody(c, op, &body) {
		return
	}

	role, err := h.roles.ActorRole(c.Request.Context(), email)
	if err != nil && !utils.IsCode(err, utils.CodeForbidden) {
		writeError(c, err)
		return
	}

	if role == models.RoleManager {
		l, err := h.svc.CreateForManager(c.Request.Context(), email, body)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, InsertResponse{Message: "Loan created successfully", InsertedID: l.ID})
		return
	}

	l, err := h.svc.CreateForBorrower(c.Request.Context(), email, body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, InsertResponse{InsertedID: l.ID})
}

type StatusRequest struct {
	Status string `json:"status"`
}

func (h *LoanHandler) OwnerUpdate(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !bindBody(c, "LoanHandler.OwnerUpdate", &req) {
		return
	}
	if err := h.svc.OwnerUpdateStatus(c.Request.Context(), email, c.Param("id"), models.LoanStatus(req.Status)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan status updated successfully"})
}

func (h *LoanHandler) OwnerDelete(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	if err := h.svc.OwnerDelete(c.Request.Context(), email, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan deleted successfully"})
}

func (h *LoanHandler) ListByUser(c *gin.Context) {
	loans, err := h.svc.ListForOwner(c.Request.Context(), c.Param("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LoanHandler) ListAll(c *gin.Context) {
	loans, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LoanHandler) ListApplications(c *gin.Context) {
	h.listByStatus(c, models.LoanPending, models.LoanReviewing)
}

func (h *LoanHandler) ListPending(c *gin.Context) {
	h.listByStatus(c, models.LoanPending)
}

func (h *LoanHandler) ListApproved(c *gin.Context) {
	h.listByStatus(c, models.LoanApproved)
}

func (h *LoanHandler) listByStatus(c *gin.Context, statuses ...models.LoanStatus) {
	loans, err := h.svc.ListByStatusIn(c.Request.Context(), statuses...)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

// AdminSetStatus and ManagerSetStatus differ only in the accepted value set.
func (h *LoanHandler) AdminSetStatus(c *gin.Context) {
	h.setStatus(c, models.RoleAdmin)
}

func (h *LoanHandler) ManagerSetStatus(c *gin.Context) {
	h.setStatus(c, models.RoleManager)
}

func (h *LoanHandler) setStatus(c *gin.Context, by models.Role) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !bindBody(c, "LoanHandler.SetStatus", &req) {
		return
	}
	if err := h.svc.SetStatus(c.Request.Context(), email, c.Param("id"), models.LoanStatus(req.Status), by); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan status updated successfully"})
}

type ShowOnHomeRequest struct {
	ShowOnHome *bool `json:"showOnHome"`
}

func (h *LoanHandler) SetShowOnHome(c *gin.Context) {
	const op = "LoanHandler.SetShowOnHome"

	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var req ShowOnHomeRequest
	if !bindBody(c, op, &req) {
		return
	}
	if req.ShowOnHome == nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "showOnHome is required", nil))
		return
	}
	if err := h.svc.SetShowOnHome(c.Request.Context(), email, c.Param("id"), *req.ShowOnHome); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan show on home updated successfully"})
}

func (h *LoanHandler) AdminDelete(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	if err := h.svc.AdminDelete(c.Request.Context(), email, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan deleted successfully"})
}

func (h *LoanHandler) ManagerUpdate(c *gin.Context) {
	const op = "LoanHandler.ManagerUpdate"

	email, ok := requireEmail(c)
	if !ok {
		return
	}
	var body map[string]any
	if !bindBody(c, op, &body) {
		return
	}
	if err := h.svc.ManagerUpdate(c.Request.Context(), email, c.Param("id"), models.LoanPatch(body)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Loan updated successfully"})
}
