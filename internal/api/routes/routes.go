package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlix/backend/internal/api/handlers"
	"github.com/finlix/backend/internal/api/middleware"
	"github.com/finlix/backend/internal/policy"
)

type Deps struct {
	Guard   middleware.Guard
	Users   *handlers.UserHandler
	Profile *handlers.ProfileHandler
	Loans   *handlers.LoanHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "finlix is ok")
	})

	handle := func(method, path string, a policy.Action, h gin.HandlerFunc) {
		chain := append(d.Guard.For(a), h)
		r.Handle(method, path, chain...)
	}

	// users
	handle(http.MethodPost, "/users", policy.ActionRegisterUser, d.Users.Register)
	handle(http.MethodGet, "/users/:email/role", policy.ActionGetUserRole, d.Users.GetRole)
	handle(http.MethodGet, "/users", policy.ActionListUsers, d.Users.List)
	handle(http.MethodPatch, "/users/:id/role", policy.ActionSetUserRole, d.Users.SetRole)
	handle(http.MethodPatch, "/users/:id/suspend", policy.ActionSuspendUser, d.Users.Suspend)
	handle(http.MethodPatch, "/users/:id/approve", policy.ActionApproveUser, d.Users.Approve)
	handle(http.MethodGet, "/users/manager-stats", policy.ActionUserStats, d.Users.Stats)

	// profile
	handle(http.MethodGet, "/profile", policy.ActionGetProfile, d.Profile.Me)
	handle(http.MethodPut, "/profile", policy.ActionUpdateProfile, d.Profile.Update)
	handle(http.MethodPost, "/profile/photo", policy.ActionUploadPhoto, d.Profile.UploadPhoto)

	// loans: borrower self-service
	handle(http.MethodGet, "/loans", policy.ActionListOwnLoans, d.Loans.ListOwn)
	handle(http.MethodPost, "/loans", policy.ActionCreateLoan, d.Loans.Create)
	handle(http.MethodPatch, "/loans/:id", policy.ActionOwnerUpdateLoan, d.Loans.OwnerUpdate)
	handle(http.MethodDelete, "/loans/:id", policy.ActionOwnerDeleteLoan, d.Loans.OwnerDelete)

	// loans: admin
	handle(http.MethodGet, "/loans/user/:email", policy.ActionListLoansByUser, d.Loans.ListByUser)
	handle(http.MethodGet, "/loans/admin", policy.ActionAdminListLoans, d.Loans.ListAll)
	handle(http.MethodGet, "/loans/applications", policy.ActionListApplication, d.Loans.ListApplications)
	handle(http.MethodPatch, "/loans/:id/status/admin", policy.ActionAdminSetStatus, d.Loans.AdminSetStatus)
	handle(http.MethodPatch, "/loans/:id/show-on-home", policy.ActionShowOnHome, d.Loans.SetShowOnHome)
	handle(http.MethodDelete, "/loans/:id/admin", policy.ActionAdminDeleteLoan, d.Loans.AdminDelete)

	// loans: manager
	handle(http.MethodPut, "/loans/:id", policy.ActionManagerUpdate, d.Loans.ManagerUpdate)
	handle(http.MethodGet, "/loans/manager", policy.ActionManagerList, d.Loans.ListAll)
	handle(http.MethodGet, "/loans/pending", policy.ActionListPending, d.Loans.ListPending)
	handle(http.MethodGet, "/loans/approved", policy.ActionListApproved, d.Loans.ListApproved)
	handle(http.MethodPatch, "/loans/:id/status", policy.ActionManagerStatus, d.Loans.ManagerSetStatus)
}
