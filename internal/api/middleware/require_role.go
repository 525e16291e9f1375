package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/internal/identity"
	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/policy"
	"github.com/finlix/backend/internal/utils"
)

// RoleLookup resolves the stored role of a verified caller.
type RoleLookup interface {
	ActorRole(ctx context.Context, email string) (models.Role, error)
}

// RequireRole admits only callers whose directory record holds role.
// It must run after Authenticate.
func RequireRole(roles RoleLookup, role models.Role, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, ok := ActorEmail(c)
		if !ok {
			unauthorized(c)
			return
		}

		actual, err := roles.ActorRole(c.Request.Context(), email)
		if err == nil {
			err = policy.AuthorizeRoleGate(actual, role)
		}
		if err != nil {
			status := utils.HTTPStatus(err)
			msg := "Internal server error"
			if status == http.StatusForbidden {
				var ae *utils.AppError
				if errors.As(err, &ae) {
					msg = ae.Message
				}
			} else if log != nil {
				log.WithError(err).WithField("email", email).Error("role lookup failed")
			}
			c.AbortWithStatusJSON(status, apiError{Code: codeFor(status), Message: msg})
			return
		}

		c.Set(CtxRole, string(actual))
		c.Next()
	}
}

func codeFor(status int) utils.Code {
	if status == http.StatusForbidden {
		return utils.CodeForbidden
	}
	return utils.CodeInternal
}

// Guard turns route policy gates into gin middleware chains.
type Guard struct {
	Table    policy.Table
	Verifier identity.Verifier
	Roles    RoleLookup
	Logger   *logrus.Logger
}

// For returns the middleware enforcing the gate configured for a.
func (g Guard) For(a policy.Action) []gin.HandlerFunc {
	gate := g.Table.Gate(a)
	switch gate.Kind {
	case policy.GatePublic:
		return nil
	case policy.GateAuthenticated:
		return []gin.HandlerFunc{Authenticate(g.Verifier, g.Logger)}
	default:
		return []gin.HandlerFunc{
			Authenticate(g.Verifier, g.Logger),
			RequireRole(g.Roles, gate.Role, g.Logger),
		}
	}
}
