package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/finlix/backend/internal/identity"
	"github.com/finlix/backend/internal/utils"
)

// Context keys set by Authenticate.
const (
	CtxEmail   = "email"
	CtxSubject = "uid"
	CtxRole    = "role"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
		Code:    utils.CodeUnauthorized,
		Message: "unauthorized access",
	})
}

// Authenticate verifies the bearer token and stores the caller's email.
func Authenticate(v identity.Verifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}

		id, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("path", c.FullPath()).Debug("token rejected")
			}
			unauthorized(c)
			return
		}

		c.Set(CtxSubject, id.Subject)
		c.Set(CtxEmail, id.Email)
		c.Next()
	}
}

// ActorEmail returns the verified caller email, if any.
func ActorEmail(c *gin.Context) (string, bool) {
	if v, ok := c.Get(CtxEmail); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
