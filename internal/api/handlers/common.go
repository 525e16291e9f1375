package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlix/backend/internal/api/middleware"
	"github.com/finlix/backend/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// MessageResponse is the body of writes that return no record.
type MessageResponse struct {
	Message string `json:"message"`
}

// InsertResponse is the body of create calls.
type InsertResponse struct {
	Message    string `json:"message,omitempty"`
	InsertedID string `json:"insertedId"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Code == utils.CodeInternal && msg == "" {
			msg = http.StatusText(status)
		}
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: msg,
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func requireEmail(c *gin.Context) (string, bool) {
	if email, ok := middleware.ActorEmail(c); ok {
		return email, true
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized access", nil))
	return "", false
}

// bindBody decodes a JSON object body. An empty body is an empty object.
func bindBody(c *gin.Context, op string, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return false
	}
	return true
}
