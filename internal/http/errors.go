package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-api/internal/service"
)

// writeError maps service errors onto status codes. Anything unrecognised is a
// persistence failure and answers 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, "Username already exists")
	case errors.Is(err, service.ErrNotFound):
		respondError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID(c),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		}).Errorf("request failed: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"statusCode": http.StatusInternalServerError,
			"message":    "Internal server error",
		})
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	})
}
