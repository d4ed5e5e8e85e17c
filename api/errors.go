package api

import (
	"errors"
	"net/http"

	"spinarchive/archive-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// abortServiceErr translates the service error taxonomy into an HTTP
// response. Anything outside the taxonomy is treated as internal.
func abortServiceErr(c *gin.Context, requestID string, err error) {
	var code int
	var msg string

	switch {
	case errors.Is(err, service.ErrNotFound):
		code, msg = http.StatusNotFound, "Upload not found"
	case errors.Is(err, service.ErrAlreadyExists):
		code, msg = http.StatusConflict, "Upload already exists"
	case errors.Is(err, service.ErrWrongState):
		code, msg = http.StatusConflict, "Upload is not in a state that allows this operation"
	case errors.Is(err, service.ErrQuotaExceeded):
		code, msg = http.StatusTooManyRequests, "Daily upload limit reached"
	case errors.Is(err, service.ErrForbidden):
		code, msg = http.StatusForbidden, "You don't have permission to do this"
	default:
		code, msg = http.StatusInternalServerError, "Internal server error"

		zap.L().Error("Upload operation failed",
			zap.String("requestID", requestID),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(code, gin.H{
		"error":     msg,
		"requestID": requestID,
	})
}
