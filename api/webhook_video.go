package api

import (
	"net/http"

	"spinarchive/archive-api/internal/encoder"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VideoWebhook receives asynchronous callbacks from the encoding provider.
// The correlation key, not the provider's job id, identifies the upload.
// Everything that goes wrong is a 400: a missing key, an unknown key or a
// callback for an upload that already left Processing (which is how
// duplicate deliveries are absorbed).
func (a *API) VideoWebhook(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	key, err := a.Callback.Authenticate(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Missing or invalid callback key",
			"requestID": requestID,
		})
		return
	}

	var job encoder.Job
	if err := c.BindJSON(&job); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	upload, err := a.Orchestrator.AcceptWebhook(key, &job)
	if err != nil {
		zap.L().Warn("Rejected video webhook",
			zap.String("requestID", requestID),
			zap.String("event", job.Event),
			zap.Error(err),
		)

		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid callback",
			"requestID": requestID,
		})
		return
	}

	zap.L().Info("Upload finished encoding",
		zap.String("file_id", upload.FileID),
		zap.String("status", upload.Status.String()),
	)

	c.Status(http.StatusOK)
}
