package api

import (
	"net/http"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadQueue lists uploads waiting for moderator review, oldest first.
func (a *API) UploadQueue(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	if !user.IsModerator() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":     "You don't have permission to do this",
			"requestID": requestID,
		})
		return
	}

	uploads, err := a.Uploads.PendingApproval()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list approval queue", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": uploads,
	})
}
