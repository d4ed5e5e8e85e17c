package api

import (
	"errors"
	"net/http"

	"spinarchive/archive-api/internal/store"
	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const relatedLimit = 6

// UploadFetch returns one upload with its related recommendations. Views
// are counted here. Related lookups are best-effort and never fail the
// response.
func (a *API) UploadFetch(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	upload, err := a.Uploads.ByFileID(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "Upload not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch upload", zap.Error(err))
		return
	}

	if upload.Status == model.StatusDeleted {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Upload not found",
			"requestID": requestID,
		})
		return
	}

	if err := a.Uploads.IncrementViews(upload.ID); err != nil {
		zap.L().Warn("Failed to increment view count",
			zap.String("file_id", upload.FileID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"upload":  upload,
		"related": a.Orchestrator.RecommendRelated(upload, relatedLimit),
	})
}
