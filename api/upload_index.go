package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const indexPerPage = 25

// UploadIndex pages through published uploads, optionally filtered by tags.
func (a *API) UploadIndex(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	uploads, total, err := a.Uploads.CompletedIndex(page, indexPerPage, c.Query("tags"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list uploads", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        uploads,
		"page":        page,
		"page_size":   indexPerPage,
		"total_count": total,
	})
}
