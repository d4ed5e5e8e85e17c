package api

import (
	"net/http"
	"strconv"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const auditPerPage = 50

// AuditIndex pages through the upload audit trail, newest first. Moderator
// only.
func (a *API) AuditIndex(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	if !user.IsModerator() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":     "You don't have permission to do this",
			"requestID": requestID,
		})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	entries, total, err := a.Audits.Page(page, auditPerPage)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to list audit log", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        entries,
		"page":        page,
		"page_size":   auditPerPage,
		"total_count": total,
	})
}
