package api

import (
	"net/http"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
)

// UploadApprove publishes an upload from the moderation queue.
func (a *API) UploadApprove(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	upload, err := a.Orchestrator.Approve(user, c.Param("id"))
	if err != nil {
		abortServiceErr(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}
