package api

import (
	"net/http"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
)

// UploadDelete retires an upload. Moderator only; the row itself is kept
// forever with a terminal status.
func (a *API) UploadDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	upload, err := a.Orchestrator.Delete(user, c.Param("id"))
	if err != nil {
		abortServiceErr(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}
