package api

import (
	"net/http"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
)

// UploadUpdate edits the user-facing metadata of an upload. Every actually
// changed field leaves an audit entry behind.
func (a *API) UploadUpdate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	fileID := c.Param("id")

	var data uploadMetadataOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	originalDate, ok := parseOriginalDate(data.OriginalDate)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "original_date must be formatted as YYYY-MM-DD",
			"requestID": requestID,
		})
		return
	}

	upload, err := a.Orchestrator.UpdateMetadata(user, fileID, data.Tags, data.Source, data.Description, originalDate)
	if err != nil {
		abortServiceErr(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}
