package api

import (
	"net/http"
	"time"

	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
)

type uploadMetadataOpts struct {
	Tags         string `json:"tags"`
	Source       string `json:"source"`
	Description  string `json:"description"`
	OriginalDate string `json:"original_date"`
}

// parseOriginalDate accepts an optional YYYY-MM-DD date.
func parseOriginalDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}

	return &t, true
}

// UploadFinalize marks the direct upload as done and hands the file over
// to the encoding pipeline.
func (a *API) UploadFinalize(c *gin.Context) {
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

	upload, err := a.Orchestrator.Finalize(user, fileID, data.Tags, data.Source, data.Description, originalDate)
	if err != nil {
		abortServiceErr(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}
