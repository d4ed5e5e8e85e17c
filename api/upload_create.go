package api

import (
	"net/http"

	"spinarchive/archive-api/model"
	"spinarchive/archive-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type uploadCreateOpts struct {
	FileName string `json:"file_name"`
	FileExt  string `json:"file_ext"`
	FileSize int64  `json:"file_size"`
	MD5Hash  string `json:"md5_hash"`
}

// UploadCreate reserves a Pending upload and answers with a signed PUT URL
// the client pushes the file bytes to. No file data touches this server.
func (a *API) UploadCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	var data uploadCreateOpts
	if err := c.BindJSON(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Malformed or invalid JSON request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.UploadValidator(data.FileName, data.FileExt, data.FileSize); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	upload, err := a.Orchestrator.Create(user, data.FileName, data.FileExt, data.FileSize, data.MD5Hash)
	if err != nil {
		abortServiceErr(c, requestID, err)
		return
	}

	url, err := a.S3.PresignPut(
		c.Request.Context(),
		viper.GetString("aws.upload_folder"),
		upload.FileID+"."+upload.FileExt,
		viper.GetDuration("upload.presign_expiry"),
	)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to presign upload URL",
			zap.String("file_id", upload.FileID),
			zap.Error(err),
		)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":  upload.FileID,
		"url": url,
	})
}
