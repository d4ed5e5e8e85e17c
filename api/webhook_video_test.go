package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"spinarchive/archive-api/internal/encoder"
	"spinarchive/archive-api/internal/quota"
	"spinarchive/archive-api/internal/service"
	"spinarchive/archive-api/internal/store"
	"spinarchive/archive-api/middleware"
	"spinarchive/archive-api/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newWebhookTestAPI(t *testing.T) (*API, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(model.User{}, model.Upload{}, model.AuditLog{}))

	uploads := store.NewUploadStore(database)

	a := &API{
		DB:       database,
		Uploads:  uploads,
		Audits:   store.NewAuditStore(database),
		Callback: encoder.KeyParamAuthenticator{},
	}
	a.Orchestrator = service.NewOrchestrator(
		uploads,
		a.Audits,
		quota.NewTracker(uploads, true),
		nil,
		nil,
	)

	router := gin.New()
	router.Use(middleware.NewRequestIDMiddleware())
	router.POST("/webhooks/video", a.VideoWebhook)
	a.Router = router

	return a, database
}

func postWebhook(a *API, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	return w
}

func TestVideoWebhook(t *testing.T) {
	a, db := newWebhookTestAPI(t)

	up := &model.Upload{
		Status:      model.StatusProcessing,
		FileID:      "abc123",
		EncodingKey: "corr-key",
	}
	require.NoError(t, db.Create(up).Error)

	w := postWebhook(a, "/webhooks/video?key=corr-key", `{"id": 55, "event": "job.completed"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var got model.Upload
	require.NoError(t, db.First(&got, up.ID).Error)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestVideoWebhookRejections(t *testing.T) {
	a, db := newWebhookTestAPI(t)

	up := &model.Upload{
		Status:      model.StatusProcessing,
		FileID:      "abc123",
		EncodingKey: "corr-key",
	}
	require.NoError(t, db.Create(up).Error)

	// No key
	w := postWebhook(a, "/webhooks/video", `{"event": "job.completed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "requestID")

	// Unknown key
	w = postWebhook(a, "/webhooks/video?key=wrong", `{"event": "job.completed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bad body
	w = postWebhook(a, "/webhooks/video?key=corr-key", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing above moved the upload
	var got model.Upload
	require.NoError(t, db.First(&got, up.ID).Error)
	assert.Equal(t, model.StatusProcessing, got.Status)
}
