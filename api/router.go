// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"spinarchive/archive-api/aws"
	"spinarchive/archive-api/db"
	"spinarchive/archive-api/internal/encoder"
	"spinarchive/archive-api/internal/notifier"
	"spinarchive/archive-api/internal/quota"
	"spinarchive/archive-api/internal/service"
	"spinarchive/archive-api/internal/store"
	"spinarchive/archive-api/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var cacheStore = persist.NewMemoryStore(time.Minute)

type API struct {
	DB           *gorm.DB
	Router       *gin.Engine
	S3           *aws.S3Client
	Uploads      *store.UploadStore
	Audits       *store.AuditStore
	Orchestrator *service.Orchestrator
	Notifier     *notifier.Notifier
	Callback     encoder.CallbackAuthenticator
}

func NewRouter() (*API, error) {
	a := &API{
		Callback: encoder.KeyParamAuthenticator{},
	}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = database

	makeLogger()

	a.Uploads = store.NewUploadStore(database)
	a.Audits = store.NewAuditStore(database)

	a.Notifier = notifier.New()
	a.Notifier.Start()

	a.Orchestrator = service.NewOrchestrator(
		a.Uploads,
		a.Audits,
		quota.NewTracker(a.Uploads, viper.GetBool("quota.count_deleted")),
		encoder.NewClient(),
		a.Notifier,
	)

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{fmt.Sprintf("https://%s", viper.GetString("host.domain"))},
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewJWTMiddleware(database)
	limited := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: viper.GetInt("rate_limit.rps"),
		Burst:             viper.GetInt("rate_limit.burst"),
	})

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	uploads := main.Group("/uploads")
	{
		// GET /api/uploads 		-> Pages through published uploads
		uploads.GET("", cacheFor(30), a.UploadIndex)

		// GET /api/uploads/queue 	-> Lists uploads waiting for approval
		uploads.GET("/queue", jwt, a.UploadQueue)

		// GET /api/uploads/:id 	-> Returns one upload with related ones
		uploads.GET("/:id", a.UploadFetch)

		// POST /api/uploads 		-> Reserves an upload and returns a signed PUT URL
		uploads.POST("", jwt, limited, a.UploadCreate)

		// POST /api/uploads/:id/finalize -> Moves an upload into processing
		uploads.POST("/:id/finalize", jwt, limited, a.UploadFinalize)

		// POST /api/uploads/:id 	-> Edits the metadata of an upload
		uploads.POST("/:id", jwt, limited, a.UploadUpdate)

		// POST /api/uploads/:id/delete	-> Retires an upload (moderators)
		uploads.POST("/:id/delete", jwt, a.UploadDelete)

		// POST /api/uploads/:id/approve -> Publishes a queued upload (moderators)
		uploads.POST("/:id/approve", jwt, a.UploadApprove)
	}

	audits := main.Group("/audits", jwt)
	{
		// GET /api/audits 		-> Pages through the upload audit log
		audits.GET("", a.AuditIndex)
	}

	// POST /webhooks/video?key=	-> Encoder callback, authenticated by
	// the correlation key alone
	router.POST("/webhooks/video", a.VideoWebhook)

	s3, err := aws.NewS3()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}
	a.S3 = s3

	service.WatchStuckUploads(
		viper.GetDuration("stuck.check_interval"),
		viper.GetDuration("stuck.max_processing_age"),
		a.Uploads,
	)

	return a, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(cacheStore, time.Second*time.Duration(sec))
}
