package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/memento/internal/api/handlers"
	"github.com/your-org/memento/internal/api/ws"
	"github.com/your-org/memento/internal/auth"
	"github.com/your-org/memento/internal/queue"
	"github.com/your-org/memento/internal/recognition"
	"github.com/your-org/memento/internal/reconciler"
	"github.com/your-org/memento/internal/storage"
)

type RouterConfig struct {
	APIKey        string
	DB            *storage.PostgresStore
	MinIO         *storage.MinIOStore
	Producer      *queue.Producer
	Hub           *ws.Hub
	Recognition   *recognition.Service
	Reconciler    *reconciler.Reconciler
	WindowMinutes int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket sighting feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Events & memberships
	eventH := handlers.NewEventHandler(cfg.DB)
	v1.POST("/events", eventH.Create)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:eventId", eventH.Get)
	v1.POST("/events/:eventId/join", eventH.Join)
	v1.POST("/events/:eventId/leave", eventH.Leave)

	// Consents
	consentH := handlers.NewConsentHandler(cfg.DB)
	v1.GET("/events/:eventId/consents/:userId", consentH.Get)
	v1.PUT("/events/:eventId/consents/:userId", consentH.Update)
	v1.GET("/users/:userId/consents", consentH.ListForUser)

	// Profiles
	profileH := handlers.NewProfileHandler(cfg.DB, cfg.MinIO)
	v1.POST("/profiles", profileH.Create)
	v1.GET("/profiles/:userId", profileH.Get)
	v1.POST("/profiles/:userId/photo", profileH.UploadPhoto)

	// Recognition
	recogH := handlers.NewRecognitionHandler(cfg.Recognition)
	v1.POST("/recognition/identify", recogH.Identify)
	v1.POST("/recognition/register", recogH.Register)
	v1.DELETE("/recognition/faces/:userId", recogH.Deregister)
	v1.POST("/recognition/detect", recogH.Detect)
	v1.GET("/recognition/stats", recogH.Stats)

	// On-demand reconciliation
	reconcileH := handlers.NewReconcileHandler(cfg.Reconciler, cfg.WindowMinutes)
	v1.POST("/reconcile", reconcileH.Trigger)

	return r
}
