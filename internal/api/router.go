package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facewatch/internal/api/handlers"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/auth"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
)

type RouterConfig struct {
	APIKey     string
	Store      storage.Store
	Images     storage.ImageStore
	Feed       *notify.Feed
	Hub        *ws.Hub
	ConfigPath string
	// Recognizer is nil when the models could not be loaded; enrollment
	// endpoints then answer 503.
	Recognizer vision.Recognizer
	// NATS is checked by /readyz when set.
	NATS handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig()))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Store, cfg.Images, cfg.NATS)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	keyAuth := auth.APIKeyMiddleware(cfg.APIKey)

	imageH := handlers.NewImageHandler(cfg.Images)
	r.GET("/images/:name", keyAuth, imageH.Serve)

	api := r.Group("/api")
	api.Use(keyAuth)

	api.GET("/ws", cfg.Hub.HandleWS)

	stats := handlers.NewStatsCache(cfg.Store)
	api.GET("/stats", handlers.NewStatsHandler(stats).Get)

	personH := handlers.NewPersonHandler(cfg.Store, cfg.Images, cfg.Recognizer, stats)
	api.GET("/persons", personH.List)
	api.POST("/persons", personH.Create)
	api.GET("/person/:id", personH.Get)
	api.PUT("/person/:id", personH.Update)
	api.DELETE("/person/:id", personH.Delete)

	visitH := handlers.NewVisitHandler(cfg.Store)
	api.GET("/visits", visitH.List)

	unknownH := handlers.NewUnknownHandler(cfg.Store, cfg.Images, cfg.Recognizer, stats)
	api.GET("/unknown", unknownH.List)
	api.POST("/unknown/:id/identify", unknownH.Identify)

	configH := handlers.NewConfigHandler(cfg.ConfigPath)
	api.GET("/config", configH.Get)
	api.POST("/config", configH.Save)

	notifH := handlers.NewNotificationHandler(cfg.Feed)
	api.GET("/notifications", notifH.List)
	api.DELETE("/notifications", notifH.Clear)

	api.POST("/upload", imageH.Upload)

	return r
}

func corsConfig() cors.Config {
	c := cors.DefaultConfig()
	c.AllowAllOrigins = true
	c.AddAllowHeaders("X-API-Key")
	return c
}
