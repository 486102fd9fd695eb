package router

import (
	"net/http"
	"time"

	"github.com/elivate/elivate-backend/internal/config"
	"github.com/elivate/elivate-backend/internal/handler"
	"github.com/elivate/elivate-backend/internal/middleware"
	"github.com/elivate/elivate-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// catalogMaxAge is how long clients may cache the rules catalog.
const catalogMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog     *handler.CatalogHandler
	ExamSession *handler.ExamSessionHandler
	Attempt     *handler.AttemptHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	verifier middleware.TokenVerifier,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the request logger can pick it up.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Compress())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Catalog (Public, Cacheable) ────────────────────────────────
	catalog := router.Group("/api/v1/programs")
	catalog.Use(middleware.CacheControl(catalogMaxAge))
	{
		catalog.GET("", handlers.Catalog.ListPrograms)
		catalog.GET("/:program/rules", handlers.Catalog.GetRules)
	}

	// ─── 2. Learner Group (JWT + Rate Limited) ─────────────────────────
	learnerAPI := router.Group("/api/v1")
	learnerAPI.Use(
		middleware.RequireLearner(verifier),
		limiter.Middleware(),
		middleware.NoStore(),
	)
	{
		learnerAPI.POST("/exam-sessions", handlers.ExamSession.Create)

		current := learnerAPI.Group("/exam-sessions/current")
		{
			current.GET("", handlers.ExamSession.GetCurrent)
			current.DELETE("", handlers.ExamSession.Abandon)
			current.POST("/start", handlers.ExamSession.Start)
			current.PUT("/answers/:question_id", handlers.ExamSession.SelectAnswer)
			current.POST("/review/:question_id", handlers.ExamSession.ToggleReview)
			current.POST("/navigate", handlers.ExamSession.Navigate)
			current.GET("/summary", handlers.ExamSession.GetSummary)
			current.POST("/submit", handlers.ExamSession.Submit)
			current.GET("/results", handlers.ExamSession.GetResults)
		}

		learnerAPI.GET("/attempts", handlers.Attempt.ListAttempts)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWS(verifier))
	{
		ws.GET("/exam-sessions/current/stream", handlers.WS.Stream)
	}

	return router
}
