// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/shreyansh2912/prashnly-backend/internal/config"
	"github.com/shreyansh2912/prashnly-backend/internal/embedding"
	"github.com/shreyansh2912/prashnly-backend/internal/generation"
	"github.com/shreyansh2912/prashnly-backend/internal/http/handlers"
	"github.com/shreyansh2912/prashnly-backend/internal/http/middleware"
	"github.com/shreyansh2912/prashnly-backend/internal/notify"
	"github.com/shreyansh2912/prashnly-backend/internal/quota"
	"github.com/shreyansh2912/prashnly-backend/internal/retrieval"
	"github.com/shreyansh2912/prashnly-backend/internal/services"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// Dependencies carries the long-lived collaborators the router injects into
// services: built once in main, shared by the pipeline and the API.
type Dependencies struct {
	DB        *gorm.DB
	Index     vectorindex.Index
	Embedder  embedding.Embedder
	Generator generation.Generator
	Queue     services.Enqueuer
	Hub       *notify.Hub
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), rate limiting, CORS and security
// headers, health and metrics endpoints, and the versioned API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with credential redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS, gzip, and security headers
func RegisterRoutes(r *gin.Engine, deps Dependencies, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxUpload))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAPIKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAPIKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// SSE must not pass through the gzip writer; everything else may.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`.*/progress$`})))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repos/index/queue
	docSvc := &services.DocumentService{
		DB:            deps.DB,
		Index:         deps.Index,
		Queue:         deps.Queue,
		Log:           log.With().Str("component", "documents").Logger(),
		UploadDir:     cfg.UploadDir,
		BasicDocLimit: cfg.BasicDocLimit,
	}
	assembler := retrieval.New(deps.Embedder, deps.Index)
	assembler.TopK = cfg.TopK
	chatSvc := &services.ChatService{
		DB:            deps.DB,
		Retriever:     assembler,
		Generator:     deps.Generator,
		Quota:         &quota.Enforcer{DB: deps.DB, CharRatio: cfg.TokenCharRatio},
		Log:           log.With().Str("component", "chat").Logger(),
		HistoryWindow: cfg.HistoryWindow,
	}
	usageSvc := &services.UsageService{DB: deps.DB}

	h := handlers.New(docSvc, chatSvc, usageSvc, deps.Hub)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Owner surface (API key required)
		owner := api.Group("", middleware.RequireAPIKey(deps.DB))
		{
			owner.POST("/documents", h.UploadDocument)
			owner.GET("/documents", h.ListDocuments)
			owner.DELETE("/documents/:id", h.DeleteDocument)
			owner.POST("/documents/:id/toggle", h.ToggleDocument)
			owner.GET("/documents/:id/progress", h.DocumentProgress)

			owner.GET("/chats", h.ListThreads)
			owner.GET("/usage", h.Usage)
		}

		// Mixed surface: guests allowed, key honored when present
		open := api.Group("", middleware.OptionalAPIKey(deps.DB))
		{
			open.POST("/chat", h.Chat)
			open.GET("/chats/:id/messages", h.ListMessages)
			open.GET("/public/documents/:shareToken", h.PublicDocument)
			open.POST("/public/documents/:shareToken/verify", h.VerifyDocumentPassword)
		}
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
