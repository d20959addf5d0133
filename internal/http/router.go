// Package httpapi wires the Gin transport to the application services: the
// middleware chain (tracing, request IDs, redacted logging, recovery, body
// caps, metrics, idempotency, rate limiting, CORS, security headers,
// compression), the health and metrics endpoints, and the versioned public
// API. All dependencies are injected; nothing here touches globals beyond the
// Prometheus default registry.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/quieromudarme/go-housing-backend/internal/config"
	"github.com/quieromudarme/go-housing-backend/internal/http/handlers"
	"github.com/quieromudarme/go-housing-backend/internal/http/middleware"
	"github.com/quieromudarme/go-housing-backend/internal/repo"
	"github.com/quieromudarme/go-housing-backend/internal/services"
)

// RegisterRoutes attaches all middleware and endpoints to the given engine.
//
// The chain runs tracing first so every downstream hop lands in the same
// span, then request-ID correlation, logging with PII scrubbing, panic
// recovery, the body cap, metrics, idempotency validation, and rate
// limiting. Idempotency sits in front of the limiter so a replayed ingest
// delivery can bypass it. CORS, security headers, and gzip close the chain.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())

	// Listing payloads and contact registrations carry phone numbers.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	r.Use(middleware.Recovery())

	// 4 MiB body cap; scraped batches are the biggest payloads we accept.
	r.Use(limitBody(4 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, searchID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetReceipt(ctx, db, searchID, key, now)
			return err == nil && rec != nil, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	applyCORS(r, cfg.CORS.AllowedOrigins)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Pending-notification batches gzip well.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness plus store row counts, cheap enough to poll.
	r.GET("/health", func(c *gin.Context) {
		stats, err := repo.Stats(c.Request.Context(), db)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": stats})
	})

	watchSvc := &services.WatchService{DB: db}
	catalogSvc := &services.CatalogService{
		DB:            db,
		Threshold:     decimal.NewFromFloat(cfg.PriceDropThreshold),
		ExcessiveWarn: cfg.ExcessiveResults,
		Watches:       watchSvc,
	}
	notifySvc := &services.NotifyService{DB: db, MaxPerUser: cfg.MaxNotifsPerUser}
	userSvc := &services.UserService{
		DB:                 db,
		FreeSearchLimit:    cfg.FreeSearchLimit,
		EnforceSearchLimit: cfg.EnforceFreeSearchLimit,
	}
	h := handlers.New(userSvc, catalogSvc, watchSvc, notifySvc, db, cfg.IdempotencyTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/users/contact", h.RegisterContact)
		api.PUT("/users/:id/tier", h.ChangeTier)

		api.POST("/searches", h.CreateSearch)
		api.GET("/searches", h.ListSearches)
		api.DELETE("/searches/:id", h.DeleteSearch)

		api.POST("/ingest", h.Ingest)

		api.GET("/notifications/pending", h.PendingNotifications)
		api.POST("/notifications/confirm", h.ConfirmDelivered)

		api.GET("/housings", h.ListHousings)
	}
}

// applyCORS installs the cross-origin policy. With no configured origins the
// API is open: ACAO is forced to * even for requests that omit the Origin
// header, which keeps curl and plain health checks happy. With an allowlist,
// matching origins are echoed back (with Vary: Origin) ahead of
// gin-contrib/cors doing its own enforcement.
func applyCORS(r *gin.Engine, origins []string) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	r.Use(func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		c.Next()
	})
	r.Use(cors.New(base))
}

// limitBody caps request bodies at maxBytes via http.MaxBytesReader; reads
// past the cap error out downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "" and "/" as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
