// Package httpapi wires the admin HTTP API (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, rate limiting and admin auth.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/http/handlers"
	"github.com/tbourn/go-report-bot/internal/http/middleware"
	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/report"
	"github.com/tbourn/go-report-bot/internal/services"
)

// recordRepoShim adapts the repository free functions to the
// services.RecordRepo interface.
type recordRepoShim struct{}

// CountRecordsByDay proxies repo.CountRecordsByDay.
func (recordRepoShim) CountRecordsByDay(ctx context.Context, db *gorm.DB, table, day string) (int64, error) {
	return repo.CountRecordsByDay(ctx, db, table, day)
}

// ListRecordsPage proxies repo.ListRecordsPage.
func (recordRepoShim) ListRecordsPage(ctx context.Context, db *gorm.DB, table, day string, offset, limit int) ([]domain.Record, error) {
	return repo.ListRecordsPage(ctx, db, table, day, offset, limit)
}

// RecordsStats proxies repo.RecordsStats.
func (recordRepoShim) RecordsStats(ctx context.Context, db *gorm.DB, table, day string) (int64, *time.Time, error) {
	return repo.RecordsStats(ctx, db, table, day)
}

var corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token", "If-None-Match"}

// RegisterRoutes attaches all middleware and admin endpoints to r. runner
// backs POST /collect; it is shared with the interval loop so both contend
// for the same run lock.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger with redaction
//  4. Recovery
//  5. Body size limiter
//  6. Metrics
//  7. Gzip
//  8. Rate limiter (per IP)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, runner services.PassRunner, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskParams: []string{"chat_id"},
	}))
	r.Use(middleware.Recovery())

	// Nothing posted to the admin API carries a body worth more than 64 KiB.
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	tables := cfg.Store.Tables
	recSvc := services.NewRecordService(db, recordRepoShim{}, tables.Messages)
	reportSvc := &services.ReportService{
		Builder:  report.New(db, tables, cfg.Collector.Location()),
		ChatID:   cfg.Report.ChatID,
		ThreadID: cfg.Report.ThreadID,
	}
	collectSvc := &services.CollectService{Runner: runner}
	h := handlers.New(recSvc, reportSvc, collectSvc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/records", h.ListRecords)
		api.GET("/report/today", h.TodayReport)
		api.POST("/collect", middleware.AdminToken(cfg.AdminToken), h.Collect)
	}
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap make downstream body reads fail.
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
