// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"stockroom/internal/domain/reports"
	"stockroom/internal/domain/stock"
	"stockroom/internal/infrastructure/cache"
	"stockroom/internal/infrastructure/http/v1/handlers"
	"stockroom/internal/infrastructure/http/v1/middleware"
	"stockroom/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *pgxpool.Pool

	// Redis is the optional report cache client; nil disables caching.
	Redis *redis.Client

	// Logger for request logging.
	Logger *logger.Logger

	// StockService is the adjustment engine.
	StockService *stock.Service

	// ReportService generates ledger-derived reports.
	ReportService *reports.Service

	// ReportCache caches computed report payloads.
	ReportCache *cache.ReportCache

	// ReportTimeout caps report computation per request.
	ReportTimeout time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	api := router.Group("/api/v1")
	{
		registerStockRoutes(api, cfg)
		registerReportRoutes(api, cfg)
	}

	return router
}

// registerStockRoutes registers stock record and adjustment endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewStockHandler(baseHandler, cfg.StockService)

	stockGroup := rg.Group("/stock")
	{
		stockGroup.POST("/adjustments", handler.Adjust)
		stockGroup.POST("/adjustments/bulk", handler.AdjustBulk)
		stockGroup.POST("/reservations", handler.Reserve)
		stockGroup.POST("/reservations/release", handler.Release)
		stockGroup.GET("/records", handler.ListRecords)
		stockGroup.GET("/records/:variantId/:locationId", handler.GetRecord)
		stockGroup.PUT("/records/:variantId/:locationId/levels", handler.SetLevels)
		stockGroup.POST("/reconcile", handler.Reconcile)
	}
}

// registerReportRoutes registers report endpoints.
func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewReportsHandler(baseHandler, cfg.ReportService, cfg.ReportCache, cfg.ReportTimeout)

	reportsGroup := rg.Group("/reports")
	{
		reportsGroup.GET("/movements", handler.Movement)
		reportsGroup.GET("/forecast", handler.Forecast)
		reportsGroup.GET("/valuation", handler.Valuation)
		reportsGroup.GET("/slow-moving", handler.SlowMoving)
		reportsGroup.GET("/dashboard", handler.Dashboard)
		reportsGroup.GET("/ledger-export", handler.ExportLedger)
	}
}
