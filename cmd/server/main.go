// Package main is the entry point for the stockroom API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockroom/internal/core/types"
	"stockroom/internal/domain/reports"
	"stockroom/internal/domain/stock"
	"stockroom/internal/infrastructure/cache"
	"stockroom/internal/infrastructure/config"
	v1 "stockroom/internal/infrastructure/http/v1"
	"stockroom/internal/infrastructure/storage/postgres"
	"stockroom/internal/infrastructure/storage/postgres/catalog_repo"
	"stockroom/internal/infrastructure/storage/postgres/report_repo"
	"stockroom/internal/infrastructure/storage/postgres/sales_repo"
	"stockroom/internal/infrastructure/storage/postgres/stock_repo"
	"stockroom/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockroom server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.PGDSN)
	poolCfg.MaxConns = cfg.PGMaxConns
	poolCfg.MinConns = cfg.PGMinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Report cache (optional) ---
	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisClient, err = cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Reports recompute on demand; a dead cache only costs latency.
			log.Warnw("report cache unavailable, continuing without it", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Infow("report cache enabled", "ttl", cfg.ReportCacheTTL)
		}
	}
	reportCache := cache.NewReportCache(redisClient, cfg.ReportCacheTTL)

	// --- Repositories ---
	stockRepo := stock_repo.NewStockRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)
	catalogRepo := catalog_repo.NewCatalogRepo(txManager)
	salesRepo := sales_repo.NewSalesRepo(txManager)

	// --- Services ---
	stockService := stock.NewService(stockRepo, txManager)

	costRatio, err := types.NewMoneyFromString(cfg.CostRatio)
	if err != nil {
		log.Fatalw("invalid COST_RATIO", "value", cfg.CostRatio, "error", err)
	}
	costSource := reports.RatioCostSource{Ratio: costRatio}

	reportService := reports.NewService(reportRepo, salesRepo, catalogRepo, catalogRepo, costSource, txManager)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool.Unwrap(),
		Redis:         redisClient,
		Logger:        log,
		StockService:  stockService,
		ReportService: reportService,
		ReportCache:   reportCache,
		ReportTimeout: cfg.ReportTimeout,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
