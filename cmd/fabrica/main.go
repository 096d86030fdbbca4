package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabrica-labs/fabrica/internal/catalog"
	"github.com/fabrica-labs/fabrica/internal/config"
	"github.com/fabrica-labs/fabrica/internal/history"
	"github.com/fabrica-labs/fabrica/internal/llm"
	"github.com/fabrica-labs/fabrica/internal/research"
	"github.com/fabrica-labs/fabrica/internal/server"
	"github.com/fabrica-labs/fabrica/internal/store"
	"github.com/fabrica-labs/fabrica/internal/workflow"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	cat := catalog.New(cfg.Catalog.OverlayPath, logger)
	stop := make(chan struct{})
	if cfg.Catalog.OverlayPath != "" {
		go func() {
			if err := cat.Watch(stop); err != nil {
				logger.Warn("Catalog watcher stopped", zap.Error(err))
			}
		}()
	}

	llmClient := llm.NewClient(cfg.LLM, logger)

	var researcher workflow.Researcher = llmClient
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, research cache disabled", zap.Error(err))
		} else {
			researcher = research.NewCachedResearcher(llmClient, redisClient, cfg.Redis.TTL, logger)
			logger.Info("Research cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	enricher := research.NewEnricher(cat, cfg.Search, logger)

	csvStore, err := store.NewCSVStore(cfg.Generation.OutputDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize record store", zap.Error(err))
	}

	hist, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open run history store", zap.Error(err))
	}
	defer hist.Close()

	tracker := workflow.NewTracker()
	engine := workflow.NewEngine(
		workflow.NewResearchStage(cat, enricher, researcher, logger),
		workflow.NewGenerateStage(llmClient, cfg.Generation.BatchSize, logger),
		workflow.NewEvaluateStage(llmClient, csvStore, logger),
		cat,
		cfg.Generation.MaxRecords,
		tracker,
		logger,
	)

	srv := server.New(engine, tracker, hist, csvStore, cat, logger)

	// Metrics on a separate listener, matching the deployment's scrape config.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown error", zap.Error(err))
	}
}
