package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/api/router"
	"github.com/tripkit/image-search/internal/db/postgres"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/metrics"
	minioclient "github.com/tripkit/image-search/internal/minio/minio"
	"github.com/tripkit/image-search/internal/persister"
	"github.com/tripkit/image-search/internal/provider"
	"github.com/tripkit/image-search/internal/queue"
	"github.com/tripkit/image-search/internal/queue/rabbitmq"
	"github.com/tripkit/image-search/internal/search"
	"github.com/tripkit/image-search/internal/tracing"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(&cfg.Log)

	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer shutdownTracing()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	repo, err := postgres.NewRepository(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create database repository")
	}
	defer repo.Close()

	minioClient, err := minioclient.NewClient(&cfg.MinIO)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MinIO client")
	}
	defer minioClient.Close()

	var queueClient queue.Client
	if cfg.RabbitMQ.Enabled {
		queueClient, err = rabbitmq.NewClient(&cfg.RabbitMQ)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create RabbitMQ client")
		}
		defer queueClient.Close()
	} else {
		log.Info().Msg("RabbitMQ disabled, background persistence unavailable")
	}

	providers := provider.List(&cfg.Providers)
	imagePersister := persister.New(minioClient, cfg)
	orchestrator := search.NewOrchestrator(repo, providers, imagePersister, queueClient, &cfg.Search)
	searchService := search.NewService(orchestrator, &cfg.Search)

	r := router.Setup(cfg, repo, searchService)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", server.Addr).Msg("Starting API server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down API server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("API server forced to shutdown")
	}

	log.Info().Msg("API server stopped")
}
