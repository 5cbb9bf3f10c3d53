package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db/postgres"
	"github.com/tripkit/image-search/internal/logger"
	minioclient "github.com/tripkit/image-search/internal/minio/minio"
	"github.com/tripkit/image-search/internal/persister"
	"github.com/tripkit/image-search/internal/queue"
	"github.com/tripkit/image-search/internal/queue/rabbitmq"
	"github.com/tripkit/image-search/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Setup(&cfg.Log)

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
		log.Info().Msg("RabbitMQ disabled, running backfill sweep only")
	}

	w := worker.New(repo, persister.New(minioClient, cfg), queueClient, cfg)

	if err := w.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down worker...")

	cancel()
	w.Stop()

	log.Info().Msg("Worker stopped")
}
