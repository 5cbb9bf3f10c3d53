package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/persister"
	"github.com/tripkit/image-search/internal/queue"
)

// ImagePersister re-hosts a batch of fetched images.
type ImagePersister interface {
	Persist(ctx context.Context, images []models.ImageRecord, query, category string) []models.ImageRecord
}

var _ ImagePersister = (*persister.Persister)(nil)

// Worker re-hosts images off the request path: it consumes persist tasks
// published by searches that skipped inline downloads, and periodically
// sweeps the cache for rows that never got a local copy.
type Worker struct {
	repo        db.Repository
	persister   ImagePersister
	queueClient queue.Client
	logger      zerolog.Logger
	config      *config.Config
	sem         chan struct{} // Semaphore to limit concurrent processing
	wg          sync.WaitGroup
}

func New(
	repo db.Repository,
	p ImagePersister,
	queueClient queue.Client,
	cfg *config.Config,
) *Worker {
	return &Worker{
		repo:        repo,
		persister:   p,
		queueClient: queueClient,
		logger:      logger.GetLogger("worker"),
		config:      cfg,
		sem:         make(chan struct{}, cfg.Worker.MaxWorkers),
	}
}

// Start starts the queue consumer and the backfill sweep
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Int("max_workers", w.config.Worker.MaxWorkers).
		Dur("backfill_interval", w.config.Worker.BackfillInterval).
		Msg("Starting worker")

	if w.queueClient != nil {
		if err := w.queueClient.Consume(ctx, w.processTask); err != nil {
			return fmt.Errorf("error consuming messages: %w", err)
		}
	}

	go w.backfillLoop(ctx)

	return nil
}

// Stop stops the worker
func (w *Worker) Stop() {
	w.logger.Info().Msg("Stopping worker")
	w.wg.Wait() // Wait for in-flight tasks to finish
	w.logger.Info().Msg("Worker stopped")
}

// processTask processes a task from the queue
func (w *Worker) processTask(ctx context.Context, task queue.Task) error {
	w.wg.Add(1)
	defer w.wg.Done()

	// Acquire semaphore
	w.sem <- struct{}{}
	defer func() { <-w.sem }()

	w.logger.Info().
		Str("task_id", task.ID).
		Str("task_type", string(task.Type)).
		Msg("Processing task")

	switch task.Type {
	case queue.TaskTypePersistImages:
		return w.processPersistImages(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", string(task.Type))
	}
}

// processPersistImages downloads and re-hosts a batch of images, then records
// the local URLs in the cache. Per-image failures are not task failures; the
// backfill sweep retries them later.
func (w *Worker) processPersistImages(ctx context.Context, task queue.Task) error {
	var data queue.PersistImagesData
	if err := json.Unmarshal(task.Data, &data); err != nil {
		return fmt.Errorf("invalid persist task data: %w", err)
	}

	if len(data.Images) == 0 {
		return nil
	}

	persisted := w.persister.Persist(ctx, data.Images, data.Query, data.Category)
	w.recordLocalURLs(ctx, persisted)

	w.logger.Info().
		Str("task_id", task.ID).
		Str("query", data.Query).
		Int("count", len(persisted)).
		Msg("Persist task processed")

	return nil
}

// backfillLoop periodically re-hosts cache rows that still point at remote
// URLs. Runs once at startup and then on the configured interval.
func (w *Worker) backfillLoop(ctx context.Context) {
	w.runBackfill(ctx)

	ticker := time.NewTicker(w.config.Worker.BackfillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping backfill loop")
			return
		case <-ticker.C:
			w.runBackfill(ctx)
		}
	}
}

func (w *Worker) runBackfill(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	entries, err := w.repo.ListUnpersisted(ctx, w.config.Worker.BackfillBatch)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list unpersisted cache entries")
		return
	}

	if len(entries) == 0 {
		w.logger.Debug().Msg("No cache entries need downloading")
		return
	}

	w.logger.Info().Int("count", len(entries)).Msg("Backfilling unpersisted cache entries")

	for i := range entries {
		if ctx.Err() != nil {
			return
		}

		entry := &entries[i]
		persisted := w.persister.Persist(ctx, []models.ImageRecord{entry.Record()}, entry.SearchQuery, entry.Category)
		w.recordLocalURLs(ctx, persisted)
	}
}

func (w *Worker) recordLocalURLs(ctx context.Context, images []models.ImageRecord) {
	for i := range images {
		img := &images[i]
		if img.LocalURL == "" {
			continue
		}

		if err := w.repo.UpdateLocalURLs(ctx, img.ID, img.LocalURL, img.Thumbnail); err != nil {
			w.logger.Error().Err(err).Str("image_id", img.ID).Msg("Failed to record local URLs")
		}
	}
}
