package search

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/metrics"
	"github.com/tripkit/image-search/internal/persister"
	"github.com/tripkit/image-search/internal/provider"
	"github.com/tripkit/image-search/internal/queue"
	"github.com/tripkit/image-search/internal/tracing"
)

// Outcome is the result of one pass through the fallback chain.
type Outcome struct {
	Images []models.ImageRecord
	Source string
	Cached int
	Fresh  int
	Total  int
}

// ImagePersister re-hosts a batch of fetched images, returning the records
// with local URLs populated where the transfer succeeded.
type ImagePersister interface {
	Persist(ctx context.Context, images []models.ImageRecord, query, category string) []models.ImageRecord
}

var _ ImagePersister = (*persister.Persister)(nil)

// Orchestrator coordinates the cache lookup, the fixed-priority provider
// chain, and image persistence. Providers are tried strictly in order, one at
// a time; racing them would make outcomes non-deterministic and spend quota
// on lower-priority providers.
type Orchestrator struct {
	repo        db.Repository
	providers   []provider.ImageProvider
	persister   ImagePersister
	queueClient queue.Client
	cfg         *config.SearchConfig
	logger      zerolog.Logger
}

// NewOrchestrator wires the fallback chain. queueClient may be nil, in which
// case non-downloading searches skip background persistence.
func NewOrchestrator(
	repo db.Repository,
	providers []provider.ImageProvider,
	p ImagePersister,
	queueClient queue.Client,
	cfg *config.SearchConfig,
) *Orchestrator {
	return &Orchestrator{
		repo:        repo,
		providers:   providers,
		persister:   p,
		queueClient: queueClient,
		cfg:         cfg,
		logger:      logger.GetLogger("orchestrator"),
	}
}

// Search runs the fallback chain: cache first, then providers in priority
// order until enough images accumulate, placeholders as the last resort.
func (o *Orchestrator) Search(ctx context.Context, query, category string, limit int, download bool) Outcome {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.search")
	defer span.End()

	cached := o.lookupCached(ctx, query, category, limit)

	threshold := o.cfg.CacheThreshold
	if limit < threshold {
		threshold = limit
	}

	if len(cached) >= threshold {
		o.logger.Debug().
			Str("query", query).
			Int("cached", len(cached)).
			Msg("Cache satisfies request, skipping providers")

		images := cached
		if len(images) > limit {
			images = images[:limit]
		}
		return Outcome{
			Images: images,
			Source: models.ResponseSourceCache,
			Total:  len(cached),
		}
	}

	results := cached
	remaining := limit - len(cached)

	for _, p := range o.providers {
		if remaining <= 0 {
			break
		}

		fresh, ok := o.tryProvider(ctx, p, query, category, remaining)
		if !ok || len(fresh) == 0 {
			continue
		}

		if download {
			fresh = o.persister.Persist(ctx, fresh, query, category)
		} else {
			o.enqueuePersist(ctx, query, category, fresh)
		}

		if err := o.repo.UpsertImages(ctx, query, category, fresh); err != nil {
			o.logger.Error().Err(err).Str("provider", p.Name()).Msg("Failed to cache fresh images")
		}

		results = append(results, fresh...)
		remaining -= len(fresh)
	}

	if len(results) == 0 {
		count := o.cfg.PlaceholderCount
		if limit < count {
			count = limit
		}

		o.logger.Warn().Str("query", query).Msg("Cache empty and all providers failed, serving placeholders")
		return Outcome{
			Images: provider.Placeholders(query, count),
			Source: models.ResponseSourcePlaceholder,
			Total:  count,
		}
	}

	source := models.ResponseSourceFresh
	if len(cached) > 0 {
		source = models.ResponseSourceMixed
	}

	images := results
	if len(images) > limit {
		images = images[:limit]
	}

	return Outcome{
		Images: images,
		Source: source,
		Cached: len(cached),
		Fresh:  len(results) - len(cached),
		Total:  len(results),
	}
}

// lookupCached treats any storage failure as a cache miss; a degraded cache
// must never fail a search.
func (o *Orchestrator) lookupCached(ctx context.Context, query, category string, limit int) []models.ImageRecord {
	cached, err := o.repo.LookupImages(ctx, query, category, limit)
	if err != nil {
		o.logger.Error().Err(err).Str("query", query).Msg("Cache lookup failed, treating as miss")
		metrics.RecordCacheLookup(false)
		return nil
	}

	metrics.RecordCacheLookup(len(cached) > 0)
	return cached
}

// tryProvider performs the single attempt for one provider. Failures are
// logged with their reason and never abort the chain.
func (o *Orchestrator) tryProvider(ctx context.Context, p provider.ImageProvider, query, category string, limit int) ([]models.ImageRecord, bool) {
	ctx, span := tracing.StartSpan(ctx, "provider."+p.Name())
	defer span.End()

	start := time.Now()
	images, err := p.Search(ctx, query, category, limit)
	if err != nil {
		tracing.RecordError(ctx, err)
		o.logProviderFailure(p.Name(), err, time.Since(start))
		return nil, false
	}

	metrics.RecordProviderAttempt(p.Name(), "success", start)
	o.logger.Debug().
		Str("provider", p.Name()).
		Int("count", len(images)).
		Dur("elapsed", time.Since(start)).
		Msg("Provider returned images")

	return images, true
}

func (o *Orchestrator) logProviderFailure(name string, err error, elapsed time.Duration) {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		metrics.RecordProviderAttempt(name, string(provider.ReasonRequestFailed), time.Now().Add(-elapsed))
		o.logger.Error().
			Err(err).
			Str("provider", name).
			Dur("elapsed", elapsed).
			Msg("Provider search failed")
		return
	}

	metrics.RecordProviderAttempt(name, string(perr.Reason), time.Now().Add(-elapsed))

	event := o.logger.Warn()
	switch perr.Reason {
	case provider.ReasonUnavailable:
		event = o.logger.Debug()
	case provider.ReasonRateLimited:
		// Rate limits are an expected free-tier condition but deserve their
		// own signal for operational visibility.
		event = o.logger.Warn().Str("rate_limited", "true")
	}

	event.
		Str("provider", name).
		Str("reason", string(perr.Reason)).
		Int("status", perr.Status).
		Dur("elapsed", elapsed).
		Msg("Provider skipped")
}

// enqueuePersist hands a fresh batch to the background worker so it gets
// re-hosted off the request path. Best effort: a publish failure only loses
// the early download, not the search.
func (o *Orchestrator) enqueuePersist(ctx context.Context, query, category string, images []models.ImageRecord) {
	if o.queueClient == nil {
		return
	}

	data, err := json.Marshal(queue.PersistImagesData{
		Query:    query,
		Category: category,
		Images:   images,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to marshal persist task")
		return
	}

	task := queue.Task{
		ID:   uuid.New().String(),
		Type: queue.TaskTypePersistImages,
		Data: data,
	}

	if err := o.queueClient.Publish(ctx, task); err != nil {
		o.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to enqueue persist task")
	}
}
