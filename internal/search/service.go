package search

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/metrics"
	"github.com/tripkit/image-search/internal/provider"
)

const defaultCategory = "general"

const placeholderMessage = "Using placeholder images - all image sources failed"

// Searcher is the boundary the API layer depends on.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) models.SearchResponse
}

// Service validates requests, runs the fallback chain and assembles the
// response. It owns the response lifecycle for a single call and holds no
// state across calls. Nothing escapes this boundary: any residual failure,
// panics included, becomes a placeholder response so the caller always
// receives a well-formed image list.
type Service struct {
	orchestrator *Orchestrator
	cfg          *config.SearchConfig
	logger       zerolog.Logger
}

func NewService(orchestrator *Orchestrator, cfg *config.SearchConfig) *Service {
	return &Service{
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger.GetLogger("search-service"),
	}
}

func (s *Service) Search(ctx context.Context, req models.SearchRequest) (resp models.SearchResponse) {
	query := strings.TrimSpace(req.Query)

	category := req.Category
	if category == "" {
		category = defaultCategory
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("query", query).
				Msg("Search pipeline panicked, serving placeholders")
			resp = s.placeholderResponse(query, limit)
		}
		metrics.RecordResponse(resp.Source)
	}()

	// The request is bounded as a whole so that walking four dead providers
	// cannot produce unbounded latency.
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if query == "" {
		// The handler rejects empty queries; this guards direct callers.
		return s.placeholderResponse(query, limit)
	}

	outcome := s.orchestrator.Search(ctx, query, category, limit, req.Download())

	resp = models.SearchResponse{
		Images: outcome.Images,
		Source: outcome.Source,
		Total:  outcome.Total,
	}

	switch outcome.Source {
	case models.ResponseSourcePlaceholder:
		resp.Message = placeholderMessage
	case models.ResponseSourceMixed, models.ResponseSourceFresh:
		resp.Cached = outcome.Cached
		resp.Fresh = outcome.Fresh
	}

	s.logger.Info().
		Str("query", query).
		Str("category", category).
		Str("source", resp.Source).
		Int("total", resp.Total).
		Msg("Search completed")

	return resp
}

func (s *Service) placeholderResponse(query string, limit int) models.SearchResponse {
	count := s.cfg.PlaceholderCount
	if limit < count {
		count = limit
	}

	images := provider.Placeholders(query, count)
	return models.SearchResponse{
		Images:  images,
		Source:  models.ResponseSourcePlaceholder,
		Total:   len(images),
		Message: placeholderMessage,
	}
}
