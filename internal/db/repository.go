package db

import (
	"context"

	"github.com/tripkit/image-search/internal/db/models"
)

// Repository defines the interface for the image cache store
type Repository interface {
	// LookupImages returns up to limit most-recent entries whose search_query
	// substring-matches query (case-insensitive) and whose category matches.
	LookupImages(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error)

	// UpsertImages writes or updates rows keyed by image_id. A conflicting
	// write updates the row in place rather than inserting a duplicate.
	UpsertImages(ctx context.Context, query, category string, images []models.ImageRecord) error

	// ListUnpersisted returns up to limit cache entries without a local URL.
	ListUnpersisted(ctx context.Context, limit int) ([]models.CacheEntry, error)

	// UpdateLocalURLs records the re-hosted URLs for an already cached image.
	UpdateLocalURLs(ctx context.Context, imageID, localURL, localThumbnailURL string) error

	// Health check
	Ping(ctx context.Context) error

	// Close the repository
	Close() error
}
