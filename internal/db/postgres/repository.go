package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, cfg *config.DatabaseConfig) (db.Repository, error) {
	initLogger := logger.GetLogger("postgres-repository")

	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("unable to run migrations: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	initLogger.Info().Msg("Connected to Postgres database")
	return &Repository{pool: pool}, nil
}

// LookupImages retrieves cached images matching the query and category
func (r *Repository) LookupImages(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	reqLogger := logger.FromContext(ctx)

	sql := `
		SELECT image_id, image_url, thumbnail_url, alt_text, original_source,
			COALESCE(width, 0), COALESCE(height, 0),
			COALESCE(local_url, ''), COALESCE(local_thumbnail_url, '')
		FROM cached_images
		WHERE search_query ILIKE '%' || $1 || '%' AND category = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	reqLogger.Debug().Str("query", query).Str("category", category).Int("limit", limit).Msg("Executing LookupImages query")

	rows, err := r.pool.Query(ctx, sql, query, category, limit)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error querying cached images")
		return nil, fmt.Errorf("error querying cached images: %w", err)
	}
	defer rows.Close()

	images := make([]models.ImageRecord, 0)
	for rows.Next() {
		var entry models.CacheEntry
		err := rows.Scan(
			&entry.ImageID, &entry.ImageURL, &entry.ThumbnailURL, &entry.AltText, &entry.OriginalSource,
			&entry.Width, &entry.Height, &entry.LocalURL, &entry.LocalThumbnailURL,
		)
		if err != nil {
			reqLogger.Error().Err(err).Msg("Error scanning cached image row")
			return nil, fmt.Errorf("error scanning cached image row: %w", err)
		}

		record := entry.Record()
		record.Source = models.CachedSource(entry.OriginalSource)
		images = append(images, record)
	}

	if err := rows.Err(); err != nil {
		reqLogger.Error().Err(err).Msg("Error iterating over cached image rows")
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	reqLogger.Debug().Int("count", len(images)).Msg("Cached images retrieved")
	return images, nil
}

// UpsertImages writes or updates cache rows keyed by image_id. An existing
// local_url is never overwritten with an empty value, so a later write
// without a persisted copy cannot regress an earlier successful download.
func (r *Repository) UpsertImages(ctx context.Context, query, category string, images []models.ImageRecord) error {
	reqLogger := logger.FromContext(ctx)

	if len(images) == 0 {
		return nil
	}

	sql := `
		INSERT INTO cached_images (
			search_query, category, image_id, image_url, thumbnail_url,
			alt_text, original_source, width, height, local_url, local_thumbnail_url, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12
		)
		ON CONFLICT (image_id) DO UPDATE SET
			search_query = EXCLUDED.search_query,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			alt_text = EXCLUDED.alt_text,
			original_source = EXCLUDED.original_source,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			local_url = COALESCE(EXCLUDED.local_url, cached_images.local_url),
			local_thumbnail_url = COALESCE(EXCLUDED.local_thumbnail_url, cached_images.local_thumbnail_url)
	`

	reqLogger.Debug().Str("query", query).Int("count", len(images)).Msg("Executing UpsertImages query")

	now := time.Now()
	for i := range images {
		img := &images[i]
		localThumbnail := ""
		if img.LocalURL != "" {
			localThumbnail = img.Thumbnail
		}

		_, err := r.pool.Exec(ctx, sql,
			query, category, img.ID, img.URL, img.Thumbnail,
			img.Alt, img.Source, img.Width, img.Height, img.LocalURL, localThumbnail, now,
		)
		if err != nil {
			reqLogger.Error().Err(err).Str("image_id", img.ID).Msg("Error upserting cached image")
			return fmt.Errorf("error upserting cached image %s: %w", img.ID, err)
		}
	}

	reqLogger.Debug().Int("count", len(images)).Msg("Cached images upserted")
	return nil
}

// ListUnpersisted retrieves cache entries that have no local copy yet
func (r *Repository) ListUnpersisted(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	reqLogger := logger.FromContext(ctx)

	sql := `
		SELECT search_query, category, image_id, image_url, thumbnail_url, alt_text,
			original_source, COALESCE(width, 0), COALESCE(height, 0), created_at
		FROM cached_images
		WHERE local_url IS NULL
		ORDER BY created_at DESC
		LIMIT $1
	`

	reqLogger.Debug().Int("limit", limit).Msg("Executing ListUnpersisted query")

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error querying unpersisted images")
		return nil, fmt.Errorf("error querying unpersisted images: %w", err)
	}
	defer rows.Close()

	entries := make([]models.CacheEntry, 0)
	for rows.Next() {
		var entry models.CacheEntry
		err := rows.Scan(
			&entry.SearchQuery, &entry.Category, &entry.ImageID, &entry.ImageURL, &entry.ThumbnailURL,
			&entry.AltText, &entry.OriginalSource, &entry.Width, &entry.Height, &entry.CreatedAt,
		)
		if err != nil {
			reqLogger.Error().Err(err).Msg("Error scanning unpersisted image row")
			return nil, fmt.Errorf("error scanning unpersisted image row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		reqLogger.Error().Err(err).Msg("Error iterating over unpersisted image rows")
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return entries, nil
}

// UpdateLocalURLs records the re-hosted URLs for an already cached image
func (r *Repository) UpdateLocalURLs(ctx context.Context, imageID, localURL, localThumbnailURL string) error {
	reqLogger := logger.FromContext(ctx)

	sql := `
		UPDATE cached_images
		SET local_url = $2, local_thumbnail_url = $3
		WHERE image_id = $1
	`

	reqLogger.Debug().Str("image_id", imageID).Msg("Executing UpdateLocalURLs query")

	commandTag, err := r.pool.Exec(ctx, sql, imageID, localURL, localThumbnailURL)
	if err != nil {
		reqLogger.Error().Err(err).Str("image_id", imageID).Msg("Error updating local URLs")
		return fmt.Errorf("error updating local URLs: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		reqLogger.Warn().Str("image_id", imageID).Msg("No cache row found for local URL update")
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	reqLogger := logger.FromContext(ctx)
	reqLogger.Debug().Msg("Pinging database")

	err := r.pool.Ping(ctx)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Error pinging database")
		return fmt.Errorf("error pinging database: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
