// Package persister downloads remote images and re-hosts them in owned blob
// storage under deterministic paths.
package persister

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/metrics"
	"github.com/tripkit/image-search/internal/minio"
)

// allowedExtensions restricts the storage object extension; anything else
// falls back to jpg.
var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
}

type Persister struct {
	store   minio.Client
	client  *http.Client
	logger  zerolog.Logger
	workers int
}

func New(store minio.Client, cfg *config.Config) *Persister {
	workers := cfg.Worker.DownloadWorkers
	if workers <= 0 {
		workers = 4
	}

	return &Persister{
		store:   store,
		client:  &http.Client{Timeout: cfg.Providers.Timeout},
		logger:  logger.GetLogger("persister"),
		workers: workers,
	}
}

// Persist downloads each image and re-hosts it, returning records with local
// URLs populated where the transfer succeeded. Transfers within a batch are
// independent; a failed image keeps its remote URLs and never aborts the
// batch. Completion order does not affect the returned order.
func (p *Persister) Persist(ctx context.Context, images []models.ImageRecord, query, category string) []models.ImageRecord {
	results := make([]models.ImageRecord, len(images))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i := range images {
		wg.Add(1)
		go func(i int, img models.ImageRecord) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.persistOne(ctx, img, query)
		}(i, images[i])
	}

	wg.Wait()
	return results
}

// persistOne re-hosts a single image and, when present, its thumbnail. The
// storage path is deterministic, so persisting the same id twice overwrites
// the same object.
func (p *Persister) persistOne(ctx context.Context, img models.ImageRecord, query string) models.ImageRecord {
	remoteURL := img.URL
	remoteThumbnail := img.Thumbnail

	ext := fileExtension(remoteURL)
	objectName := fmt.Sprintf("%s/%s/%s.%s", SanitizeQuery(query), img.Source, img.ID, ext)

	publicURL, err := p.transfer(ctx, remoteURL, objectName, contentTypes[ext])
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("image_id", img.ID).
			Str("url", remoteURL).
			Msg("Failed to persist image, keeping remote URL")
		metrics.RecordPersist("failed")
		return img
	}

	img.URL = publicURL
	img.LocalURL = publicURL
	img.Thumbnail = publicURL

	// A provider thumbnail distinct from the main image gets its own object.
	// If that transfer fails the persisted main image serves as thumbnail.
	if remoteThumbnail != "" && remoteThumbnail != remoteURL {
		thumbObject := fmt.Sprintf("%s/%s/%s-thumb.%s", SanitizeQuery(query), img.Source, img.ID, ext)
		thumbURL, err := p.transfer(ctx, remoteThumbnail, thumbObject, contentTypes[ext])
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("image_id", img.ID).
				Msg("Failed to persist thumbnail, using main image")
		} else {
			img.Thumbnail = thumbURL
		}
	}

	p.logger.Debug().
		Str("image_id", img.ID).
		Str("object", objectName).
		Msg("Image persisted")
	metrics.RecordPersist("persisted")

	return img
}

// transfer streams one remote object into blob storage and returns its public URL.
func (p *Persister) transfer(ctx context.Context, sourceURL, objectName, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected download status %d", resp.StatusCode)
	}

	publicURL, err := p.store.Upload(ctx, resp.Body, resp.ContentLength, objectName, contentType)
	if err != nil {
		return "", fmt.Errorf("error uploading image: %w", err)
	}

	return publicURL, nil
}

// SanitizeQuery lowercases the query and collapses anything outside [a-z0-9]
// to hyphens, yielding a stable storage path segment.
func SanitizeQuery(query string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, query)
}

// fileExtension derives the storage extension from the URL path, restricted
// to the allowlist and defaulting to jpg.
func fileExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "jpg"
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if !allowedExtensions[ext] {
		return "jpg"
	}
	return ext
}
