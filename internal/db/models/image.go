package models

import "time"

// Provider names, in fallback priority order. Cached entries carry the
// original provider name prefixed with "cached-".
const (
	SourceUnsplash    = "unsplash"
	SourcePexels      = "pexels"
	SourcePixabay     = "pixabay"
	SourceSerpAPI     = "serpapi"
	SourcePlaceholder = "placeholder"
)

// CachedSource returns the provenance label for a cache-served record.
func CachedSource(original string) string {
	return "cached-" + original
}

// ImageRecord represents a single acquired image. ID is globally unique and
// built as "{provider}-{nativeID}"; it is the dedup key for cache upserts.
type ImageRecord struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Alt       string `json:"alt"`
	Source    string `json:"source"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	LocalURL  string `json:"localUrl,omitempty"`
}

// CacheEntry is the persisted projection of an ImageRecord plus its search
// provenance. Rows are looked up by (search_query, category) and uniquely
// constrained by image_id.
type CacheEntry struct {
	SearchQuery       string    `json:"search_query" db:"search_query"`
	Category          string    `json:"category" db:"category"`
	ImageID           string    `json:"image_id" db:"image_id"`
	ImageURL          string    `json:"image_url" db:"image_url"`
	ThumbnailURL      string    `json:"thumbnail_url" db:"thumbnail_url"`
	AltText           string    `json:"alt_text" db:"alt_text"`
	OriginalSource    string    `json:"original_source" db:"original_source"`
	Width             int       `json:"width,omitempty" db:"width"`
	Height            int       `json:"height,omitempty" db:"height"`
	LocalURL          string    `json:"local_url,omitempty" db:"local_url"`
	LocalThumbnailURL string    `json:"local_thumbnail_url,omitempty" db:"local_thumbnail_url"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Record converts a cache entry back into an ImageRecord.
func (e *CacheEntry) Record() ImageRecord {
	return ImageRecord{
		ID:        e.ImageID,
		URL:       e.ImageURL,
		Thumbnail: e.ThumbnailURL,
		Alt:       e.AltText,
		Source:    e.OriginalSource,
		Width:     e.Width,
		Height:    e.Height,
		LocalURL:  e.LocalURL,
	}
}

// SearchRequest is the inbound search payload.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
	// DownloadImages defaults to true when absent from the payload.
	DownloadImages *bool `json:"downloadImages"`
}

// Download reports whether fetched images should be persisted inline.
func (r *SearchRequest) Download() bool {
	return r.DownloadImages == nil || *r.DownloadImages
}

// Response provenance values.
const (
	ResponseSourceCache       = "cache"
	ResponseSourceMixed       = "mixed"
	ResponseSourceFresh       = "fresh"
	ResponseSourcePlaceholder = "placeholder"
)

// SearchResponse is the outbound search payload. The response is always
// well-formed; placeholder responses carry an explanatory message.
type SearchResponse struct {
	Images  []ImageRecord `json:"images"`
	Source  string        `json:"source"`
	Total   int           `json:"total"`
	Cached  int           `json:"cached,omitempty"`
	Fresh   int           `json:"fresh,omitempty"`
	Message string        `json:"message,omitempty"`
}
