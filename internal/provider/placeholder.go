package provider

import "github.com/tripkit/image-search/internal/db/models"

// placeholderSet is the static last-resort image set served when the cache is
// empty and every provider has failed.
var placeholderSet = []models.ImageRecord{
	{
		ID:        "placeholder-1",
		URL:       "https://images.unsplash.com/photo-1649972904349-6e44c42644a7?w=800",
		Thumbnail: "https://images.unsplash.com/photo-1649972904349-6e44c42644a7?w=300",
		Source:    models.SourcePlaceholder,
		Width:     800,
		Height:    600,
	},
	{
		ID:        "placeholder-2",
		URL:       "https://images.unsplash.com/photo-1488590528505-98d2b5aba04b?w=800",
		Thumbnail: "https://images.unsplash.com/photo-1488590528505-98d2b5aba04b?w=300",
		Source:    models.SourcePlaceholder,
		Width:     800,
		Height:    600,
	},
	{
		ID:        "placeholder-3",
		URL:       "https://images.unsplash.com/photo-1518770660439-4636190af475?w=800",
		Thumbnail: "https://images.unsplash.com/photo-1518770660439-4636190af475?w=300",
		Source:    models.SourcePlaceholder,
		Width:     800,
		Height:    600,
	},
}

// Placeholders returns up to limit static placeholder records with alt text
// derived from the query.
func Placeholders(query string, limit int) []models.ImageRecord {
	if limit > len(placeholderSet) {
		limit = len(placeholderSet)
	}
	if limit < 0 {
		limit = 0
	}

	images := make([]models.ImageRecord, limit)
	copy(images, placeholderSet[:limit])
	for i := range images {
		images[i].Alt = query + " - travel imagery"
	}
	return images
}
