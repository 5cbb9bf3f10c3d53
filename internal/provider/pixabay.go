package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tripkit/image-search/internal/db/models"
)

const pixabaySearchURL = "https://pixabay.com/api/"

// pixabayCategories maps our categories onto Pixabay's fixed taxonomy.
// Unmapped categories search across all of Pixabay.
var pixabayCategories = map[string]string{
	"travel":     "places",
	"food":       "food",
	"nature":     "nature",
	"business":   "business",
	"technology": "computer",
}

// Pixabay adapts the Pixabay image search API. The API key travels as a
// query-string parameter.
type Pixabay struct {
	apiKey string
	client *http.Client
}

func NewPixabay(apiKey string, client *http.Client) *Pixabay {
	return &Pixabay{apiKey: apiKey, client: client}
}

func (p *Pixabay) Name() string {
	return models.SourcePixabay
}

type pixabayHit struct {
	ID           int64  `json:"id"`
	Tags         string `json:"tags"`
	WebformatURL string `json:"webformatURL"`
	PreviewURL   string `json:"previewURL"`
	ImageWidth   int    `json:"imageWidth"`
	ImageHeight  int    `json:"imageHeight"`
}

type pixabayResponse struct {
	Hits []pixabayHit `json:"hits"`
}

func (p *Pixabay) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	if p.apiKey == "" {
		return nil, Unavailable(p.Name())
	}

	pixabayCategory, ok := pixabayCategories[category]
	if !ok {
		pixabayCategory = "all"
	}

	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("q", query)
	params.Set("category", pixabayCategory)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("image_type", "photo")
	params.Set("orientation", "horizontal")
	params.Set("min_width", "640")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pixabaySearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, RequestError(p.Name(), err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, RequestError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, RequestFailed(p.Name(), resp.StatusCode)
	}

	var body pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, RequestError(p.Name(), err)
	}

	images := make([]models.ImageRecord, 0, len(body.Hits))
	for _, hit := range body.Hits {
		alt := hit.Tags
		if alt == "" {
			alt = query
		}

		images = append(images, models.ImageRecord{
			ID:        fmt.Sprintf("%s-%d", p.Name(), hit.ID),
			URL:       hit.WebformatURL,
			Thumbnail: hit.PreviewURL,
			Alt:       alt,
			Source:    p.Name(),
			Width:     hit.ImageWidth,
			Height:    hit.ImageHeight,
		})
	}

	return images, nil
}
