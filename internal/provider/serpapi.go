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

const serpAPISearchURL = "https://serpapi.com/search"

// SerpAPI adapts Google image results via SerpAPI. Results carry no stable
// native id, so ids are derived from the query and result position.
type SerpAPI struct {
	apiKey string
	client *http.Client
}

func NewSerpAPI(apiKey string, client *http.Client) *SerpAPI {
	return &SerpAPI{apiKey: apiKey, client: client}
}

func (s *SerpAPI) Name() string {
	return models.SourceSerpAPI
}

type serpAPIImage struct {
	Original       string `json:"original"`
	Thumbnail      string `json:"thumbnail"`
	Title          string `json:"title"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
}

type serpAPIResponse struct {
	ImagesResults []serpAPIImage `json:"images_results"`
}

func (s *SerpAPI) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	if s.apiKey == "" {
		return nil, Unavailable(s.Name())
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("tbm", "isch")
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPISearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, RequestError(s.Name(), err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, RequestError(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, RequestFailed(s.Name(), resp.StatusCode)
	}

	var body serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, RequestError(s.Name(), err)
	}

	results := body.ImagesResults
	if len(results) > limit {
		results = results[:limit]
	}

	images := make([]models.ImageRecord, 0, len(results))
	for i, img := range results {
		alt := img.Title
		if alt == "" {
			alt = query
		}

		images = append(images, models.ImageRecord{
			ID:        fmt.Sprintf("%s-%s-%d", s.Name(), query, i),
			URL:       img.Original,
			Thumbnail: img.Thumbnail,
			Alt:       alt,
			Source:    s.Name(),
			Width:     img.OriginalWidth,
			Height:    img.OriginalHeight,
		})
	}

	return images, nil
}
