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

const pexelsSearchURL = "https://api.pexels.com/v1/search"

// Pexels adapts the Pexels photo search API. The API key is passed verbatim
// in the authorization header.
type Pexels struct {
	apiKey string
	client *http.Client
}

func NewPexels(apiKey string, client *http.Client) *Pexels {
	return &Pexels{apiKey: apiKey, client: client}
}

func (p *Pexels) Name() string {
	return models.SourcePexels
}

type pexelsPhoto struct {
	ID     int64  `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Alt    string `json:"alt"`
	Src    struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"src"`
}

type pexelsResponse struct {
	Photos []pexelsPhoto `json:"photos"`
}

func (p *Pexels) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	if p.apiKey == "" {
		return nil, Unavailable(p.Name())
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pexelsSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, RequestError(p.Name(), err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, RequestError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, RequestFailed(p.Name(), resp.StatusCode)
	}

	var body pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, RequestError(p.Name(), err)
	}

	images := make([]models.ImageRecord, 0, len(body.Photos))
	for _, photo := range body.Photos {
		alt := photo.Alt
		if alt == "" {
			alt = query
		}

		images = append(images, models.ImageRecord{
			ID:        fmt.Sprintf("%s-%d", p.Name(), photo.ID),
			URL:       photo.Src.Large,
			Thumbnail: photo.Src.Medium,
			Alt:       alt,
			Source:    p.Name(),
			Width:     photo.Width,
			Height:    photo.Height,
		})
	}

	return images, nil
}
