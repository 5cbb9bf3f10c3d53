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

const unsplashSearchURL = "https://api.unsplash.com/search/photos"

// Unsplash adapts the Unsplash photo search API. Authentication uses a
// Client-ID authorization header.
type Unsplash struct {
	accessKey string
	client    *http.Client
}

func NewUnsplash(accessKey string, client *http.Client) *Unsplash {
	return &Unsplash{accessKey: accessKey, client: client}
}

func (u *Unsplash) Name() string {
	return models.SourceUnsplash
}

type unsplashPhoto struct {
	ID             string `json:"id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
}

type unsplashResponse struct {
	Results []unsplashPhoto `json:"results"`
}

func (u *Unsplash) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	if u.accessKey == "" {
		return nil, Unavailable(u.Name())
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, unsplashSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, RequestError(u.Name(), err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, RequestError(u.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, RequestFailed(u.Name(), resp.StatusCode)
	}

	var body unsplashResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, RequestError(u.Name(), err)
	}

	images := make([]models.ImageRecord, 0, len(body.Results))
	for _, photo := range body.Results {
		alt := photo.AltDescription
		if alt == "" {
			alt = photo.Description
		}
		if alt == "" {
			alt = query
		}

		images = append(images, models.ImageRecord{
			ID:        fmt.Sprintf("%s-%s", u.Name(), photo.ID),
			URL:       photo.URLs.Regular,
			Thumbnail: photo.URLs.Thumb,
			Alt:       alt,
			Source:    u.Name(),
			Width:     photo.Width,
			Height:    photo.Height,
		})
	}

	return images, nil
}
