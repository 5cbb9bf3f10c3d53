package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripkit/image-search/internal/db/models"
)

func TestUnsplashSearch(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, unsplashSearchURL,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Client-ID test-key", req.Header.Get("Authorization"))
			assert.Equal(t, "paris eiffel tower", req.URL.Query().Get("query"))
			assert.Equal(t, "5", req.URL.Query().Get("per_page"))
			assert.Equal(t, "landscape", req.URL.Query().Get("orientation"))

			return httpmock.NewStringResponse(http.StatusOK, `{
				"results": [
					{
						"id": "abc123",
						"width": 4000,
						"height": 3000,
						"description": "",
						"alt_description": "eiffel tower at dusk",
						"urls": {
							"regular": "https://images.unsplash.com/abc123?w=1080",
							"thumb": "https://images.unsplash.com/abc123?w=200"
						}
					},
					{
						"id": "def456",
						"width": 3200,
						"height": 2400,
						"description": "",
						"alt_description": "",
						"urls": {
							"regular": "https://images.unsplash.com/def456?w=1080",
							"thumb": "https://images.unsplash.com/def456?w=200"
						}
					}
				]
			}`), nil
		})

	u := NewUnsplash("test-key", client)
	images, err := u.Search(context.Background(), "paris eiffel tower", "travel", 5)
	require.NoError(t, err)
	require.Len(t, images, 2)

	assert.Equal(t, "unsplash-abc123", images[0].ID)
	assert.Equal(t, "https://images.unsplash.com/abc123?w=1080", images[0].URL)
	assert.Equal(t, "https://images.unsplash.com/abc123?w=200", images[0].Thumbnail)
	assert.Equal(t, "eiffel tower at dusk", images[0].Alt)
	assert.Equal(t, models.SourceUnsplash, images[0].Source)
	assert.Equal(t, 4000, images[0].Width)
	assert.Equal(t, 3000, images[0].Height)

	// Alt text falls back to the query when the photo carries none.
	assert.Equal(t, "paris eiffel tower", images[1].Alt)
}

func TestUnsplashSearchNoCredential(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	u := NewUnsplash("", client)
	images, err := u.Search(context.Background(), "paris", "travel", 5)
	assert.Nil(t, images)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.SourceUnsplash, provErr.Provider)
	assert.Equal(t, ReasonUnavailable, provErr.Reason)
	assert.Zero(t, httpmock.GetTotalCallCount(), "unconfigured provider must not call out")
}

func TestUnsplashSearchRateLimited(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, unsplashSearchURL,
		httpmock.NewStringResponder(http.StatusTooManyRequests, `{"errors":["Rate Limit Exceeded"]}`))

	u := NewUnsplash("test-key", client)
	_, err := u.Search(context.Background(), "paris", "travel", 5)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ReasonRateLimited, provErr.Reason)
	assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
}

func TestUnsplashSearchServerError(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, unsplashSearchURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, `oops`))

	u := NewUnsplash("test-key", client)
	_, err := u.Search(context.Background(), "paris", "travel", 5)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ReasonRequestFailed, provErr.Reason)
	assert.Equal(t, http.StatusInternalServerError, provErr.Status)
}

func TestUnsplashSearchMalformedBody(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, unsplashSearchURL,
		httpmock.NewStringResponder(http.StatusOK, `{"results": [`))

	u := NewUnsplash("test-key", client)
	_, err := u.Search(context.Background(), "paris", "travel", 5)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ReasonRequestFailed, provErr.Reason)
	assert.NotNil(t, provErr.Unwrap())
}

func TestUnsplashSearchNetworkError(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, unsplashSearchURL,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	u := NewUnsplash("test-key", client)
	_, err := u.Search(context.Background(), "paris", "travel", 5)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ReasonRequestFailed, provErr.Reason)
}
