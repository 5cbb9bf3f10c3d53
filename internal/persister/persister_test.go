package persister

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripkit/image-search/internal/db/models"
)

// fakeStore records uploads and serves deterministic public URLs.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string]string // objectName -> contentType
	failOn  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string]string),
		failOn:  make(map[string]bool),
	}
}

func (f *fakeStore) Upload(ctx context.Context, reader io.Reader, size int64, objectName, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[objectName] {
		return "", fmt.Errorf("upload rejected")
	}
	if _, err := io.ReadAll(reader); err != nil {
		return "", err
	}
	f.objects[objectName] = contentType
	return f.PublicURL(objectName), nil
}

func (f *fakeStore) PublicURL(objectName string) string {
	return "http://storage.local/downloaded-images/" + objectName
}

func (f *fakeStore) Close() error { return nil }

func newTestPersister(store *fakeStore, client *http.Client) *Persister {
	return &Persister{
		store:   store,
		client:  client,
		logger:  zerolog.Nop(),
		workers: 2,
	}
}

func TestPersistRewritesURLs(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/photo.png",
		httpmock.NewBytesResponder(http.StatusOK, []byte("png-bytes")))
	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/photo-small.png",
		httpmock.NewBytesResponder(http.StatusOK, []byte("thumb-bytes")))

	store := newFakeStore()
	p := newTestPersister(store, client)

	images := []models.ImageRecord{
		{
			ID:        "unsplash-abc",
			URL:       "https://cdn.example.com/photo.png",
			Thumbnail: "https://cdn.example.com/photo-small.png",
			Source:    models.SourceUnsplash,
		},
	}

	results := p.Persist(context.Background(), images, "Paris, France!", "travel")
	require.Len(t, results, 1)

	wantObject := "paris--france-/unsplash/unsplash-abc.png"
	wantURL := store.PublicURL(wantObject)
	assert.Equal(t, wantURL, results[0].URL)
	assert.Equal(t, wantURL, results[0].LocalURL)
	assert.Equal(t, store.PublicURL("paris--france-/unsplash/unsplash-abc-thumb.png"), results[0].Thumbnail)

	assert.Equal(t, "image/png", store.objects[wantObject])
	assert.Contains(t, store.objects, "paris--france-/unsplash/unsplash-abc-thumb.png")
}

func TestPersistDownloadFailureKeepsRemoteURL(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/gone.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))
	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/fine.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-bytes")))

	store := newFakeStore()
	p := newTestPersister(store, client)

	images := []models.ImageRecord{
		{ID: "pexels-1", URL: "https://cdn.example.com/gone.jpg", Source: models.SourcePexels},
		{ID: "pexels-2", URL: "https://cdn.example.com/fine.jpg", Source: models.SourcePexels},
	}

	results := p.Persist(context.Background(), images, "lisbon", "travel")
	require.Len(t, results, 2)

	// The failed image keeps its original record untouched.
	assert.Equal(t, "https://cdn.example.com/gone.jpg", results[0].URL)
	assert.Empty(t, results[0].LocalURL)

	// The batch continues past failures.
	assert.Equal(t, store.PublicURL("lisbon/pexels/pexels-2.jpg"), results[1].LocalURL)
}

func TestPersistThumbnailFailureFallsBackToMainImage(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/main.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-bytes")))
	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/thumb.jpg",
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	store := newFakeStore()
	p := newTestPersister(store, client)

	images := []models.ImageRecord{
		{
			ID:        "pixabay-9",
			URL:       "https://cdn.example.com/main.jpg",
			Thumbnail: "https://cdn.example.com/thumb.jpg",
			Source:    models.SourcePixabay,
		},
	}

	results := p.Persist(context.Background(), images, "kyoto", "travel")
	require.Len(t, results, 1)

	wantURL := store.PublicURL("kyoto/pixabay/pixabay-9.jpg")
	assert.Equal(t, wantURL, results[0].URL)
	assert.Equal(t, wantURL, results[0].Thumbnail, "thumbnail falls back to the persisted main image")
}

func TestPersistUploadFailureKeepsRemoteURL(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://cdn.example.com/main.jpg",
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpeg-bytes")))

	store := newFakeStore()
	store.failOn["kyoto/serpapi/serpapi-kyoto-0.jpg"] = true
	p := newTestPersister(store, client)

	images := []models.ImageRecord{
		{ID: "serpapi-kyoto-0", URL: "https://cdn.example.com/main.jpg", Source: models.SourceSerpAPI},
	}

	results := p.Persist(context.Background(), images, "kyoto", "travel")
	require.Len(t, results, 1)
	assert.Equal(t, "https://cdn.example.com/main.jpg", results[0].URL)
	assert.Empty(t, results[0].LocalURL)
}

func TestPersistEmptyBatch(t *testing.T) {
	p := newTestPersister(newFakeStore(), &http.Client{})
	assert.Empty(t, p.Persist(context.Background(), nil, "anything", "travel"))
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Paris", "paris"},
		{"New York City", "new-york-city"},
		{"Tokyo 2024!", "tokyo-2024-"},
		{"café & bar", "caf----bar"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeQuery(tc.in), "input %q", tc.in)
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/a.png", "png"},
		{"https://cdn.example.com/a.JPEG", "jpeg"},
		{"https://cdn.example.com/a.webp?w=800", "webp"},
		{"https://cdn.example.com/a.gif", "gif"},
		{"https://cdn.example.com/a.svg", "jpg"},
		{"https://cdn.example.com/photo", "jpg"},
		{"://not a url", "jpg"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, fileExtension(tc.url), "url %q", tc.url)
	}
}
