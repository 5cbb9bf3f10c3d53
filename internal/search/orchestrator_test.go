package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/provider"
	"github.com/tripkit/image-search/internal/queue"
)

type fakeRepo struct {
	cached      []models.ImageRecord
	lookupErr   error
	upserted    [][]models.ImageRecord
	upsertErr   error
	unpersisted []models.CacheEntry
	updated     map[string]string
}

func (f *fakeRepo) LookupImages(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if len(f.cached) > limit {
		return f.cached[:limit], nil
	}
	return f.cached, nil
}

func (f *fakeRepo) UpsertImages(ctx context.Context, query, category string, images []models.ImageRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, images)
	return nil
}

func (f *fakeRepo) ListUnpersisted(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	return f.unpersisted, nil
}

func (f *fakeRepo) UpdateLocalURLs(ctx context.Context, imageID, localURL, localThumbnailURL string) error {
	if f.updated == nil {
		f.updated = make(map[string]string)
	}
	f.updated[imageID] = localURL
	return nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type fakeProvider struct {
	name      string
	images    []models.ImageRecord
	err       error
	calls     int
	lastLimit int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.images) > limit {
		return f.images[:limit], nil
	}
	return f.images, nil
}

type fakePersister struct {
	calls int
}

func (f *fakePersister) Persist(ctx context.Context, images []models.ImageRecord, query, category string) []models.ImageRecord {
	f.calls++
	out := make([]models.ImageRecord, len(images))
	copy(out, images)
	for i := range out {
		out[i].LocalURL = "http://storage.local/" + out[i].ID
		out[i].URL = out[i].LocalURL
	}
	return out
}

type fakeQueue struct {
	published  []queue.Task
	publishErr error
}

func (f *fakeQueue) Publish(ctx context.Context, task queue.Task) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, task)
	return nil
}

func (f *fakeQueue) Consume(ctx context.Context, processFunc queue.ProcessFunc) error { return nil }
func (f *fakeQueue) Close() error                                                     { return nil }

func records(source string, n int) []models.ImageRecord {
	out := make([]models.ImageRecord, n)
	for i := range out {
		out[i] = models.ImageRecord{
			ID:     fmt.Sprintf("%s-%d", source, i),
			URL:    fmt.Sprintf("https://cdn.example.com/%s-%d.jpg", source, i),
			Source: source,
		}
	}
	return out
}

func testSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		DefaultLimit:     20,
		MaxLimit:         50,
		CacheThreshold:   10,
		PlaceholderCount: 3,
		RequestTimeout:   5 * time.Second,
	}
}

func TestOrchestratorCacheShortCircuit(t *testing.T) {
	repo := &fakeRepo{cached: records("cached-unsplash", 5)}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 5)}
	pers := &fakePersister{}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, pers, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourceCache, outcome.Source)
	assert.Len(t, outcome.Images, 5)
	assert.Equal(t, 5, outcome.Total)
	assert.Zero(t, prov.calls, "a satisfied cache must not spend provider quota")
	assert.Zero(t, pers.calls)
}

func TestOrchestratorCacheThresholdIsMinOfLimit(t *testing.T) {
	// 3 cached rows satisfy a limit-3 request even below the configured
	// threshold of 10.
	repo := &fakeRepo{cached: records("cached-unsplash", 3)}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 3)}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 3, true)

	assert.Equal(t, models.ResponseSourceCache, outcome.Source)
	assert.Zero(t, prov.calls)
}

func TestOrchestratorFallsBackThroughProviders(t *testing.T) {
	repo := &fakeRepo{}
	unavailable := &fakeProvider{name: "unsplash", err: provider.Unavailable("unsplash")}
	rateLimited := &fakeProvider{name: "pexels", err: provider.RequestFailed("pexels", 429)}
	working := &fakeProvider{name: "pixabay", images: records("pixabay", 5)}
	pers := &fakePersister{}

	o := NewOrchestrator(repo, []provider.ImageProvider{unavailable, rateLimited, working}, pers, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourceFresh, outcome.Source)
	require.Len(t, outcome.Images, 5)
	assert.Equal(t, 5, outcome.Fresh)
	assert.Equal(t, 0, outcome.Cached)

	assert.Equal(t, 1, unavailable.calls)
	assert.Equal(t, 1, rateLimited.calls)
	assert.Equal(t, 1, working.calls)

	// Downloaded images come back re-hosted and get cached.
	assert.Equal(t, 1, pers.calls)
	assert.Equal(t, "http://storage.local/pixabay-0", outcome.Images[0].LocalURL)
	require.Len(t, repo.upserted, 1)
}

func TestOrchestratorMixedCacheAndFresh(t *testing.T) {
	repo := &fakeRepo{cached: records("cached-unsplash", 2)}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 10)}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourceMixed, outcome.Source)
	assert.Len(t, outcome.Images, 5)
	assert.Equal(t, 2, outcome.Cached)
	assert.Equal(t, 3, outcome.Fresh)
	assert.Equal(t, 5, outcome.Total)

	// The provider is only asked for what the cache could not supply.
	assert.Equal(t, 3, prov.lastLimit)
}

func TestOrchestratorAllProvidersFailServesPlaceholders(t *testing.T) {
	repo := &fakeRepo{}
	failing := &fakeProvider{name: "unsplash", err: provider.RequestFailed("unsplash", 500)}

	o := NewOrchestrator(repo, []provider.ImageProvider{failing}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourcePlaceholder, outcome.Source)
	require.Len(t, outcome.Images, 3)
	for _, img := range outcome.Images {
		assert.Equal(t, models.SourcePlaceholder, img.Source)
	}
}

func TestOrchestratorPlaceholderCountBoundedByLimit(t *testing.T) {
	o := NewOrchestrator(&fakeRepo{}, nil, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 2, true)

	assert.Equal(t, models.ResponseSourcePlaceholder, outcome.Source)
	assert.Len(t, outcome.Images, 2)
}

func TestOrchestratorLookupErrorTreatedAsMiss(t *testing.T) {
	repo := &fakeRepo{lookupErr: errors.New("connection reset")}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 5)}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourceFresh, outcome.Source)
	assert.Len(t, outcome.Images, 5)
}

func TestOrchestratorUpsertFailureDoesNotFailSearch(t *testing.T) {
	repo := &fakeRepo{upsertErr: errors.New("unique violation")}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 5)}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Equal(t, models.ResponseSourceFresh, outcome.Source)
	assert.Len(t, outcome.Images, 5)
}

func TestOrchestratorEnqueuesWhenDownloadSkipped(t *testing.T) {
	repo := &fakeRepo{}
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 5)}
	pers := &fakePersister{}
	q := &fakeQueue{}

	o := NewOrchestrator(repo, []provider.ImageProvider{prov}, pers, q, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, false)

	assert.Equal(t, models.ResponseSourceFresh, outcome.Source)
	assert.Zero(t, pers.calls, "inline persistence must be skipped")

	require.Len(t, q.published, 1)
	assert.Equal(t, queue.TaskTypePersistImages, q.published[0].Type)
	assert.NotEmpty(t, q.published[0].ID)

	// Images keep their remote URLs until the worker re-hosts them.
	assert.Empty(t, outcome.Images[0].LocalURL)
}

func TestOrchestratorNilQueueSkipsEnqueue(t *testing.T) {
	prov := &fakeProvider{name: "unsplash", images: records("unsplash", 5)}

	o := NewOrchestrator(&fakeRepo{}, []provider.ImageProvider{prov}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, false)

	assert.Equal(t, models.ResponseSourceFresh, outcome.Source)
	assert.Len(t, outcome.Images, 5)
}

func TestOrchestratorTruncatesOverDelivery(t *testing.T) {
	// A provider that ignores the requested limit must not inflate the
	// response beyond it.
	over := &overDeliveringProvider{images: records("unsplash", 8)}

	o := NewOrchestrator(&fakeRepo{}, []provider.ImageProvider{over}, &fakePersister{}, nil, testSearchConfig())
	outcome := o.Search(context.Background(), "paris", "travel", 5, true)

	assert.Len(t, outcome.Images, 5)
	assert.Equal(t, 8, outcome.Total)
}

type overDeliveringProvider struct {
	images []models.ImageRecord
}

func (o *overDeliveringProvider) Name() string { return "unsplash" }

func (o *overDeliveringProvider) Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error) {
	return o.images, nil
}
