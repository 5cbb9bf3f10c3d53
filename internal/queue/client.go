package queue

import (
	"context"
	"encoding/json"

	"github.com/tripkit/image-search/internal/db/models"
)

type TaskType string

const (
	// TaskTypePersistImages asks the background worker to download a batch of
	// freshly fetched images and re-host them in blob storage.
	TaskTypePersistImages TaskType = "persist_images"
)

type Task struct {
	ID   string          `json:"id"`
	Type TaskType        `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PersistImagesData is the payload of a persist_images task.
type PersistImagesData struct {
	Query    string               `json:"query"`
	Category string               `json:"category"`
	Images   []models.ImageRecord `json:"images"`
}

// ProcessFunc is a function that processes a task
type ProcessFunc func(ctx context.Context, task Task) error

// Client defines the interface for queue operations
type Client interface {
	Publish(ctx context.Context, task Task) error
	Consume(ctx context.Context, processFunc ProcessFunc) error

	// Close closes the queue connection
	Close() error
}
