// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"murrasil/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	InsertNews(ctx context.Context, item *model.NewsItem) error
	NewsExists(ctx context.Context, id string) (bool, error)
	GetNews(ctx context.Context, id string) (*model.NewsItem, error)
	ListNews(ctx context.Context, status model.Status, page, limit int) ([]model.NewsItem, int, error)
	CountNewsByStatus(ctx context.Context) (map[model.Status]int, error)
	UpdateNewsStatus(ctx context.Context, id string, status model.Status) error
	ApproveNews(ctx context.Context, id string, articleAr string) error

	CreateSource(ctx context.Context, src *model.Source) error
	ListSources(ctx context.Context) ([]model.Source, error)
	ListEnabledSources(ctx context.Context) ([]model.Source, error)
	SetSourceEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteSource(ctx context.Context, id int64) error
	SeedDefaultSources(ctx context.Context) error

	UpsertSetting(ctx context.Context, key, value string) error
	AllSettings(ctx context.Context) (map[string]string, error)

	Close() error
}
