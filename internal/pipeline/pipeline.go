// Package pipeline implements the fetch-and-enrich run: one pass over all
// enabled sources, deduplicating by link hash, enriching new entries, and
// persisting each item as it is produced.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"murrasil/internal/enrich"
	"murrasil/internal/fetcher"
	"murrasil/internal/metrics"
	"murrasil/internal/model"
	"murrasil/internal/storage"
)

// ErrRunInProgress is returned when Run is called while a previous run has
// not finished. Overlapping runs are skipped, never queued.
var ErrRunInProgress = errors.New("fetch run already in progress")

// Enricher produces Arabic enrichment for one feed entry.
type Enricher interface {
	Enrich(ctx context.Context, title, content string) (*enrich.Result, error)
}

// Pipeline orchestrates feed fetching, enrichment, and persistence.
type Pipeline struct {
	store    storage.Storage
	fetcher  *fetcher.Fetcher
	enricher Enricher
	log      *slog.Logger
	pacing   time.Duration
	running  atomic.Bool
}

// New creates a Pipeline. pacing is the fixed delay applied after every
// enrichment call to stay under the model API's request rate ceiling.
func New(store storage.Storage, f *fetcher.Fetcher, e Enricher, log *slog.Logger, pacing time.Duration) *Pipeline {
	return &Pipeline{
		store:    store,
		fetcher:  f,
		enricher: e,
		log:      log,
		pacing:   pacing,
	}
}

// Run performs one full pass over all enabled sources and returns the number
// of newly inserted items. Per-source and per-entry failures are logged and
// contained; only a failure to list sources aborts the run. A second Run
// while one is in flight returns ErrRunInProgress immediately.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	if !p.running.CompareAndSwap(false, true) {
		return 0, ErrRunInProgress
	}
	defer p.running.Store(false)

	start := time.Now()
	p.log.Info("starting fetch run")

	sources, err := p.store.ListEnabledSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled sources: %w", err)
	}

	total := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		total += p.processSource(ctx, src)
	}

	metrics.FetchRunsTotal.Inc()
	metrics.FetchRunDuration.Observe(time.Since(start).Seconds())
	p.log.Info("fetch run completed", "inserted", total, "sources", len(sources))
	return total, nil
}

// processSource fetches and ingests one feed. All failures are local: they
// are logged and the source simply contributes fewer (or zero) items.
func (p *Pipeline) processSource(ctx context.Context, src model.Source) int {
	feed, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		p.log.Error("fetch source", "source", src.Name, "url", src.URL, "error", err)
		metrics.SourceFailuresTotal.WithLabelValues(src.Name).Inc()
		return 0
	}

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, entry := range feed.Items {
		if ctx.Err() != nil {
			return inserted
		}
		if entry.Link == "" {
			continue
		}

		id := fetcher.ItemID(entry.Link)
		exists, err := p.store.NewsExists(ctx, id)
		if err != nil {
			p.log.Error("check duplicate", "source", src.Name, "id", id, "error", err)
			continue
		}
		if exists {
			continue
		}

		result, err := p.enricher.Enrich(ctx, entry.Title, fetcher.ItemSummary(entry))
		p.pace(ctx)
		if err != nil {
			p.log.Error("enrich entry", "source", src.Name, "link", entry.Link, "error", err)
			metrics.EnrichmentFailuresTotal.Inc()
			continue
		}

		item := model.NewsItem{
			ID:          id,
			TitleAr:     result.TitleAr,
			SummaryAr:   result.SummaryAr,
			SourceName:  src.Name,
			SourceURL:   src.URL,
			OriginalURL: entry.Link,
			PublishedAt: fetcher.ItemPublished(entry, now),
			FetchedAt:   now,
			Category:    result.Category,
			Status:      model.StatusNew,
		}
		if err := p.store.InsertNews(ctx, &item); err != nil {
			p.log.Error("insert news", "source", src.Name, "id", id, "error", err)
			continue
		}
		inserted++
		metrics.ItemsInsertedTotal.WithLabelValues(src.Name).Inc()
	}

	if inserted > 0 {
		p.log.Info("source ingested", "source", src.Name, "inserted", inserted)
	}
	return inserted
}

// pace waits the fixed inter-call delay, cutting the wait short when the
// context is cancelled.
func (p *Pipeline) pace(ctx context.Context) {
	if p.pacing <= 0 {
		return
	}
	select {
	case <-time.After(p.pacing):
	case <-ctx.Done():
	}
}
