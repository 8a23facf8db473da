// Package fetcher handles RSS feed downloading and parsing.
package fetcher

import (
	"context"
	"crypto/md5" //nolint:gosec // dedup key, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS feeds.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 30 * time.Second,
	}
}

// Fetch downloads and parses an RSS feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "MurrasilBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemID returns the stable identifier for an article link: the hex MD5 of
// the link itself. The same link always maps to the same ID, which is what
// makes re-fetching idempotent.
func ItemID(link string) string {
	h := md5.Sum([]byte(link)) //nolint:gosec // see import comment
	return hex.EncodeToString(h[:])
}

// ItemSummary returns the best available short text for a feed item:
// the summary/description, falling back through content.
func ItemSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// ItemPublished returns the item's publish timestamp as given by the feed,
// or fallback when the feed omits one.
func ItemPublished(item *gofeed.Item, fallback string) string {
	if item.Published != "" {
		return item.Published
	}
	return fallback
}
