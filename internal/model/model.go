// Package model defines the domain types used across the application.
package model

// Status is the moderation state of a news item.
type Status string

// Moderation states. Newly ingested items always start as StatusNew.
const (
	StatusNew      Status = "new"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known moderation states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CategoryOther is the fallback category for entries the model could not
// classify (or classified with an unrecognized label).
const CategoryOther = "other"

// Categories is the fixed label set the enrichment model chooses from.
var Categories = []string{"models", "research", "tools", "startups", "hardware", "policy"}

// NormalizeCategory maps a model-provided category onto the fixed label set,
// returning CategoryOther for anything unrecognized.
func NormalizeCategory(c string) string {
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// NewsItem is one ingested and enriched feed entry.
// ID is the hex MD5 of the original article URL, which makes ingestion
// idempotent across runs and restarts.
type NewsItem struct {
	ID          string `json:"id"`
	TitleAr     string `json:"title_ar"`
	SummaryAr   string `json:"summary_ar"`
	ArticleAr   string `json:"article_ar"`
	SourceName  string `json:"source_name"`
	SourceURL   string `json:"source_url"`
	OriginalURL string `json:"original_url"`
	PublishedAt string `json:"published_at"`
	FetchedAt   string `json:"fetched_at"`
	Category    string `json:"category"`
	Status      Status `json:"status"`
}

// Source is an RSS feed the pipeline pulls from.
type Source struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// Setting is a persisted key/value override of a configuration default.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Setting keys recognized by the application.
const (
	SettingAIModel       = "ai_model"
	SettingFetchInterval = "fetch_interval_minutes"
	SettingMaxNewsAge    = "max_news_age_hours"
)
