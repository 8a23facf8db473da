package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"murrasil/internal/model"
	"murrasil/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// InsertNews stores a newly ingested item. The item's ID must be unique;
// inserting an existing ID is an error, callers dedup with NewsExists first.
func (s *SQLite) InsertNews(ctx context.Context, item *model.NewsItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO news
		 (id, title_ar, summary_ar, article_ar, source_name, source_url, original_url, published_at, fetched_at, category, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.TitleAr, item.SummaryAr, nullIfEmpty(item.ArticleAr),
		item.SourceName, item.SourceURL, item.OriginalURL,
		item.PublishedAt, item.FetchedAt, item.Category, string(item.Status),
	)
	if err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	return nil
}

// NewsExists reports whether an item with the given ID is already stored.
func (s *SQLite) NewsExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM news WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check news exists: %w", err)
	}
	return true, nil
}

// GetNews returns a single news item by its ID.
func (s *SQLite) GetNews(ctx context.Context, id string) (*model.NewsItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title_ar, summary_ar, article_ar, source_name, source_url, original_url, published_at, fetched_at, category, status
		 FROM news WHERE id = ?`, id,
	)
	item, err := scanNews(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListNews returns one page of items in the given status, newest first by
// published_at, along with the total count for that status.
func (s *SQLite) ListNews(ctx context.Context, status model.Status, page, limit int) ([]model.NewsItem, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title_ar, summary_ar, article_ar, source_name, source_url, original_url, published_at, fetched_at, category, status
		 FROM news WHERE status = ? ORDER BY published_at DESC LIMIT ? OFFSET ?`,
		string(status), limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query news: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.NewsItem
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate news: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM news WHERE status = ?`, string(status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count news: %w", err)
	}
	return items, total, nil
}

// CountNewsByStatus returns item counts keyed by status, with all three
// statuses present even when zero.
func (s *SQLite) CountNewsByStatus(ctx context.Context) (map[model.Status]int, error) {
	counts := map[model.Status]int{
		model.StatusNew:      0,
		model.StatusApproved: 0,
		model.StatusRejected: 0,
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM news GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.Status(st)] = n
	}
	return counts, rows.Err()
}

// UpdateNewsStatus changes the moderation status of an item.
// Returns ErrNotFound when no item has the given ID.
func (s *SQLite) UpdateNewsStatus(ctx context.Context, id string, status model.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE news SET status = ? WHERE id = ?`, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res)
}

// ApproveNews marks an item approved and stores its generated article in a
// single statement.
func (s *SQLite) ApproveNews(ctx context.Context, id string, articleAr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE news SET status = ?, article_ar = ? WHERE id = ?`,
		string(model.StatusApproved), articleAr, id,
	)
	if err != nil {
		return fmt.Errorf("approve news: %w", err)
	}
	return requireRow(res)
}

// CreateSource inserts a new feed source and populates its ID.
func (s *SQLite) CreateSource(ctx context.Context, src *model.Source) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (name, url, enabled) VALUES (?, ?, ?)`,
		src.Name, src.URL, boolToInt(src.Enabled),
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	return nil
}

// ListSources returns all sources in insertion order.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx, `SELECT id, name, url, enabled FROM sources ORDER BY id`)
}

// ListEnabledSources returns only the sources the pipeline should fetch.
func (s *SQLite) ListEnabledSources(ctx context.Context) ([]model.Source, error) {
	return s.querySources(ctx, `SELECT id, name, url, enabled FROM sources WHERE enabled = 1 ORDER BY id`)
}

// SetSourceEnabled toggles a source. Returns ErrNotFound for unknown IDs.
func (s *SQLite) SetSourceEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET enabled = ? WHERE id = ?`, boolToInt(enabled), id,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	return requireRow(res)
}

// DeleteSource removes a source. Stored news items keep their provenance
// fields; there is no foreign key to cascade.
func (s *SQLite) DeleteSource(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return requireRow(res)
}

var defaultSources = []model.Source{
	{Name: "TechCrunch", URL: "https://techcrunch.com/feed/"},
	{Name: "The Verge", URL: "https://www.theverge.com/rss/index.xml"},
	{Name: "VentureBeat AI", URL: "https://venturebeat.com/category/ai/feed/"},
	{Name: "Wired AI", URL: "https://www.wired.com/feed/tag/ai/latest/rss"},
	{Name: "THE DECODER", URL: "https://the-decoder.com/feed/"},
	{Name: "Hugging Face Blog", URL: "https://huggingface.co/blog/feed.xml"},
	{Name: "OpenAI Blog", URL: "https://openai.com/blog/rss/"},
	{Name: "Google AI Blog", URL: "http://googleaiblog.blogspot.com/atom.xml"},
	{Name: "Hacker News", URL: "https://news.ycombinator.com/rss"},
	{Name: "Reddit MachineLearning", URL: "https://www.reddit.com/r/MachineLearning/.rss"},
	{Name: "arXiv cs.AI", URL: "https://arxiv.org/rss/cs.AI"},
	{Name: "arXiv cs.LG", URL: "https://arxiv.org/rss/cs.LG"},
}

// SeedDefaultSources inserts the default feed list when the sources table is
// empty. Safe to call on every startup.
func (s *SQLite) SeedDefaultSources(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return fmt.Errorf("count sources: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, src := range defaultSources {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sources (name, url, enabled) VALUES (?, ?, 1)`,
			src.Name, src.URL,
		); err != nil {
			return fmt.Errorf("seed source %q: %w", src.Name, err)
		}
	}
	return nil
}

// UpsertSetting stores a key/value pair, replacing any existing value.
func (s *SQLite) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// AllSettings returns every stored setting override.
func (s *SQLite) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

func (s *SQLite) querySources(ctx context.Context, query string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		var enabled int
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &enabled); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Enabled = enabled == 1
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNews(row scannable) (*model.NewsItem, error) {
	var item model.NewsItem
	var article sql.NullString
	var status string
	err := row.Scan(
		&item.ID, &item.TitleAr, &item.SummaryAr, &article,
		&item.SourceName, &item.SourceURL, &item.OriginalURL,
		&item.PublishedAt, &item.FetchedAt, &item.Category, &status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan news: %w", err)
	}
	item.ArticleAr = article.String
	item.Status = model.Status(status)
	return &item, nil
}
