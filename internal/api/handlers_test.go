package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"murrasil/internal/config"
	"murrasil/internal/model"
	"murrasil/internal/pipeline"
	"murrasil/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	count int
	err   error
}

func (f *fakeRunner) Run(_ context.Context) (int, error) {
	return f.count, f.err
}

type fakeWriter struct {
	article string
	err     error
	model   string
}

func (f *fakeWriter) Generate(_ context.Context, model, _, _, _ string) (string, error) {
	f.model = model
	return f.article, f.err
}

type fakePublisher struct {
	published []*model.NewsItem
}

func (f *fakePublisher) Publish(item *model.NewsItem) {
	f.published = append(f.published, item)
}

type testEnv struct {
	store     *storage.SQLite
	runner    *fakeRunner
	writer    *fakeWriter
	publisher *fakePublisher
	router    *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:     store,
		runner:    &fakeRunner{},
		writer:    &fakeWriter{article: "نص المقال"},
		publisher: &fakePublisher{},
	}
	cfg := &config.Config{
		AIModel:              "gpt-4o-mini",
		FetchIntervalMinutes: 15,
		MaxNewsAgeHours:      48,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.router = New(store, env.runner, env.writer, env.publisher, cfg, log).Router()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) seedNews(t *testing.T, id string, status model.Status) {
	t.Helper()
	item := &model.NewsItem{
		ID:          id,
		TitleAr:     "عنوان",
		SummaryAr:   "ملخص",
		SourceName:  "AI Weekly",
		SourceURL:   "https://ai-weekly.example.com/rss",
		OriginalURL: "https://ai-weekly.example.com/" + id,
		PublishedAt: "2025-03-10T09:00:00Z",
		FetchedAt:   "2025-03-10T10:00:00Z",
		Category:    "models",
		Status:      status,
	}
	if err := env.store.InsertNews(context.Background(), item); err != nil {
		t.Fatalf("seed news: %v", err)
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestListNews(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.seedNews(t, fmt.Sprintf("item-%d", i), model.StatusNew)
	}
	env.seedNews(t, "approved-item", model.StatusApproved)

	w := env.do(t, http.MethodGet, "/api/news?status=new&page=1&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var page newsPage
	decodeBody(t, w, &page)
	if diff := cmp.Diff(3, page.Total); diff != "" {
		t.Errorf("total mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, len(page.Data)); diff != "" {
		t.Errorf("page size mismatch (-want +got):\n%s", diff)
	}

	w = env.do(t, http.MethodGet, "/api/news?status=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus status: code = %d, want 400", w.Code)
	}

	// Empty result is a JSON array, not null.
	w = env.do(t, http.MethodGet, "/api/news?status=rejected", "")
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Errorf("empty page not rendered as []: %s", w.Body.String())
	}
}

func TestNewsCounts(t *testing.T) {
	env := newTestEnv(t)
	env.seedNews(t, "a", model.StatusNew)
	env.seedNews(t, "b", model.StatusApproved)

	w := env.do(t, http.MethodGet, "/api/news/counts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var counts map[string]int
	decodeBody(t, w, &counts)
	want := map[string]int{"new": 1, "approved": 1, "rejected": 0}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestApproveNews(t *testing.T) {
	env := newTestEnv(t)
	env.seedNews(t, "n1", model.StatusNew)

	w := env.do(t, http.MethodPost, "/api/news/n1/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	item, err := env.store.GetNews(context.Background(), "n1")
	if err != nil {
		t.Fatalf("get news: %v", err)
	}
	if item.Status != model.StatusApproved {
		t.Errorf("status = %q, want approved", item.Status)
	}
	if item.ArticleAr != "نص المقال" {
		t.Errorf("article = %q, want generated text", item.ArticleAr)
	}

	if len(env.publisher.published) != 1 {
		t.Fatalf("expected 1 published item, got %d", len(env.publisher.published))
	}
	if env.publisher.published[0].ArticleAr != "نص المقال" {
		t.Errorf("published article = %q", env.publisher.published[0].ArticleAr)
	}
	if env.writer.model != "gpt-4o-mini" {
		t.Errorf("writer model = %q, want config default", env.writer.model)
	}
}

func TestApproveNewsNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/news/ghost/approve", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestApproveNewsGenerationFailureBlocksTransition(t *testing.T) {
	env := newTestEnv(t)
	env.seedNews(t, "n1", model.StatusNew)
	env.writer.err = errors.New("model unavailable")

	w := env.do(t, http.MethodPost, "/api/news/n1/approve", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	item, err := env.store.GetNews(context.Background(), "n1")
	if err != nil {
		t.Fatalf("get news: %v", err)
	}
	if item.Status != model.StatusNew {
		t.Errorf("status = %q, generation failure must not change it", item.Status)
	}
	if item.ArticleAr != "" {
		t.Errorf("article = %q, want empty", item.ArticleAr)
	}
	if len(env.publisher.published) != 0 {
		t.Error("failed approval must not publish")
	}
}

func TestApproveUsesAIModelSetting(t *testing.T) {
	env := newTestEnv(t)
	env.seedNews(t, "n1", model.StatusNew)
	if err := env.store.UpsertSetting(context.Background(), model.SettingAIModel, "gpt-4o"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if w := env.do(t, http.MethodPost, "/api/news/n1/approve", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env.writer.model != "gpt-4o" {
		t.Errorf("writer model = %q, want stored setting", env.writer.model)
	}
}

func TestRejectAndRestore(t *testing.T) {
	env := newTestEnv(t)
	env.seedNews(t, "n1", model.StatusNew)

	if w := env.do(t, http.MethodPost, "/api/news/n1/reject", ""); w.Code != http.StatusOK {
		t.Fatalf("reject status = %d", w.Code)
	}
	item, _ := env.store.GetNews(context.Background(), "n1")
	if item.Status != model.StatusRejected {
		t.Errorf("status = %q, want rejected", item.Status)
	}

	if w := env.do(t, http.MethodPost, "/api/news/n1/restore", ""); w.Code != http.StatusOK {
		t.Fatalf("restore status = %d", w.Code)
	}
	item, _ = env.store.GetNews(context.Background(), "n1")
	if item.Status != model.StatusNew {
		t.Errorf("status = %q, want new", item.Status)
	}

	if w := env.do(t, http.MethodPost, "/api/news/ghost/reject", ""); w.Code != http.StatusNotFound {
		t.Errorf("reject missing: status = %d, want 404", w.Code)
	}
}

func TestTriggerFetch(t *testing.T) {
	env := newTestEnv(t)
	env.runner.count = 7

	w := env.do(t, http.MethodPost, "/api/news/fetch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Fetched int `json:"fetched"`
	}
	decodeBody(t, w, &resp)
	if diff := cmp.Diff(7, resp.Fetched); diff != "" {
		t.Errorf("fetched mismatch (-want +got):\n%s", diff)
	}

	env.runner.err = pipeline.ErrRunInProgress
	if w := env.do(t, http.MethodPost, "/api/news/fetch", ""); w.Code != http.StatusConflict {
		t.Errorf("overlapping fetch: status = %d, want 409", w.Code)
	}
}

func TestSourceEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/sources", `{"name":"AI Weekly","url":"https://ai-weekly.example.com/rss"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created model.Source
	decodeBody(t, w, &created)
	if created.ID == 0 || !created.Enabled {
		t.Errorf("created source = %+v, want assigned id and enabled", created)
	}

	if w := env.do(t, http.MethodPost, "/api/sources", `{"name":"no url"}`); w.Code != http.StatusBadRequest {
		t.Errorf("create without url: status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/sources", "")
	var sources []model.Source
	decodeBody(t, w, &sources)
	if diff := cmp.Diff(1, len(sources)); diff != "" {
		t.Errorf("source count mismatch (-want +got):\n%s", diff)
	}

	path := fmt.Sprintf("/api/sources/%d", created.ID)
	if w := env.do(t, http.MethodPut, path, `{"enabled":false}`); w.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", w.Code)
	}
	sources = nil
	decodeBody(t, env.do(t, http.MethodGet, "/api/sources", ""), &sources)
	if sources[0].Enabled {
		t.Error("source still enabled after toggle")
	}

	if w := env.do(t, http.MethodPut, "/api/sources/999", `{"enabled":true}`); w.Code != http.StatusNotFound {
		t.Errorf("toggle missing: status = %d, want 404", w.Code)
	}

	if w := env.do(t, http.MethodDelete, path, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, path, ""); w.Code != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var settings map[string]string
	decodeBody(t, w, &settings)
	want := map[string]string{
		model.SettingAIModel:       "gpt-4o-mini",
		model.SettingFetchInterval: "15",
		model.SettingMaxNewsAge:    "48",
	}
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("default settings mismatch (-want +got):\n%s", diff)
	}

	if w := env.do(t, http.MethodPost, "/api/settings", `{"fetch_interval_minutes":"30"}`); w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	settings = nil
	decodeBody(t, env.do(t, http.MethodGet, "/api/settings", ""), &settings)
	want[model.SettingFetchInterval] = "30"
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("overridden settings mismatch (-want +got):\n%s", diff)
	}
}
