package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"murrasil/internal/metrics"
	"murrasil/internal/model"
	"murrasil/internal/pipeline"
	"murrasil/internal/storage"
)

type newsPage struct {
	Data  []model.NewsItem `json:"data"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (s *Server) listNews(c *gin.Context) {
	status := model.Status(c.DefaultQuery("status", string(model.StatusNew)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)
	if page < 1 || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination"})
		return
	}

	items, total, err := s.store.ListNews(c.Request.Context(), status, page, limit)
	if err != nil {
		s.serverError(c, "list news", err)
		return
	}
	if items == nil {
		items = []model.NewsItem{}
	}
	c.JSON(http.StatusOK, newsPage{Data: items, Total: total, Page: page, Limit: limit})
}

func (s *Server) newsCounts(c *gin.Context) {
	counts, err := s.store.CountNewsByStatus(c.Request.Context())
	if err != nil {
		s.serverError(c, "count news", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// approveNews generates the full article and, only when generation succeeds,
// moves the item to approved. Generation failure blocks the transition: the
// item keeps its current status and the caller gets a 502.
func (s *Server) approveNews(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	item, err := s.store.GetNews(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "news item not found"})
		return
	}
	if err != nil {
		s.serverError(c, "get news", err)
		return
	}

	article, err := s.writer.Generate(ctx, s.effectiveModel(c), item.TitleAr, item.SummaryAr, item.SourceName)
	if err != nil {
		s.log.Error("generate article", "id", id, "error", err)
		metrics.ArticlesGeneratedTotal.WithLabelValues("failure").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "article generation failed"})
		return
	}
	metrics.ArticlesGeneratedTotal.WithLabelValues("success").Inc()

	if err := s.store.ApproveNews(ctx, id, article); err != nil {
		s.serverError(c, "approve news", err)
		return
	}

	if s.publisher != nil {
		item.ArticleAr = article
		item.Status = model.StatusApproved
		s.publisher.Publish(item)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "article_ar": article})
}

func (s *Server) rejectNews(c *gin.Context) {
	s.setStatus(c, model.StatusRejected)
}

func (s *Server) restoreNews(c *gin.Context) {
	s.setStatus(c, model.StatusNew)
}

func (s *Server) setStatus(c *gin.Context, status model.Status) {
	err := s.store.UpdateNewsStatus(c.Request.Context(), c.Param("id"), status)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "news item not found"})
		return
	}
	if err != nil {
		s.serverError(c, "update status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// triggerFetch runs the pipeline synchronously, returning the inserted count.
// A run already in flight yields 409 rather than a second concurrent pass.
func (s *Server) triggerFetch(c *gin.Context) {
	count, err := s.runner.Run(c.Request.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "fetch already in progress"})
		return
	}
	if err != nil {
		s.serverError(c, "run fetch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "fetched": count})
}

type sourceCreate struct {
	Name string `json:"name" binding:"required"`
	URL  string `json:"url" binding:"required"`
}

type sourceToggle struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) listSources(c *gin.Context) {
	sources, err := s.store.ListSources(c.Request.Context())
	if err != nil {
		s.serverError(c, "list sources", err)
		return
	}
	if sources == nil {
		sources = []model.Source{}
	}
	c.JSON(http.StatusOK, sources)
}

func (s *Server) createSource(c *gin.Context) {
	var req sourceCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src := model.Source{Name: req.Name, URL: req.URL, Enabled: true}
	if err := s.store.CreateSource(c.Request.Context(), &src); err != nil {
		s.serverError(c, "create source", err)
		return
	}
	c.JSON(http.StatusOK, src)
}

func (s *Server) toggleSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}
	var req sourceToggle
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err = s.store.SetSourceEnabled(c.Request.Context(), id, *req.Enabled)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if err != nil {
		s.serverError(c, "toggle source", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) deleteSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}
	err = s.store.DeleteSource(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if err != nil {
		s.serverError(c, "delete source", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// getSettings returns config defaults overlaid with stored overrides.
func (s *Server) getSettings(c *gin.Context) {
	stored, err := s.store.AllSettings(c.Request.Context())
	if err != nil {
		s.serverError(c, "read settings", err)
		return
	}
	effective := map[string]string{
		model.SettingAIModel:       s.cfg.AIModel,
		model.SettingFetchInterval: strconv.Itoa(s.cfg.FetchIntervalMinutes),
		model.SettingMaxNewsAge:    strconv.Itoa(s.cfg.MaxNewsAgeHours),
	}
	for k, v := range stored {
		effective[k] = v
	}
	c.JSON(http.StatusOK, effective)
}

func (s *Server) updateSettings(c *gin.Context) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	for k, v := range updates {
		if err := s.store.UpsertSetting(ctx, k, v); err != nil {
			s.serverError(c, "upsert setting", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// effectiveModel resolves the article model: the stored ai_model setting
// when present, else the configured default.
func (s *Server) effectiveModel(c *gin.Context) string {
	stored, err := s.store.AllSettings(c.Request.Context())
	if err != nil {
		s.log.Error("read settings", "error", err)
		return s.cfg.AIModel
	}
	if m, ok := stored[model.SettingAIModel]; ok && m != "" {
		return m
	}
	return s.cfg.AIModel
}

func (s *Server) serverError(c *gin.Context, op string, err error) {
	s.log.Error(op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
