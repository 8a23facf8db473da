// Package api exposes the HTTP JSON interface for news moderation, source
// management, settings, and manual fetch triggering.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"murrasil/internal/config"
	"murrasil/internal/model"
	"murrasil/internal/storage"
)

// Runner triggers one fetch pipeline pass.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// ArticleWriter generates a full Arabic article for an approved item with
// the given model.
type ArticleWriter interface {
	Generate(ctx context.Context, model, titleAr, summaryAr, sourceName string) (string, error)
}

// Publisher pushes an approved item to an external channel.
type Publisher interface {
	Publish(item *model.NewsItem)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	store     storage.Storage
	runner    Runner
	writer    ArticleWriter
	publisher Publisher
	cfg       *config.Config
	log       *slog.Logger
}

// New creates a Server. publisher may be nil when channel publishing is not
// configured.
func New(store storage.Storage, runner Runner, writer ArticleWriter, publisher Publisher, cfg *config.Config, log *slog.Logger) *Server {
	return &Server{
		store:     store,
		runner:    runner,
		writer:    writer,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/news", s.listNews)
		api.GET("/news/counts", s.newsCounts)
		api.POST("/news/fetch", s.triggerFetch)
		api.POST("/news/:id/approve", s.approveNews)
		api.POST("/news/:id/reject", s.rejectNews)
		api.POST("/news/:id/restore", s.restoreNews)

		api.GET("/sources", s.listSources)
		api.POST("/sources", s.createSource)
		api.PUT("/sources/:id", s.toggleSource)
		api.DELETE("/sources/:id", s.deleteSource)

		api.GET("/settings", s.getSettings)
		api.POST("/settings", s.updateSettings)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.registerStatic(r)

	return r
}

// registerStatic serves the moderation UI when a static directory exists.
func (s *Server) registerStatic(r *gin.Engine) {
	if s.cfg.StaticDir == "" {
		return
	}
	index := filepath.Join(s.cfg.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.log.Warn("static UI not found, serving API only", "dir", s.cfg.StaticDir)
		return
	}
	r.Static("/static", s.cfg.StaticDir)
	r.GET("/", func(c *gin.Context) {
		c.File(index)
	})
}

// Serve runs the HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.log.Info("http server listening", "addr", s.cfg.HTTPAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
