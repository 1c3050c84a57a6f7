package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"filealchemist/internal/models"
	"filealchemist/internal/preferences"
	"filealchemist/internal/queue"
)

type Server struct {
	cfg        *models.Config
	router     *gin.Engine
	http       *http.Server
	queue      *queue.Queue
	dispatcher queue.Dispatcher
	prefs      *preferences.Store
}

func NewServer(cfg *models.Config, q *queue.Queue, d queue.Dispatcher, prefs *preferences.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = 8 << 20

	s := &Server{cfg: cfg, router: r, queue: q, dispatcher: d, prefs: prefs}

	r.GET("/", s.handleIndex)

	jobs := r.Group("/jobs")
	jobs.POST("", s.handleUpload)
	jobs.GET("", s.handleListJobs)
	jobs.DELETE("", s.handleClearJobs)
	jobs.POST("/convert", s.handleConvert)
	jobs.GET("/:id", s.handleGetJob)
	jobs.DELETE("/:id", s.handleDeleteJob)
	jobs.POST("/:id/retry", s.handleRetryJob)
	jobs.GET("/:id/download", s.handleDownload)

	r.GET("/archive", s.handleArchive)
	r.GET("/preferences", s.handleGetPreferences)
	r.PUT("/preferences", s.handlePutPreferences)

	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ServerAddr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
