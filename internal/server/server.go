// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/deliverylens/internal/analysis"
	"github.com/KaramelBytes/deliverylens/internal/logger"
	"github.com/KaramelBytes/deliverylens/internal/pipeline"
	"github.com/KaramelBytes/deliverylens/internal/predict"
	"github.com/KaramelBytes/deliverylens/internal/ratelimit"
)

// Forecaster answers raw prediction requests.
type Forecaster interface {
	Do(ctx context.Context, in predict.Input) (*predict.Response, error)
}

// Config holds the HTTP-facing knobs.
type Config struct {
	MaxUploadBytes int64
	PageSize       int
	Limiter        ratelimit.Limiter
}

// Server wires handlers to the pipeline.
type Server struct {
	pipe       *pipeline.Pipeline
	forecaster Forecaster
	advisor    *analysis.Advisor
	cfg        Config
}

// New builds a server. forecaster may be nil, in which case /api/v1/predict
// answers 503.
func New(pipe *pipeline.Pipeline, forecaster Forecaster, cfg Config) *Server {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.Noop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	return &Server{pipe: pipe, forecaster: forecaster, advisor: pipe.Advisor, cfg: cfg}
}

// Router returns the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger())

	r.GET("/healthz", s.health)
	v1 := r.Group("/api/v1")
	{
		limited := v1.Group("", rateLimit(s.cfg.Limiter))
		limited.POST("/analyze", s.analyze)
		limited.POST("/predict", s.predict)
		v1.POST("/anomalies/summary", s.summarize)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
