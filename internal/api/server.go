// Package api serves the title service over HTTP.
//
// Routes follow the /api layout of the title web app. Every read goes through the
// engine's failover and names the node that answered in the X-Served-By
// header; a fragment answers only for its own partition.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/engine"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/metrics"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
)

// ServedByHeader names the node that answered a read.
const ServedByHeader = "X-Served-By"

// Server is the HTTP front of one deployment.
type Server struct {
	engine   *engine.Engine
	replayer *recovery.Replayer
	router   *gin.Engine
}

// New builds the router. gatherer may be nil, which disables /metrics.
func New(e *engine.Engine, replayer *recovery.Replayer, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		engine:   e,
		replayer: replayer,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger())
	s.routes(gatherer)
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	r := s.router

	r.GET("/api/health", s.handleHealth)

	movies := r.Group("/api/movies")
	movies.GET("", s.handleList)
	movies.GET("/search", s.handleSearch)
	movies.GET("/:tconst", s.handleGet)
	movies.POST("", s.handleCreate)
	movies.PUT("/:tconst", s.handleUpdate)
	movies.DELETE("/:tconst", s.handleDelete)

	reports := r.Group("/api/reports")
	reports.GET("/top-genres", s.handleReport(reportTopGenres))
	reports.GET("/most-titles-year", s.handleReport(reportMostTitlesYear))
	reports.GET("/adult-count", s.handleReport(reportAdultCount))

	r.GET("/api/recovery", s.handleRecoveryList)
	r.POST("/api/recovery/replay", s.handleRecoveryReplay)
	r.GET("/api/nodes", s.handleNodes)
	r.GET("/api/verify/:tconst", s.handleVerify)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		slog.Debug("http request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string          `json:"error"`
	Code  model.ErrorCode `json:"code,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var code model.ErrorCode

	var merr *model.Error
	if errors.As(err, &merr) {
		code = merr.Code
		switch merr.Code {
		case model.CodeValidation:
			status = http.StatusBadRequest
		case model.CodeAllNodesUnavailable, model.CodeNodeUnavailable:
			status = http.StatusServiceUnavailable
		case model.CodeQueuePersistence:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, errorResponse{Error: err.Error(), Code: code})
}
