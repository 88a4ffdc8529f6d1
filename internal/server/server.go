// Package server provides the HTTP API for the HiddenClasses pipeline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/hiddenclasses/internal/config"
	"github.com/hyperjump/hiddenclasses/internal/indexer"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/pipeline"
	"github.com/hyperjump/hiddenclasses/internal/storage"
	"github.com/hyperjump/hiddenclasses/pkg/utils"
	"go.uber.org/zap"
)

// Runner runs the publish pipeline once.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// IndexBuilder rebuilds the vector index.
type IndexBuilder interface {
	Build(ctx context.Context) (indexer.BuildStats, error)
}

// Replier runs the reply flow.
type Replier interface {
	Run(ctx context.Context, publish bool) ([]models.GeneratedReply, error)
}

// StatusFunc reports the persisted state.
type StatusFunc func() (*storage.Status, error)

// Server is the HTTP server for the pipeline API.
type Server struct {
	runner  Runner
	indexer IndexBuilder
	replier Replier
	status  StatusFunc
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server

	// busy serialises pipeline runs, index builds and reply runs.
	busy sync.Mutex
}

// NewServer creates a server with the given dependencies. Nil dependencies
// make their endpoints answer 501.
func NewServer(
	runner Runner,
	idx IndexBuilder,
	replier Replier,
	status StatusFunc,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		runner:  runner,
		indexer: idx,
		replier: replier,
		status:  status,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Post("/index", s.handleIndex)
		r.Post("/replies", s.handleReplies)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
