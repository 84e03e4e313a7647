// Package server exposes the analysis pipeline over HTTP and a websocket chat.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/pipeline"
	"github.com/xhad/medilex/pkg/rag"
)

type Analyzer interface {
	Analyze(ctx context.Context, in pipeline.Input) (*models.Analysis, error)
}

type QueryAnswerer interface {
	AnswerTopK(ctx context.Context, question string, topK int) (*rag.Answer, error)
}

type HistoryReader interface {
	Get(ctx context.Context, id string) (*models.Analysis, error)
	List(ctx context.Context, limit int) ([]*models.Analysis, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]models.SearchResult, error)
}

type ChatEngine interface {
	Chat(ctx context.Context, query string, docs []models.Document) (string, error)
	ChatStream(ctx context.Context, query string, docs []models.Document) (<-chan string, <-chan error)
}

type URLIngester interface {
	IngestURL(ctx context.Context, url string) (rag.IngestReport, error)
}

type Config struct {
	Addr           string
	RequestsPerMin int // per client IP on /v1, default 30
	MaxUploadBytes int64
	Streaming      bool
	ShutdownGrace  time.Duration
	Logger         *zerolog.Logger
}

// Deps are the components behind the routes. Analyzer and Answerer are
// required; the rest disable their routes or features when nil.
type Deps struct {
	Analyzer  Analyzer
	Answerer  QueryAnswerer
	History   HistoryReader
	Retriever Retriever
	Chat      ChatEngine
	Ingester  URLIngester
}

type Server struct {
	config Config
	deps   Deps
	logger zerolog.Logger
	router chi.Router
}

func New(config Config, deps Deps) (*Server, error) {
	if deps.Analyzer == nil || deps.Answerer == nil {
		return nil, errors.New("server needs an analyzer and an answerer")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.RequestsPerMin <= 0 {
		config.RequestsPerMin = 30
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = 10 * time.Second
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logging.Or(config.Logger, "server"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebSocket)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.config.RequestsPerMin, time.Minute))
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/query", s.handleQuery)
		r.Get("/history", s.handleHistoryList)
		r.Get("/history/{id}", s.handleHistoryGet)
	})
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()
	s.logger.Info().Msg("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
