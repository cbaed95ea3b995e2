// File: internal/server/server.go

// Package server hosts the checkout analysis HTTP API: job submission and
// retrieval under /api/v1, plus a WebSocket progress stream per analysis.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
	"github.com/nullwave7/gatescout/internal/agent"
	"github.com/nullwave7/gatescout/internal/config"
	"github.com/nullwave7/gatescout/internal/extraction"
	"github.com/nullwave7/gatescout/internal/observability"
	"github.com/nullwave7/gatescout/internal/orchestrator"
	"github.com/nullwave7/gatescout/internal/provider"
	"github.com/nullwave7/gatescout/internal/registry"
	"github.com/nullwave7/gatescout/internal/store"
)

// Server hosts the analysis API and owns the background job workers.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	repo       schemas.AnalysisRepository
	analyzer   *agent.Analyzer
	broker     *Broker
	handlers   *Handlers
	httpServer *http.Server
	dbCleanup  func()

	// jobCtx bounds all background analyses; cancelled on shutdown.
	jobCtx    context.Context
	jobCancel context.CancelFunc
	jobs      sync.WaitGroup
}

// New wires the server and its dependencies from the loaded configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("server requires configuration and logger")
	}

	providerClient, err := provider.NewClient(cfg.Provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider client: %w", err)
	}

	executor, err := orchestrator.New(providerClient, extraction.NewExtractor(logger), cfg.Analysis.TerminationGrace, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	var (
		repo      schemas.AnalysisRepository
		dbCleanup func()
	)
	if cfg.Database.URL == "" {
		logger.Warn("Database URL (GATESCOUT_DATABASE_URL) is not set. Analyses are tracked in memory and lost on restart.")
		repo = registry.New(logger)
	} else {
		pool, cleanup, err := store.NewPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pgStore, err := store.New(ctx, pool, logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		if err := pgStore.InitSchema(ctx); err != nil {
			cleanup()
			return nil, err
		}
		logger.Info("Database connection established successfully.")
		repo = pgStore
		dbCleanup = cleanup
	}

	analyzer, err := agent.NewAnalyzer(executor, repo, cfg.Analysis, cfg.Provider, logger)
	if err != nil {
		if dbCleanup != nil {
			dbCleanup()
		}
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	jobCtx, jobCancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		logger:    logger.Named("server"),
		repo:      repo,
		analyzer:  analyzer,
		broker:    NewBroker(logger),
		dbCleanup: dbCleanup,
		jobCtx:    jobCtx,
		jobCancel: jobCancel,
	}
	s.handlers = NewHandlers(logger, repo, s.startAnalysis)
	return s, nil
}

// Start runs the HTTP listener until ctx is cancelled, then shuts down
// gracefully: in-flight analyses are cancelled (their remote sessions still
// get terminated) and waited for before the database connection closes.
func (s *Server) Start(ctx context.Context) error {
	defer observability.Sync()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.ListenAddress,
		Handler: s.routes(),
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		s.logger.Info("Received shutdown signal, shutting down gracefully...")

		// Stop in-flight analyses first so their sessions are released.
		s.jobCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}

		s.jobs.Wait()

		if s.dbCleanup != nil {
			s.dbCleanup()
		}
		close(idleConnsClosed)
	}()

	s.logger.Info("Checkout analysis server starting", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		s.jobCancel()
		s.jobs.Wait()
		if s.dbCleanup != nil {
			s.dbCleanup()
		}
		return err
	}

	<-idleConnsClosed
	s.logger.Info("Server stopped.")
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// WebSocket routes stay outside the logger and timeout group: progress
	// streams are long-lived and must not inherit the request timeout.
	r.Get("/ws/v1/analyses/{analysisID}/progress", s.handleProgressSocket())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		s.handlers.RegisterRoutes(r)
	})
	return r
}

// startAnalysis runs one registered job in the background, streaming progress
// through the broker and broadcasting the outcome when the job settles.
func (s *Server) startAnalysis(job *schemas.AnalysisJob, budget time.Duration) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if err := s.analyzer.Process(s.jobCtx, job.ID, budget, s.broker.SinkFor(job.ID)); err != nil {
			s.logger.Error("Analysis job processing failed.",
				zap.String("analysis_id", job.ID), zap.Error(err))
			return
		}
		s.publishOutcome(job.ID)
	}()
}

func (s *Server) publishOutcome(analysisID string) {
	job, err := s.repo.Get(context.Background(), analysisID)
	if err != nil {
		s.logger.Error("Failed to load finished analysis for progress broadcast.",
			zap.String("analysis_id", analysisID), zap.Error(err))
		return
	}
	event := statusEvent(job)
	event.Record = job.Record
	s.broker.Publish(event)
}

// corsMiddleware provides basic CORS support for dashboard clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Restrict the origin before exposing the server beyond localhost.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
