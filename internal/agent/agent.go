// File: internal/agent/agent.go

// Package agent drives checkout analyses end to end. For each target it
// resolves a locale persona, composes the browsing task script, and hands a
// bounded task to the session executor, recording the outcome for stored
// jobs.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nullwave7/gatescout/api/schemas"
	"github.com/nullwave7/gatescout/internal/config"
	"github.com/nullwave7/gatescout/internal/locale"
	"github.com/nullwave7/gatescout/internal/orchestrator"
	"github.com/nullwave7/gatescout/internal/taskscript"
)

// NormalizeTarget turns user input into an absolute store URL. Bare domains
// get an https scheme; anything unparseable is rejected.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("target URL is empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid target URL %q", raw)
	}
	return u.String(), nil
}

// Analyzer runs checkout analyses against live stores. A weighted semaphore
// caps how many remote browser sessions are in flight at once.
type Analyzer struct {
	executor    schemas.BoundedExecutor
	repo        schemas.AnalysisRepository
	sem         *semaphore.Weighted
	cfg         config.AnalysisConfig
	providerCfg config.ProviderConfig
	logger      *zap.Logger
}

// NewAnalyzer wires an Analyzer from its dependencies.
func NewAnalyzer(executor schemas.BoundedExecutor, repo schemas.AnalysisRepository, cfg config.AnalysisConfig, providerCfg config.ProviderConfig, logger *zap.Logger) (*Analyzer, error) {
	if executor == nil {
		return nil, errors.New("agent: executor is required")
	}
	if repo == nil {
		return nil, errors.New("agent: repository is required")
	}
	if logger == nil {
		return nil, errors.New("agent: logger is required")
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Analyzer{
		executor:    executor,
		repo:        repo,
		sem:         semaphore.NewWeighted(maxConcurrent),
		cfg:         cfg,
		providerCfg: providerCfg,
		logger:      logger.Named("agent"),
	}, nil
}

// Run performs a single analysis of targetURL and returns the extracted
// record. A non-positive budget falls back to the configured default. Run
// blocks until a concurrency slot frees up or ctx is cancelled.
func (a *Analyzer) Run(ctx context.Context, targetURL string, budget time.Duration, sink schemas.ProgressSink) (schemas.ExtractionRecord, error) {
	if budget <= 0 {
		budget = a.cfg.Budget
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return schemas.ExtractionRecord{}, fmt.Errorf("waiting for analysis slot: %w", err)
	}
	defer a.sem.Release(1)

	profile := locale.Resolve(targetURL)
	a.logger.Info("Starting checkout analysis.",
		zap.String("target_url", targetURL),
		zap.String("locale", profile.Code),
		zap.Duration("budget", budget))

	task := schemas.BoundedTask{
		TargetURL: targetURL,
		TaskText:  taskscript.Compose(targetURL, profile),
		Budget:    budget,
		Session: schemas.SessionOptions{
			UserAgent:      a.providerCfg.UserAgent,
			ViewportWidth:  a.providerCfg.ViewportWidth,
			ViewportHeight: a.providerCfg.ViewportHeight,
			AcceptLanguage: profile.AcceptLanguage,
			SolveCaptchas:  a.providerCfg.SolveCaptchas,
		},
	}

	return a.executor.ExecuteBounded(ctx, task, sink)
}

// Process runs the analysis for a stored job and persists the outcome. It
// returns an error only when the job cannot be loaded or its outcome cannot
// be stored; analysis failures are recorded on the job itself.
func (a *Analyzer) Process(ctx context.Context, jobID string, budget time.Duration, sink schemas.ProgressSink) error {
	job, err := a.repo.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading analysis %s: %w", jobID, err)
	}

	job.Status = schemas.StatusRunning
	if err := a.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("marking analysis %s running: %w", jobID, err)
	}

	record, runErr := a.Run(ctx, job.TargetURL, budget, sink)

	finished := time.Now().UTC()
	job.FinishedAt = &finished
	job.Status, job.Error = statusForError(runErr)
	if runErr == nil {
		job.Record = &record
	} else {
		a.logger.Warn("Analysis finished with error.",
			zap.String("analysis_id", jobID),
			zap.String("status", string(job.Status)),
			zap.Error(runErr))
	}

	if err := a.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("storing analysis %s outcome: %w", jobID, err)
	}
	return nil
}

func statusForError(err error) (schemas.AnalysisStatus, string) {
	if err == nil {
		return schemas.StatusCompleted, ""
	}
	var timedOut *orchestrator.TimeoutError
	if errors.As(err, &timedOut) {
		return schemas.StatusTimeout, err.Error()
	}
	return schemas.StatusFailed, err.Error()
}
