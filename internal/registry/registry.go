// File: internal/registry/registry.go

// Package registry is the in-memory AnalysisRepository used when no database
// is configured. It tracks jobs thread-safely and survives for the lifetime
// of the process only.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// Registry stores analysis jobs in a mutex-guarded map. Jobs are copied on
// the way in and out, so callers can never race on shared state.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*schemas.AnalysisJob
	log  *zap.Logger
}

var _ schemas.AnalysisRepository = (*Registry)(nil)

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		jobs: make(map[string]*schemas.AnalysisJob),
		log:  logger.Named("registry"),
	}
}

// Add registers a new job. Adding an ID twice is an error.
func (r *Registry) Add(_ context.Context, job *schemas.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already registered", job.ID)
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Update replaces the stored job. A job that already reached a terminal
// status keeps that status: late writers may add details but can never move
// the job back to PENDING or RUNNING.
func (r *Registry) Update(_ context.Context, job *schemas.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.jobs[job.ID]
	if !exists {
		return schemas.ErrAnalysisNotFound
	}

	next := job.Clone()
	if existing.Status.Terminal() && !next.Status.Terminal() {
		r.log.Debug("Ignoring status regression on finished job.",
			zap.String("id", job.ID),
			zap.String("kept", string(existing.Status)),
			zap.String("rejected", string(next.Status)))
		next.Status = existing.Status
		if next.FinishedAt == nil {
			next.FinishedAt = existing.FinishedAt
		}
	}
	r.jobs[job.ID] = next
	return nil
}

// Get returns a copy of the job with the given ID.
func (r *Registry) Get(_ context.Context, id string) (*schemas.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil, schemas.ErrAnalysisNotFound
	}
	return job.Clone(), nil
}

// List returns copies of all jobs, newest first.
func (r *Registry) List(_ context.Context) ([]*schemas.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schemas.AnalysisJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
