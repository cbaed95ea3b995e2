// File: internal/orchestrator/orchestrator.go

// Package orchestrator runs one checkout analysis inside a remote browser
// session, bounded by a hard time budget. Its central guarantee: however the
// bounded run ends (success, remote failure, timeout, cancellation), the
// metered remote session is handed to termination exactly once.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// taskOutcome carries the remote task's result across the racing goroutine
// boundary.
type taskOutcome struct {
	result schemas.TaskResult
	err    error
}

// Orchestrator executes bounded browsing tasks. It holds no cross-call
// mutable state, so a single instance serves concurrent analyses.
type Orchestrator struct {
	provider         schemas.BrowsingProvider
	extractor        schemas.ResultExtractor
	terminationGrace time.Duration
	logger           *zap.Logger
}

var _ schemas.BoundedExecutor = (*Orchestrator)(nil)

// New creates an Orchestrator with its collaborators injected via interfaces.
func New(
	provider schemas.BrowsingProvider,
	extractor schemas.ResultExtractor,
	terminationGrace time.Duration,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if provider == nil || extractor == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if terminationGrace <= 0 {
		terminationGrace = 10 * time.Second
	}
	return &Orchestrator{
		provider:         provider,
		extractor:        extractor,
		terminationGrace: terminationGrace,
		logger:           logger.Named("orchestrator"),
	}, nil
}

// ExecuteBounded provisions a session, races the remote task against the
// budget, and returns either the extracted record or a typed error. The
// session termination call runs on every exit path after provisioning
// succeeded, including panics further down the stack.
func (o *Orchestrator) ExecuteBounded(ctx context.Context, task schemas.BoundedTask, sink schemas.ProgressSink) (schemas.ExtractionRecord, error) {
	if task.TaskText == "" {
		return schemas.ExtractionRecord{}, fmt.Errorf("task text must not be empty")
	}
	if task.Budget <= 0 {
		return schemas.ExtractionRecord{}, fmt.Errorf("task budget must be positive, got %s", task.Budget)
	}

	log := o.logger.With(zap.String("target_url", task.TargetURL))
	phase := schemas.PhaseIdle
	setPhase := func(next schemas.Phase) {
		log.Debug("Analysis phase transition.",
			zap.String("from", string(phase)), zap.String("to", string(next)))
		phase = next
	}

	handle, err := o.provider.CreateSession(ctx, task.Session)
	if err != nil {
		// Nothing was provisioned, so there is nothing to terminate.
		return schemas.ExtractionRecord{}, &SessionCreationError{Err: err}
	}
	handle.Deadline = time.Now().Add(task.Budget)
	setPhase(schemas.PhaseSessionCreated)
	o.notify(sink, fmt.Sprintf("Browser session %s created.", handle.ID))

	// The single finalizer for the session. Registered immediately after
	// provisioning so every later exit path, normal or panicking, runs it.
	defer func() {
		o.terminate(handle.ID, sink)
		setPhase(schemas.PhaseTerminated)
	}()

	// Live view is a nice-to-have; failure to fetch it never fails the run.
	liveURL := ""
	if details, derr := o.provider.GetSession(ctx, handle.ID); derr == nil {
		liveURL = details.LiveURL
		if liveURL != "" {
			o.notify(sink, fmt.Sprintf("Live view: %s", liveURL))
		}
	} else {
		log.Debug("Could not fetch session details for live view.", zap.Error(derr))
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	resultCh := make(chan taskOutcome, 1)
	go func() {
		result, rerr := o.provider.RunTask(runCtx, handle, task.TaskText)
		resultCh <- taskOutcome{result: result, err: rerr}
	}()

	setPhase(schemas.PhaseTaskRunning)
	o.notify(sink, "Checkout task started.")

	timer := time.NewTimer(task.Budget)
	defer timer.Stop()

	select {
	case outcome := <-resultCh:
		if outcome.err != nil {
			setPhase(schemas.PhaseFailed)
			o.notify(sink, "Checkout task failed.")
			return schemas.ExtractionRecord{}, &RemoteTaskError{SessionID: handle.ID, Err: outcome.err}
		}
		setPhase(schemas.PhaseCompleted)
		o.notify(sink, "Checkout task completed, extracting results.")

		record := o.extractor.Extract(outcome.result.FinalResultText, task.TargetURL)
		record.LiveURL = liveURL
		return record, nil

	case <-timer.C:
		setPhase(schemas.PhaseTimedOut)
		o.notify(sink, fmt.Sprintf("Budget of %s exhausted, terminating session.", task.Budget))
		return schemas.ExtractionRecord{}, &TimeoutError{Budget: task.Budget, SessionID: handle.ID}

	case <-ctx.Done():
		setPhase(schemas.PhaseFailed)
		o.notify(sink, "Analysis cancelled.")
		return schemas.ExtractionRecord{}, fmt.Errorf("analysis cancelled: %w", ctx.Err())
	}
}

// terminate stops the remote session with a fresh context so it still runs
// when the caller's context is already dead. A termination failure is logged
// and reported to the sink, never escalated.
func (o *Orchestrator) terminate(sessionID string, sink schemas.ProgressSink) {
	ctx, cancel := context.WithTimeout(context.Background(), o.terminationGrace)
	defer cancel()

	if err := o.provider.StopSession(ctx, sessionID); err != nil {
		o.logger.Warn("Session termination failed; the remote session may leak.",
			zap.String("session_id", sessionID), zap.Error(err))
		o.notify(sink, fmt.Sprintf("Warning: session %s could not be terminated.", sessionID))
		return
	}
	o.notify(sink, fmt.Sprintf("Session %s terminated.", sessionID))
}

// notify delivers a progress message without letting the sink interfere with
// the run: nil sinks are skipped and panicking sinks are contained.
func (o *Orchestrator) notify(sink schemas.ProgressSink, message string) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Progress sink panicked.", zap.Any("panic", r))
		}
	}()
	sink.Progress(message)
}
