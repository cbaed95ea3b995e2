package schemas

import (
	"context"
	"errors"
)

// ErrAnalysisNotFound is returned by AnalysisRepository implementations when
// no job exists under the requested identifier.
var ErrAnalysisNotFound = errors.New("analysis not found")

// -- Provider Interface --

// BrowsingProvider is the narrow contract the orchestrator requires from the
// remote browsing-automation service. The provider is treated as an opaque
// capability: given a session and a task description it eventually produces
// free-form text or fails. Implementations must normalize every response
// variant into the canonical TaskResult shape before returning it.
type BrowsingProvider interface {
	// CreateSession provisions a new remote browsing session. The session is
	// a metered resource and must eventually be released via StopSession.
	CreateSession(ctx context.Context, opts SessionOptions) (SessionHandle, error)
	// GetSession fetches provider-side details for a session, notably the
	// live-view URL. Failures are non-fatal to the overall operation.
	GetSession(ctx context.Context, id string) (SessionDetails, error)
	// RunTask submits the task text against the session and blocks until the
	// task reaches a terminal state or ctx is done. It may take arbitrarily
	// long; callers bound it with a deadline.
	RunTask(ctx context.Context, session SessionHandle, taskText string) (TaskResult, error)
	// StopSession terminates the remote session. It is idempotent: stopping a
	// session that is already gone is not an error.
	StopSession(ctx context.Context, id string) error
}

// -- Core Component Interfaces --

// ResultExtractor converts a provider's free-form text into a structured
// record. Extraction never fails: the worst case is a record carrying only
// the raw response.
type ResultExtractor interface {
	Extract(rawText, originURL string) ExtractionRecord
}

// BoundedExecutor runs one remote task under a wall-clock budget with
// guaranteed session cleanup. It is the seam between the per-request pipeline
// and the orchestration core, and the natural place to substitute a mock.
type BoundedExecutor interface {
	ExecuteBounded(ctx context.Context, task BoundedTask, sink ProgressSink) (ExtractionRecord, error)
}

// -- Repository Interface --

// AnalysisRepository stores analysis jobs keyed by their caller-generated
// identifier. Implementations must be safe for concurrent use; the
// orchestration core itself never touches the repository.
type AnalysisRepository interface {
	// Add registers a new job. The ID must not already exist.
	Add(ctx context.Context, job *AnalysisJob) error
	// Update replaces the stored state of an existing job.
	Update(ctx context.Context, job *AnalysisJob) error
	// Get returns the job for the given ID, or ErrAnalysisNotFound.
	Get(ctx context.Context, id string) (*AnalysisJob, error)
	// List returns known jobs, most recently started first.
	List(ctx context.Context) ([]*AnalysisJob, error)
}

// -- Progress Interface --

// ProgressSink receives ordered, human-readable status lines during a bounded
// operation. Delivery is fire-and-forget: a slow or failing sink must never
// affect the operation's outcome, and implementations should not block.
type ProgressSink interface {
	Progress(message string)
}

// ProgressFunc adapts an ordinary function to the ProgressSink interface.
type ProgressFunc func(message string)

// Progress implements ProgressSink.
func (f ProgressFunc) Progress(message string) { f(message) }
