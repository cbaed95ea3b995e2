package schemas

import "time"

// AnalysisStatus tracks the lifecycle of an analysis job as seen by callers.
type AnalysisStatus string

const (
	StatusPending   AnalysisStatus = "PENDING"
	StatusRunning   AnalysisStatus = "RUNNING"
	StatusCompleted AnalysisStatus = "COMPLETED"
	StatusFailed    AnalysisStatus = "FAILED"
	StatusTimeout   AnalysisStatus = "TIMEOUT"
)

// Terminal reports whether the status is final. Terminal jobs never regress
// back to RUNNING on late updates.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Phase is the internal state of one bounded orchestration call.
// Transitions are strictly forward: Idle -> SessionCreated -> TaskRunning ->
// {Completed | TimedOut | Failed} -> Terminated. Terminated is the sole
// absorbing state and is entered exactly once per call.
type Phase string

const (
	PhaseIdle           Phase = "IDLE"
	PhaseSessionCreated Phase = "SESSION_CREATED"
	PhaseTaskRunning    Phase = "TASK_RUNNING"
	PhaseCompleted      Phase = "COMPLETED"
	PhaseTimedOut       Phase = "TIMED_OUT"
	PhaseFailed         Phase = "FAILED"
	PhaseTerminated     Phase = "TERMINATED"
)

// LocaleProfile carries the language/region-specific form-fill values and
// UI-label synonyms used to parameterize a task script. Profiles are immutable
// values; resolving the same URL twice yields identical profiles.
type LocaleProfile struct {
	Code           string `json:"code"`
	AcceptLanguage string `json:"accept_language"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Address        string `json:"address"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	CardLabel      string `json:"card_label"`
	PayLabel       string `json:"pay_label"`
}

// SessionOptions configures a remote browsing session at creation time.
type SessionOptions struct {
	UserAgent      string `json:"user_agent,omitempty"`
	ViewportWidth  int    `json:"viewport_width,omitempty"`
	ViewportHeight int    `json:"viewport_height,omitempty"`
	AcceptLanguage string `json:"accept_language,omitempty"`
	SolveCaptchas  bool   `json:"solve_captchas,omitempty"`
}

// SessionHandle identifies one provisioned remote browsing session. The
// orchestrator owns the handle exclusively for the duration of a single
// bounded call and guarantees the session is terminated before returning.
type SessionHandle struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
}

// SessionDetails is the provider's view of a session, including the live-view
// URL a human can open to watch the browser work.
type SessionDetails struct {
	ID      string `json:"id"`
	Status  string `json:"status,omitempty"`
	LiveURL string `json:"live_url,omitempty"`
}

// TaskResult is the canonical shape every provider response variant is
// normalized into before extraction. FinalResultText is the provider's
// free-form output, never trimmed or reformatted.
type TaskResult struct {
	FinalResultText string `json:"final_result_text"`
}

// BoundedTask describes one time-boxed unit of remote work.
type BoundedTask struct {
	// TargetURL is the page the task starts from; the extractor also uses it
	// as the origin for host comparisons.
	TargetURL string `json:"target_url"`
	// TaskText is the composed natural-language instruction document.
	TaskText string `json:"task_text"`
	// Budget is the wall-clock deadline for the whole remote task.
	Budget time.Duration `json:"budget"`
	// Session configures the remote session provisioned for this task.
	Session SessionOptions `json:"session"`
}

// ExtractionRecord is the structured result recovered from the provider's
// free-form text. RawResponse is always populated when the provider returned
// any text; every other field is optional and an unset field means
// "undetermined", never an error.
type ExtractionRecord struct {
	CheckoutURL       string   `json:"checkout_url,omitempty"`
	PaymentURL        string   `json:"payment_url,omitempty"`
	PaymentGateway    string   `json:"payment_gateway,omitempty"`
	PaymentProviders  []string `json:"payment_providers,omitempty"`
	ProductAdded      string   `json:"product_added,omitempty"`
	WebsiteName       string   `json:"website_name,omitempty"`
	StepsCompleted    string   `json:"steps_completed,omitempty"`
	IssuesEncountered string   `json:"issues_encountered,omitempty"`
	ScreenshotReady   bool     `json:"screenshot_ready,omitempty"`
	LiveURL           string   `json:"live_url,omitempty"`
	RawResponse       string   `json:"raw_response"`
}

// AnalysisJob is the caller-facing state of one analysis request, tracked by
// an AnalysisRepository and keyed by a caller-generated identifier.
type AnalysisJob struct {
	ID         string            `json:"id"`
	TargetURL  string            `json:"target_url"`
	Status     AnalysisStatus    `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Record     *ExtractionRecord `json:"record,omitempty"`
}

// Clone returns a deep copy of the job, so holders of the copy cannot race on
// the original's record or timestamps.
func (j *AnalysisJob) Clone() *AnalysisJob {
	if j == nil {
		return nil
	}
	out := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	if j.Record != nil {
		rec := *j.Record
		rec.PaymentProviders = append([]string(nil), j.Record.PaymentProviders...)
		out.Record = &rec
	}
	return &out
}
