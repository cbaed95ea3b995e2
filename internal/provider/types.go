// File: internal/provider/types.go
package provider

import "time"

// -- Provider API Request/Response Structures (Internal to this package) --

type createSessionRequest struct {
	UserAgent      string `json:"user_agent,omitempty"`
	ViewportWidth  int    `json:"viewport_width,omitempty"`
	ViewportHeight int    `json:"viewport_height,omitempty"`
	AcceptLanguage string `json:"accept_language,omitempty"`
	SolveCaptchas  bool   `json:"solve_captchas"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LiveURL   string    `json:"live_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type runTaskRequest struct {
	Task string `json:"task"`
}

// taskResponse covers every shape the provider has returned task results
// under. Older deployments report done_output, newer ones either a flat
// output string or a nested result object; finalText folds them into one.
type taskResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	DoneOutput string `json:"done_output,omitempty"`
	Output     string `json:"output,omitempty"`
	Result     *struct {
		Text string `json:"text,omitempty"`
	} `json:"result,omitempty"`
	Error string `json:"error,omitempty"`
}

// finalText normalizes the duck-typed result variants into the single text
// payload the rest of the pipeline consumes.
func (t *taskResponse) finalText() string {
	if t.DoneOutput != "" {
		return t.DoneOutput
	}
	if t.Output != "" {
		return t.Output
	}
	if t.Result != nil {
		return t.Result.Text
	}
	return ""
}

// terminal reports whether the task has settled, and if so whether it
// succeeded.
func (t *taskResponse) terminal() (done bool, failed bool) {
	switch t.Status {
	case "finished", "completed", "done":
		return true, false
	case "failed", "error", "stopped":
		return true, true
	}
	return false, false
}
