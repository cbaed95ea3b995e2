// File: internal/provider/client.go

// Package provider implements the REST client for the remote browsing
// automation service. The service runs natural-language tasks inside hosted
// browser sessions; this client creates sessions, submits tasks, polls them
// to completion, and stops sessions when the caller is done with them.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nullwave7/gatescout/api/schemas"
	"github.com/nullwave7/gatescout/internal/config"
)

// apiError carries the HTTP status of a failed provider call so callers can
// branch on it.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider API status %d: %s", e.status, e.body)
}

// Client talks to the browsing provider's REST API. All calls are paced by a
// shared rate limiter so concurrent analyses stay inside the provider's
// request quota.
type Client struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.BrowsingProvider = (*Client)(nil)

// NewClient initializes the provider client.
func NewClient(cfg config.ProviderConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider API key is required (set GATESCOUT_PROVIDER_API_KEY)")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	burst := int(math.Ceil(cfg.RateLimitPerSec))
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.APITimeout,
			Transport: newCompressionTransport(nil),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), burst),
		logger:  logger.Named("provider"),
	}, nil
}

// CreateSession provisions a fresh browser session with the given options.
func (c *Client) CreateSession(ctx context.Context, opts schemas.SessionOptions) (schemas.SessionHandle, error) {
	req := createSessionRequest{
		UserAgent:      opts.UserAgent,
		ViewportWidth:  opts.ViewportWidth,
		ViewportHeight: opts.ViewportHeight,
		AcceptLanguage: opts.AcceptLanguage,
		SolveCaptchas:  opts.SolveCaptchas,
	}

	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &resp); err != nil {
		return schemas.SessionHandle{}, fmt.Errorf("failed to create session: %w", err)
	}
	if resp.ID == "" {
		return schemas.SessionHandle{}, fmt.Errorf("provider returned a session without an id")
	}

	c.logger.Info("Browser session created.", zap.String("session_id", resp.ID))
	return schemas.SessionHandle{ID: resp.ID, CreatedAt: resp.CreatedAt}, nil
}

// GetSession fetches current session details, including the live view URL
// when the provider exposes one.
func (c *Client) GetSession(ctx context.Context, id string) (schemas.SessionDetails, error) {
	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+id, nil, &resp); err != nil {
		return schemas.SessionDetails{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return schemas.SessionDetails{ID: resp.ID, Status: resp.Status, LiveURL: resp.LiveURL}, nil
}

// RunTask submits the task to the session and polls until the provider
// reports a terminal status. The poll runs for as long as ctx allows; the
// caller owns the deadline.
func (c *Client) RunTask(ctx context.Context, session schemas.SessionHandle, taskText string) (schemas.TaskResult, error) {
	var created taskResponse
	submitPath := fmt.Sprintf("/sessions/%s/tasks", session.ID)
	if err := c.doJSON(ctx, http.MethodPost, submitPath, runTaskRequest{Task: taskText}, &created); err != nil {
		return schemas.TaskResult{}, fmt.Errorf("failed to submit task: %w", err)
	}
	if created.ID == "" {
		return schemas.TaskResult{}, fmt.Errorf("provider returned a task without an id")
	}

	c.logger.Debug("Task submitted, polling for completion.",
		zap.String("session_id", session.ID),
		zap.String("task_id", created.ID))

	// Fast tasks can settle within the submit response itself.
	if done, failed := created.terminal(); done {
		if failed {
			return schemas.TaskResult{}, fmt.Errorf("provider task failed: %s", created.Error)
		}
		return schemas.TaskResult{FinalResultText: created.finalText()}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.PollInterval
	b.MaxInterval = c.cfg.PollMaxInterval
	b.MaxElapsedTime = 0 // poll until the context says stop

	var final taskResponse
	operation := func() error {
		var status taskResponse
		if err := c.doJSON(ctx, http.MethodGet, "/tasks/"+created.ID, nil, &status); err != nil {
			// Transient transport or 5xx trouble; keep polling until the
			// context gives up.
			c.logger.Debug("Task poll attempt failed, retrying.", zap.Error(err))
			return err
		}

		done, failed := status.terminal()
		if !done {
			return fmt.Errorf("task %s still %s", created.ID, status.Status)
		}
		if failed {
			return backoff.Permanent(fmt.Errorf("provider task failed: %s", status.Error))
		}
		final = status
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return schemas.TaskResult{}, err
	}
	return schemas.TaskResult{FinalResultText: final.finalText()}, nil
}

// StopSession asks the provider to terminate the session. Stopping a session
// that is already gone is treated as success, which keeps the call idempotent
// for cleanup paths.
func (c *Client) StopSession(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodPost, "/sessions/"+id+"/stop", nil, nil)
	if err == nil {
		c.logger.Info("Browser session stopped.", zap.String("session_id", id))
		return nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) && (apiErr.status == http.StatusNotFound || apiErr.status == http.StatusGone) {
		c.logger.Debug("Session already gone on stop.", zap.String("session_id", id))
		return nil
	}
	return fmt.Errorf("failed to stop session %s: %w", id, err)
}

// doJSON performs one HTTP round trip with JSON encoding on both sides. A nil
// in skips the request body; a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{status: resp.StatusCode, body: truncate(string(respBody), 512)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response payload: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
