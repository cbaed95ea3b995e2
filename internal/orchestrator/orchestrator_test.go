// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nullwave7/gatescout/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Mock Implementations for Testing --

// mockProvider is a hand-rolled mock for the BrowsingProvider interface with
// call counting, so tests can assert the exactly-once termination guarantee.
type mockProvider struct {
	mu sync.Mutex

	createErr  error
	getErr     error
	taskResult schemas.TaskResult
	taskErr    error
	taskDelay  time.Duration
	stopErr    error
	liveURL    string

	createCalls int
	stopCalls   int
	stoppedIDs  []string
}

func (m *mockProvider) CreateSession(ctx context.Context, opts schemas.SessionOptions) (schemas.SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return schemas.SessionHandle{}, m.createErr
	}
	return schemas.SessionHandle{ID: "sess-mock", CreatedAt: time.Now()}, nil
}

func (m *mockProvider) GetSession(ctx context.Context, id string) (schemas.SessionDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return schemas.SessionDetails{}, m.getErr
	}
	return schemas.SessionDetails{ID: id, Status: "running", LiveURL: m.liveURL}, nil
}

func (m *mockProvider) RunTask(ctx context.Context, session schemas.SessionHandle, taskText string) (schemas.TaskResult, error) {
	m.mu.Lock()
	delay := m.taskDelay
	result := m.taskResult
	taskErr := m.taskErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return schemas.TaskResult{}, ctx.Err()
		}
	}
	if taskErr != nil {
		return schemas.TaskResult{}, taskErr
	}
	return result, nil
}

func (m *mockProvider) StopSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.stoppedIDs = append(m.stoppedIDs, id)
	return m.stopErr
}

func (m *mockProvider) stats() (creates, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.stopCalls
}

// stubExtractor records what it was asked to extract and returns a canned
// record.
type stubExtractor struct {
	mu        sync.Mutex
	rawText   string
	originURL string
	record    schemas.ExtractionRecord
}

func (s *stubExtractor) Extract(rawText, originURL string) schemas.ExtractionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawText = rawText
	s.originURL = originURL
	rec := s.record
	rec.RawResponse = rawText
	return rec
}

// progressRecorder captures sink messages in order.
type progressRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (p *progressRecorder) Progress(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *progressRecorder) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

// panickingSink blows up on every message.
type panickingSink struct{}

func (panickingSink) Progress(string) { panic("sink exploded") }

// -- Test Fixture Setup --

type fixture struct {
	Provider  *mockProvider
	Extractor *stubExtractor
	Sink      *progressRecorder
}

func setupTest(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		Provider: &mockProvider{
			taskResult: schemas.TaskResult{FinalResultText: "CHECKOUT_URL: https://shop.example.com/checkout"},
		},
		Extractor: &stubExtractor{
			record: schemas.ExtractionRecord{CheckoutURL: "https://shop.example.com/checkout"},
		},
		Sink: &progressRecorder{},
	}
}

func newOrchestrator(t *testing.T, f *fixture) *Orchestrator {
	t.Helper()
	orch, err := New(f.Provider, f.Extractor, 2*time.Second, zap.NewNop())
	require.NoError(t, err)
	return orch
}

func defaultTask(budget time.Duration) schemas.BoundedTask {
	return schemas.BoundedTask{
		TargetURL: "https://shop.example.com",
		TaskText:  "walk the checkout",
		Budget:    budget,
	}
}

// -- Test Cases --

func TestNew(t *testing.T) {
	f := setupTest(t)

	t.Run("should create orchestrator with valid dependencies", func(t *testing.T) {
		orch, err := New(f.Provider, f.Extractor, time.Second, zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, orch)
	})

	t.Run("should return error with nil dependencies", func(t *testing.T) {
		_, err := New(nil, f.Extractor, time.Second, zap.NewNop())
		assert.Error(t, err, "Should fail with nil provider")

		_, err = New(f.Provider, nil, time.Second, zap.NewNop())
		assert.Error(t, err, "Should fail with nil extractor")

		_, err = New(f.Provider, f.Extractor, time.Second, nil)
		assert.Error(t, err, "Should fail with nil logger")
	})
}

func TestExecuteBounded_Success(t *testing.T) {
	f := setupTest(t)
	f.Provider.liveURL = "https://live.example.com/sess-mock"
	orch := newOrchestrator(t, f)

	record, err := orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), f.Sink)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/checkout", record.CheckoutURL)
	assert.Equal(t, "https://live.example.com/sess-mock", record.LiveURL,
		"the live view URL must be attached to the record")
	assert.Equal(t, "CHECKOUT_URL: https://shop.example.com/checkout", record.RawResponse)

	// The extractor must have seen the provider's raw text and the origin.
	assert.Equal(t, "CHECKOUT_URL: https://shop.example.com/checkout", f.Extractor.rawText)
	assert.Equal(t, "https://shop.example.com", f.Extractor.originURL)

	creates, stops := f.Provider.stats()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, stops, "termination must run exactly once on success")
}

func TestExecuteBounded_ProgressOrder(t *testing.T) {
	f := setupTest(t)
	orch := newOrchestrator(t, f)

	_, err := orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), f.Sink)
	require.NoError(t, err)

	messages := f.Sink.all()
	require.NotEmpty(t, messages)

	joined := strings.Join(messages, " | ")
	created := strings.Index(joined, "created")
	started := strings.Index(joined, "started")
	completed := strings.Index(joined, "completed")
	terminated := strings.Index(joined, "terminated")

	require.True(t, created >= 0 && started >= 0 && completed >= 0 && terminated >= 0,
		"all four lifecycle notifications must be delivered, got: %s", joined)
	assert.Less(t, created, started)
	assert.Less(t, started, completed)
	assert.Less(t, completed, terminated)
}

func TestExecuteBounded_RemoteTaskFailure(t *testing.T) {
	f := setupTest(t)
	boom := errors.New("browser crashed mid-flow")
	f.Provider.taskErr = boom
	orch := newOrchestrator(t, f)

	_, err := orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), f.Sink)
	require.Error(t, err)

	var taskErr *RemoteTaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "sess-mock", taskErr.SessionID)
	assert.ErrorIs(t, err, boom, "the provider error must remain unwrappable")

	_, stops := f.Provider.stats()
	assert.Equal(t, 1, stops, "termination must run exactly once on remote failure")
}

func TestExecuteBounded_Timeout(t *testing.T) {
	f := setupTest(t)
	f.Provider.taskDelay = 500 * time.Millisecond
	orch := newOrchestrator(t, f)

	start := time.Now()
	record, err := orch.ExecuteBounded(context.Background(), defaultTask(50*time.Millisecond), f.Sink)
	elapsed := time.Since(start)

	require.Error(t, err)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Budget)
	assert.Equal(t, "sess-mock", timeoutErr.SessionID)

	assert.Empty(t, record.CheckoutURL, "a late success value must never surface")
	assert.Less(t, elapsed, 400*time.Millisecond,
		"the call must return at the deadline, not when the task finishes")

	_, stops := f.Provider.stats()
	assert.Equal(t, 1, stops, "termination must run exactly once on timeout")
}

func TestExecuteBounded_CreationFailure(t *testing.T) {
	f := setupTest(t)
	f.Provider.createErr = errors.New("quota exhausted")
	orch := newOrchestrator(t, f)

	_, err := orch.ExecuteBounded(context.Background(), defaultTask(time.Second), f.Sink)
	require.Error(t, err)

	var creationErr *SessionCreationError
	require.ErrorAs(t, err, &creationErr)

	_, stops := f.Provider.stats()
	assert.Zero(t, stops, "nothing was provisioned, so nothing must be terminated")
}

func TestExecuteBounded_TerminationFailureIsNonFatal(t *testing.T) {
	f := setupTest(t)
	f.Provider.stopErr = errors.New("stop endpoint down")

	core, logs := observer.New(zap.WarnLevel)
	orch, err := New(f.Provider, f.Extractor, 2*time.Second, zap.New(core))
	require.NoError(t, err)

	record, err := orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), f.Sink)
	require.NoError(t, err, "a failed termination must never fail the analysis")
	assert.Equal(t, "https://shop.example.com/checkout", record.CheckoutURL)

	warnings := logs.FilterMessageSnippet("termination failed").All()
	require.Len(t, warnings, 1, "the cleanup failure must be logged as a warning")
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
}

func TestExecuteBounded_PanickingSinkDoesNotAffectOutcome(t *testing.T) {
	f := setupTest(t)
	orch := newOrchestrator(t, f)

	var record schemas.ExtractionRecord
	var err error
	require.NotPanics(t, func() {
		record, err = orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), panickingSink{})
	})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/checkout", record.CheckoutURL)
}

func TestExecuteBounded_NilSink(t *testing.T) {
	f := setupTest(t)
	orch := newOrchestrator(t, f)

	_, err := orch.ExecuteBounded(context.Background(), defaultTask(2*time.Second), nil)
	assert.NoError(t, err)
}

func TestExecuteBounded_InvalidTask(t *testing.T) {
	f := setupTest(t)
	orch := newOrchestrator(t, f)

	t.Run("zero budget", func(t *testing.T) {
		_, err := orch.ExecuteBounded(context.Background(), defaultTask(0), f.Sink)
		require.Error(t, err)
		creates, _ := f.Provider.stats()
		assert.Zero(t, creates, "validation failures must not touch the provider")
	})

	t.Run("empty task text", func(t *testing.T) {
		task := defaultTask(time.Second)
		task.TaskText = ""
		_, err := orch.ExecuteBounded(context.Background(), task, f.Sink)
		require.Error(t, err)
	})
}

func TestExecuteBounded_ParentCancellation(t *testing.T) {
	f := setupTest(t)
	f.Provider.taskDelay = time.Second
	orch := newOrchestrator(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_, err := orch.ExecuteBounded(ctx, defaultTask(5*time.Second), f.Sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, stops := f.Provider.stats()
	assert.Equal(t, 1, stops, "termination must still run when the caller's context dies")
}
