// File: internal/server/broker.go
package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// EventType classifies a progress event. Terminal types end the stream.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventStatus    EventType = "status"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventTimeout   EventType = "timeout"
)

// Terminal reports whether the event closes its analysis stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed || t == EventTimeout
}

// ProgressEvent is the envelope pushed to progress subscribers. Terminal
// events carry the final job status and, when available, the extracted
// record.
type ProgressEvent struct {
	AnalysisID string                    `json:"analysis_id"`
	Type       EventType                 `json:"type"`
	Status     string                    `json:"status,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Record     *schemas.ExtractionRecord `json:"record,omitempty"`
	// Timestamp formatted as ISO 8601 (RFC3339).
	Timestamp string `json:"timestamp"`
}

// Broker fans progress events out to per-analysis subscribers. Publishing
// never blocks; a subscriber that falls behind loses events rather than
// slowing the analysis down.
type Broker struct {
	logger      *zap.Logger
	mu          sync.RWMutex
	subscribers map[string][]chan ProgressEvent
	bufferSize  int
}

// NewBroker initializes the progress broker.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		logger:      logger.Named("progress_broker"),
		subscribers: make(map[string][]chan ProgressEvent),
		bufferSize:  sendChannelSize,
	}
}

// Subscribe returns a channel of events for one analysis and a function that
// removes the subscription. The channel is never closed by the broker; the
// consumer leaves on a terminal event or its own shutdown signal.
func (b *Broker) Subscribe(analysisID string) (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressEvent, b.bufferSize)
	b.subscribers[analysisID] = append(b.subscribers[analysisID], ch)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[analysisID]
		for i, subscriberCh := range subs {
			if subscriberCh == ch {
				b.subscribers[analysisID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subscribers[analysisID]) == 0 {
			delete(b.subscribers, analysisID)
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber of its analysis. Sends are
// non-blocking; full buffers drop the event with a warning.
func (b *Broker) Publish(event ProgressEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.AnalysisID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Progress subscriber buffer full, dropping event.",
				zap.String("analysis_id", event.AnalysisID),
				zap.String("type", string(event.Type)))
		}
	}
}

// SinkFor adapts the broker to the progress sink consumed by the executor.
func (b *Broker) SinkFor(analysisID string) schemas.ProgressSink {
	return schemas.ProgressFunc(func(message string) {
		b.Publish(ProgressEvent{
			AnalysisID: analysisID,
			Type:       EventProgress,
			Message:    message,
		})
	})
}

// statusEvent maps a job's stored state onto the event shape sent to
// subscribers, both as the connect-time snapshot and the terminal broadcast.
func statusEvent(job *schemas.AnalysisJob) ProgressEvent {
	return ProgressEvent{
		AnalysisID: job.ID,
		Type:       eventTypeForStatus(job.Status),
		Status:     string(job.Status),
		Message:    job.Error,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func eventTypeForStatus(status schemas.AnalysisStatus) EventType {
	switch status {
	case schemas.StatusCompleted:
		return EventCompleted
	case schemas.StatusFailed:
		return EventFailed
	case schemas.StatusTimeout:
		return EventTimeout
	default:
		return EventStatus
	}
}
