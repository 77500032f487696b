// Package events carries progress and log events out of training and
// exploration runs. Delivery is fire-and-forget: the core never blocks
// on a slow subscriber and tolerates having no subscribers at all.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened during a run
type EventType string

const (
	// Training loop events
	EventTypeRunStarted        EventType = "run_started"
	EventTypeIterationStarted  EventType = "iteration_started"
	EventTypePromptGenerated   EventType = "prompt_generated"
	EventTypeImageGenerated    EventType = "image_generated"
	EventTypeCritiqueCompleted EventType = "critique_completed"
	EventTypeIterationAccepted EventType = "iteration_accepted"
	EventTypeIterationRejected EventType = "iteration_rejected"
	EventTypeRunCompleted      EventType = "run_completed"
	EventTypeRunFailed         EventType = "run_failed"
	EventTypeStopRequested     EventType = "stop_requested"

	// Hypothesis pipeline events
	EventTypeExplorationStarted    EventType = "exploration_started"
	EventTypeHypothesisExtracted   EventType = "hypothesis_extracted"
	EventTypeHypothesisTestStarted EventType = "hypothesis_test_started"
	EventTypeHypothesisTested      EventType = "hypothesis_tested"
	EventTypeHypothesisSelected    EventType = "hypothesis_selected"
	EventTypeExplorationCompleted  EventType = "exploration_completed"

	// EventTypeProgress is a generic progress/log line
	EventTypeProgress EventType = "progress"
)

// Severity indicates how important an event is
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one progress/log record keyed by session id
type Event struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"session_id"`
	Type      EventType              `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New creates an event with a fresh id and timestamp
func New(sessionID string, eventType EventType, severity Severity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithData attaches a data payload and returns the event for chaining
func (e *Event) WithData(data map[string]interface{}) *Event {
	e.Data = data
	return e
}
