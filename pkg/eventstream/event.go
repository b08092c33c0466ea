package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/aona-labs/aona/pkg/report"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAlertRaised is emitted for every alert an agent run produces.
	EventTypeAlertRaised = "aona.alert.raised"

	// EventTypeRunCompleted is emitted once a run has been summarized.
	EventTypeRunCompleted = "aona.run.completed"
)

// Event is a transport-neutral payload. Exactly one of Alert and Summary is
// set, matching EventType.
type Event struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	Alert         *report.Alert   `json:"alert,omitempty"`
	Summary       *report.Summary `json:"summary,omitempty"`
}

// EventSource identifies the run that produced the event.
type EventSource struct {
	Agent string `json:"agent"`
	RunID string `json:"run_id"`
}

// Key is the partitioning key: events of one run stay ordered.
func (e *Event) Key() string {
	return e.Source.RunID
}

// NewAlertEvent wraps an alert raised during run.
func NewAlertEvent(run *report.Run, alert report.Alert, now time.Time) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeAlertRaised,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source:        EventSource{Agent: run.Agent, RunID: run.ID},
		Alert:         &alert,
	}
}

// NewRunCompletedEvent wraps the summary of a finalized run.
func NewRunCompletedEvent(run *report.Run, now time.Time) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRunCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source:        EventSource{Agent: run.Agent, RunID: run.ID},
		Summary:       run.Summary,
	}
}
