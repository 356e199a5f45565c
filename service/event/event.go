package event

import (
	"time"

	"github.com/pollevbot/pollevbot/internal/clock"
)

// Severity tags a status event for display purposes.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Event is a user-visible status update emitted by the watcher and the
// answer pipeline: login outcome, poll detections, heartbeats, failures.
type Event struct {
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	PollID    string    `json:"pollId,omitempty"`
}

// New creates an event stamped with the current time.
func New(severity Severity, message string) *Event {
	return &Event{
		Severity:  severity,
		Message:   message,
		CreatedAt: clock.Now(),
	}
}
