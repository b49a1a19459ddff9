package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of workshop state change an event carries.
type EventType string

const (
	EventAgentRegistered     EventType = "agent_registered"
	EventTaskQueued          EventType = "task_queued"
	EventTaskAssigned        EventType = "task_assigned"
	EventTaskCompleted       EventType = "task_completed"
	EventTaskFailed          EventType = "task_failed"
	EventAgentStuck          EventType = "agent_stuck"
	EventSupervisionRequested EventType = "supervision_requested"
	EventSupervisionResolved EventType = "supervision_resolved"
	EventSupervisionTimedOut EventType = "supervision_timed_out"
)

// Priority constants for events, independent of task priority.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// Event is the envelope published on the bus after a core mutation completes.
// The core never constructs one of these; the daemon does, from the return
// values of the scheduler/supervision API.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target"`
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEvent creates a new event with an auto-generated id and timestamp.
func NewEvent(eventType EventType, source, target string, priority int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Target:    target,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// AllEventTypes returns all defined event types.
func AllEventTypes() []EventType {
	return []EventType{
		EventAgentRegistered,
		EventTaskQueued,
		EventTaskAssigned,
		EventTaskCompleted,
		EventTaskFailed,
		EventAgentStuck,
		EventSupervisionRequested,
		EventSupervisionResolved,
		EventSupervisionTimedOut,
	}
}
