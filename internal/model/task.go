package model

import (
	"fmt"
	"time"

	"github.com/johnhkchen/dfcoder/internal/stringutils"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskPriority orders tasks within the queue. Higher values sort earlier.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// TaskComplexity is a heuristic estimate of how hard a task is, used for
// priority-queue ordering and expertise averaging.
type TaskComplexity string

const (
	ComplexitySimple  TaskComplexity = "simple"
	ComplexityMedium  TaskComplexity = "medium"
	ComplexityComplex TaskComplexity = "complex"
	ComplexityExpert  TaskComplexity = "expert"
)

// TaskContext carries the optional detail a task may be queued with.
type TaskContext struct {
	Files             []string
	Dependencies      []string // task ids that must be in the completed set first
	Priority          TaskPriority
	EstimatedDuration time.Duration // zero means unset
}

// Task is a unit of work routed to one compatible agent.
type Task struct {
	ID          string
	Title       string
	Description string
	Role        AgentRole
	Status      TaskStatus
	CreatedAt   time.Time
	AssignedAt  time.Time
	CompletedAt time.Time
	AssigneeID  string
	Context     TaskContext
}

// NewTask creates a new Pending task. Title must carry actual content; a
// title that is empty or whitespace-only falls back to the description so
// the queue never has to display a blank entry.
func NewTask(id, title, description string, role AgentRole, priority TaskPriority) *Task {
	if stringutils.IsEmpty(title) {
		title = description
	}
	return &Task{
		ID:          id,
		Title:       title,
		Description: description,
		Role:        role,
		Status:      TaskPending,
		CreatedAt:   time.Now(),
		Context:     TaskContext{Priority: priority},
	}
}

// AssignTo transitions a Pending task to Assigned, recording the assignee
// and the assigned-at timestamp.
func (t *Task) AssignTo(agentID string) error {
	if t.Status != TaskPending {
		return fmt.Errorf("task %s: cannot assign while status=%s", t.ID, t.Status)
	}
	t.Status = TaskAssigned
	t.AssigneeID = agentID
	t.AssignedAt = time.Now()
	return nil
}

// Start transitions an Assigned task to InProgress.
func (t *Task) Start() error {
	if t.Status != TaskAssigned {
		return fmt.Errorf("task %s: cannot start while status=%s", t.ID, t.Status)
	}
	t.Status = TaskInProgress
	return nil
}

// Complete transitions the task to Completed, recording the completion time.
func (t *Task) Complete() {
	t.Status = TaskCompleted
	t.CompletedAt = time.Now()
}

// Fail transitions the task to Failed. No completion timestamp is recorded.
func (t *Task) Fail() {
	t.Status = TaskFailed
}

// DependenciesSatisfied reports whether every dependency id of this task is
// present in the given completed set.
func (t *Task) DependenciesSatisfied(completed map[string]struct{}) bool {
	for _, dep := range t.Context.Dependencies {
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the task safe for external callers to hold.
func (t *Task) Snapshot() Task {
	return *t
}

// EstimateComplexity derives a coarse complexity label from task title and
// description text, used by the scheduler's priority reordering.
func EstimateComplexity(title, description string) TaskComplexity {
	text := lower(title + " " + description)
	switch {
	case containsAny(text, "fix", "bug") || len(title) < 20:
		return ComplexitySimple
	case containsAny(text, "implement", "feature"):
		if containsAny(text, "complex", "integration") {
			return ComplexityComplex
		}
		return ComplexityMedium
	case containsAny(text, "architecture", "design"):
		return ComplexityExpert
	default:
		return ComplexityMedium
	}
}

// TaskCategory is the coarse label used for expertise accounting.
type TaskCategory string

const (
	CategoryTesting        TaskCategory = "testing"
	CategoryDebugging      TaskCategory = "debugging"
	CategoryScaffolding    TaskCategory = "scaffolding"
	CategoryImplementation TaskCategory = "implementation"
	CategoryGeneral        TaskCategory = "general"
)

// EstimateCategory derives a task category from its description text.
func EstimateCategory(description string) TaskCategory {
	text := lower(description)
	switch {
	case containsAny(text, "test", "spec"):
		return CategoryTesting
	case containsAny(text, "debug", "fix"):
		return CategoryDebugging
	case containsAny(text, "setup", "scaffold"):
		return CategoryScaffolding
	case containsAny(text, "implement", "feature"):
		return CategoryImplementation
	default:
		return CategoryGeneral
	}
}
