// Package model defines the value types shared by the scheduler, retry
// executor, and supervision engine: agents, tasks, and their lifecycle
// states. Nothing in this package performs I/O or holds a mutex; ownership
// and concurrency are the scheduler's concern.
package model

import (
	"fmt"
	"time"
)

// AgentRole is one of the fixed specializations a worker agent can have.
type AgentRole string

const (
	RoleScaffolder  AgentRole = "scaffolder"
	RoleImplementer AgentRole = "implementer"
	RoleDebugger    AgentRole = "debugger"
	RoleTester      AgentRole = "tester"
)

// AgentStatus is the current lifecycle state of an agent.
type AgentStatus string

const (
	AgentIdle             AgentStatus = "idle"
	AgentWorking          AgentStatus = "working"
	AgentStuck            AgentStatus = "stuck"
	AgentNeedsSupervision AgentStatus = "needs_supervision"
	AgentError            AgentStatus = "error"
)

// AgentMetrics tracks an agent's running completion statistics.
type AgentMetrics struct {
	TasksCompleted int     `json:"tasks_completed"`
	TasksFailed    int     `json:"tasks_failed"`
	SuccessRate    float64 `json:"success_rate"`
	HelpRequests   int     `json:"help_requests"`
	LastError      string  `json:"last_error,omitempty"`
}

// recompute derives SuccessRate from the completed/failed counters: the
// rate when the denominator is non-zero, 0 otherwise. Complete and Fail
// both route through here so the two paths can never disagree.
func (m *AgentMetrics) recompute() {
	total := m.TasksCompleted + m.TasksFailed
	if total == 0 {
		m.SuccessRate = 0
		return
	}
	m.SuccessRate = float64(m.TasksCompleted) / float64(total)
}

// Agent is a worker with a fixed role, a mutable status, and at most one
// current task. All mutation happens through the methods below; callers
// outside the scheduler should treat Agent values as read-only snapshots.
type Agent struct {
	ID           string
	Role         AgentRole
	PaneID       string
	Status       AgentStatus
	CurrentTask  string // task id, empty when idle
	CreatedAt    time.Time
	LastActivity time.Time
	Metrics      AgentMetrics
}

// NewAgent creates a new, Idle agent for the given role.
func NewAgent(id string, role AgentRole, paneID string) *Agent {
	now := time.Now()
	return &Agent{
		ID:           id,
		Role:         role,
		PaneID:       paneID,
		Status:       AgentIdle,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Assign transitions an Idle agent to Working on the given task. It is the
// only way CurrentTask becomes non-empty.
func (a *Agent) Assign(taskID string) error {
	if a.Status != AgentIdle {
		return fmt.Errorf("agent %s: cannot assign while status=%s", a.ID, a.Status)
	}
	a.Status = AgentWorking
	a.CurrentTask = taskID
	a.LastActivity = time.Now()
	return nil
}

// Complete transitions a Working agent back to Idle and records a success.
func (a *Agent) Complete() {
	a.Status = AgentIdle
	a.CurrentTask = ""
	a.Metrics.TasksCompleted++
	a.Metrics.recompute()
	a.LastActivity = time.Now()
}

// Fail transitions the agent to Error, records the failure, and stores the
// error text. A failed task is never added to the scheduler's completed set.
func (a *Agent) Fail(errText string) {
	a.Status = AgentError
	a.CurrentTask = ""
	a.Metrics.TasksFailed++
	a.Metrics.recompute()
	a.Metrics.LastError = errText
	a.LastActivity = time.Now()
}

// RequestHelp transitions the agent to NeedsSupervision.
func (a *Agent) RequestHelp() {
	a.Status = AgentNeedsSupervision
	a.Metrics.HelpRequests++
	a.LastActivity = time.Now()
}

// Recover transitions the agent back to Idle, e.g. after a supervisor
// intervention resolves a stuck or errored state.
func (a *Agent) Recover() {
	a.Status = AgentIdle
	a.CurrentTask = ""
	a.LastActivity = time.Now()
}

// MarkActivity bumps LastActivity without changing status; used whenever new
// agent output arrives, independent of whether it is routed to the classifier.
func (a *Agent) MarkActivity() {
	a.LastActivity = time.Now()
}

// IdleFor reports how long the agent has been idle relative to now.
func (a *Agent) IdleFor(now time.Time) time.Duration {
	return now.Sub(a.LastActivity)
}

// Snapshot returns a copy of the agent safe for external callers to hold
// without racing the scheduler's mutations.
func (a *Agent) Snapshot() Agent {
	return *a
}
