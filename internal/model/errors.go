package model

import "errors"

// Errors returned by the scheduler's public API. Callers should use
// errors.Is against these sentinels; the concrete error may wrap additional
// detail (agent/task/role identifiers) via fmt.Errorf's %w verb.
var (
	ErrAgentNotFound            = errors.New("agent not found")
	ErrTaskNotFound             = errors.New("task not found")
	ErrNoAvailableAgents        = errors.New("no available agents for role")
	ErrAgentBusy                = errors.New("agent is busy")
	ErrDependenciesNotSatisfied = errors.New("dependencies not satisfied")
	ErrAtCapacity               = errors.New("role at capacity")
	ErrWrongTask                = errors.New("task id does not match agent's current task")
)

// Supervision errors.
var (
	ErrNoActiveRequest = errors.New("no active supervision request for agent")
	ErrInvalidOption   = errors.New("unknown supervision option id")
)
