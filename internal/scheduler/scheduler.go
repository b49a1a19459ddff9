// Package scheduler implements the workshop manager: the single mutable
// component that owns the agent registry, the task queue, per-role capacity,
// the completed-task set, the expertise map, and aggregate metrics. All
// public methods are serialized by a single mutex so external callers never
// observe a partially applied mutation.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/retry"
)

// defaultCapacity is the starting per-role concurrency cap.
func defaultCapacity() map[model.AgentRole]int {
	return map[model.AgentRole]int{
		model.RoleScaffolder:  1,
		model.RoleImplementer: 3,
		model.RoleDebugger:    2,
		model.RoleTester:      2,
	}
}

// EventKind labels a scheduler mutation for the Notify hook.
type EventKind string

const (
	EventAgentRegistered EventKind = "agent_registered"
	EventTaskQueued      EventKind = "task_queued"
	EventTaskAssigned    EventKind = "task_assigned"
	EventTaskCompleted   EventKind = "task_completed"
	EventTaskFailed      EventKind = "task_failed"
	EventAgentStuck      EventKind = "agent_stuck"
)

// NotifyFunc receives scheduler mutations for ambient wiring (event bus,
// telemetry). A nil sink means no notifications are delivered; the
// scheduler itself never imports the event bus.
type NotifyFunc func(kind EventKind, payload any)

// Metrics aggregates workshop-wide counters. Returned as a deep copy from
// Status so callers cannot mutate scheduler-internal state.
type Metrics struct {
	Processed       int
	Completed       int
	Failed          int
	Retried         int
	AverageDuration time.Duration
	Utilization     map[model.AgentRole]float64
	QueueLength     int
	BottleneckRole  model.AgentRole
	Throughput      float64
	SuccessRate     float64
	CostPerTask     float64

	totalDuration time.Duration
}

// StatusSnapshot is the read-only view returned by Status.
type StatusSnapshot struct {
	Metrics  Metrics
	Active   map[model.AgentRole]int
	Capacity map[model.AgentRole]int
}

// Expertise tracks an agent's running per-category success rate and
// per-complexity average completion time.
type Expertise struct {
	SuccessRate         map[model.TaskCategory]float64
	AvgDuration         map[model.TaskComplexity]time.Duration
	TotalTasks          int
	SpecializationScore float64
	LastUpdated         time.Time
}

func newExpertise() *Expertise {
	return &Expertise{
		SuccessRate: make(map[model.TaskCategory]float64),
		AvgDuration: make(map[model.TaskComplexity]time.Duration),
	}
}

// Scheduler is the workshop manager.
type Scheduler struct {
	mu sync.Mutex

	agents    map[string]*model.Agent
	tasks     map[string]*model.Task
	queue     []*model.Task // pending, in queue order
	active    map[model.AgentRole]map[string]struct{}
	capacity  map[model.AgentRole]int
	completed map[string]struct{}
	expertise map[string]*Expertise
	metrics   Metrics
	startedAt time.Time

	roleSeen []model.AgentRole // first-seen order, for bottleneck tie-breaking

	notify NotifyFunc
	retry  *retry.Executor
}

// New creates an empty Scheduler with default per-role capacities.
func New() *Scheduler {
	return &Scheduler{
		agents:    make(map[string]*model.Agent),
		tasks:     make(map[string]*model.Task),
		active:    map[model.AgentRole]map[string]struct{}{},
		capacity:  defaultCapacity(),
		completed: make(map[string]struct{}),
		expertise: make(map[string]*Expertise),
		metrics:   Metrics{Utilization: make(map[model.AgentRole]float64)},
		startedAt: time.Now(),
		retry:     retry.New(retry.DefaultPolicy(), nil),
	}
}

// SetNotify registers the ambient notification sink. Must be called before
// any mutating method if the caller wants to observe every event; a nil
// sink (the default) means no notifications are delivered.
func (s *Scheduler) SetNotify(fn NotifyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// SetRetryPolicy rebinds the retry policy used by ExecuteWithRetry.
func (s *Scheduler) SetRetryPolicy(policy retry.Policy, observer retry.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry = retry.New(policy, observer)
}

func (s *Scheduler) emit(kind EventKind, payload any) {
	if s.notify != nil {
		s.notify(kind, payload)
	}
}

// RegisterAgent adds an agent to the registry and tracks its role for
// bottleneck tie-breaking.
func (s *Scheduler) RegisterAgent(a *model.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[a.Role]; !exists {
		s.active[a.Role] = make(map[string]struct{})
		s.roleSeen = append(s.roleSeen, a.Role)
	}
	if _, exists := s.capacity[a.Role]; !exists {
		s.capacity[a.Role] = 1
	}
	s.agents[a.ID] = a
	s.emit(EventAgentRegistered, a.Snapshot())
}

// SetCapacity reconfigures a role's concurrency cap at runtime.
func (s *Scheduler) SetCapacity(role model.AgentRole, cap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity[role] = cap
}

// CanAssign reports whether a role has spare capacity.
func (s *Scheduler) CanAssign(role model.AgentRole) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canAssignLocked(role)
}

func (s *Scheduler) canAssignLocked(role model.AgentRole) bool {
	return len(s.active[role]) < s.capacity[role]
}

// QueueTask inserts a task immediately before the first queued task of
// strictly lower priority: stable insertion by priority, FIFO within a
// priority band.
func (s *Scheduler) QueueTask(t *model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t
	idx := len(s.queue)
	for i, q := range s.queue {
		if q.Context.Priority < t.Context.Priority {
			idx = i
			break
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[idx+1:], s.queue[idx:])
	s.queue[idx] = t
	s.metrics.QueueLength = len(s.queue)
	s.emit(EventTaskQueued, t.Snapshot())
}

func (s *Scheduler) dependenciesSatisfiedLocked(t *model.Task) bool {
	return t.DependenciesSatisfied(s.completed)
}

func (s *Scheduler) findIdleAgentLocked(role model.AgentRole) *model.Agent {
	for _, a := range s.agents {
		if a.Role == role && a.Status == model.AgentIdle {
			return a
		}
	}
	return nil
}

// TryAssignNext finds the first assignable task in queue order and assigns
// it to the first matching idle agent. Returns (agentID, taskID, true) on
// success, or ("", "", false) if nothing is currently assignable.
func (s *Scheduler) TryAssignNext() (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.queue {
		if !s.dependenciesSatisfiedLocked(t) {
			continue
		}
		if !s.canAssignLocked(t.Role) {
			continue
		}
		agent := s.findIdleAgentLocked(t.Role)
		if agent == nil {
			continue
		}
		s.removeQueueIndexLocked(i)
		s.assignLocked(agent, t)
		return agent.ID, t.ID, true
	}
	return "", "", false
}

func (s *Scheduler) removeQueueIndexLocked(i int) {
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	s.metrics.QueueLength = len(s.queue)
}

func (s *Scheduler) assignLocked(a *model.Agent, t *model.Task) {
	_ = t.AssignTo(a.ID)
	_ = t.Start()
	_ = a.Assign(t.ID)
	s.active[t.Role][a.ID] = struct{}{}
	s.emit(EventTaskAssigned, map[string]string{"agent_id": a.ID, "task_id": t.ID})
}

// AssignByPriority reorders the queue by (priority desc, complexity asc),
// then assigns the best-scoring agent to the first assignable candidate.
func (s *Scheduler) AssignByPriority() (string, *model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reorderQueueLocked()

	for i, t := range s.queue {
		if !s.dependenciesSatisfiedLocked(t) {
			continue
		}
		if !s.canAssignLocked(t.Role) {
			continue
		}
		agent := s.bestAgentLocked(t)
		if agent == nil {
			continue
		}
		s.removeQueueIndexLocked(i)
		s.assignLocked(agent, t)
		snapshot := t.Snapshot()
		return agent.ID, &snapshot, true
	}
	return "", nil, false
}

func complexityRank(c model.TaskComplexity) int {
	switch c {
	case model.ComplexitySimple:
		return 0
	case model.ComplexityMedium:
		return 1
	case model.ComplexityComplex:
		return 2
	case model.ComplexityExpert:
		return 3
	default:
		return 1
	}
}

func (s *Scheduler) reorderQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		a, b := s.queue[i], s.queue[j]
		if a.Context.Priority != b.Context.Priority {
			return a.Context.Priority > b.Context.Priority
		}
		ca := model.EstimateComplexity(a.Title, a.Description)
		cb := model.EstimateComplexity(b.Title, b.Description)
		return complexityRank(ca) < complexityRank(cb)
	})
}

// bestAgentLocked picks the idle, capable agent with the highest score for
// the given task. Ties are broken by map iteration order, matching the
// first-match rule the scoring formula is specified against.
func (s *Scheduler) bestAgentLocked(t *model.Task) *model.Agent {
	var best *model.Agent
	bestScore := math.Inf(-1)
	for _, a := range s.agents {
		if a.Role != t.Role || a.Status != model.AgentIdle {
			continue
		}
		score := s.scoreAgent(a, t)
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}

func (s *Scheduler) scoreAgent(a *model.Agent, t *model.Task) float64 {
	category := model.EstimateCategory(t.Description)
	complexity := model.EstimateComplexity(t.Title, t.Description)

	successRate := 0.5
	avgHours := 1.0
	totalTasks := 0.0
	if exp, ok := s.expertise[a.ID]; ok {
		if rate, ok := exp.SuccessRate[category]; ok {
			successRate = rate
		}
		if d, ok := exp.AvgDuration[complexity]; ok {
			avgHours = d.Hours()
		}
		totalTasks = float64(exp.TotalTasks)
	}

	score := 0.5
	score += 0.3 * successRate
	score += 0.2 * (1.0 / (avgHours + 1.0))
	score += math.Min(0.2, totalTasks/100.0)
	score -= 0.01 * float64(a.Metrics.TasksCompleted)
	return score
}

// AssignTask assigns a specific task directly, bypassing the queue. Used by
// callers that have already selected a task via out-of-band logic.
func (s *Scheduler) AssignTask(t *model.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dependenciesSatisfiedLocked(t) {
		return "", fmt.Errorf("%w: task %s", model.ErrDependenciesNotSatisfied, t.ID)
	}
	if !s.canAssignLocked(t.Role) {
		return "", fmt.Errorf("%w: role %s", model.ErrAtCapacity, t.Role)
	}
	agent := s.findIdleAgentLocked(t.Role)
	if agent == nil {
		return "", fmt.Errorf("%w: role %s", model.ErrNoAvailableAgents, t.Role)
	}
	s.assignLocked(agent, t)
	return agent.ID, nil
}

// CompleteTask requires the agent's current task to equal taskID. It
// transitions the agent to Idle, adds the task to the completed set,
// updates expertise, and recomputes metrics.
func (s *Scheduler) CompleteTask(agentID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, task, err := s.lookupAssignmentLocked(agentID, taskID)
	if err != nil {
		return err
	}

	delete(s.active[agent.Role], agent.ID)
	agent.Complete()
	task.Complete()
	s.completed[task.ID] = struct{}{}
	duration := task.CompletedAt.Sub(task.AssignedAt)
	s.metrics.Completed++
	s.metrics.Processed++
	s.metrics.totalDuration += duration
	s.updateExpertiseLocked(agent, task, true, duration)
	s.recomputeMetricsLocked()
	s.emit(EventTaskCompleted, map[string]string{"agent_id": agent.ID, "task_id": task.ID})
	return nil
}

// FailTask is symmetric to CompleteTask: the agent moves to Error, the
// error is stored on the agent, and the task is never added to the
// completed set.
func (s *Scheduler) FailTask(agentID, taskID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, task, err := s.lookupAssignmentLocked(agentID, taskID)
	if err != nil {
		return err
	}

	delete(s.active[agent.Role], agent.ID)
	agent.Fail(errText)
	task.Fail()
	s.metrics.Failed++
	s.metrics.Processed++
	s.updateExpertiseLocked(agent, task, false, 0)
	s.recomputeMetricsLocked()
	s.emit(EventTaskFailed, map[string]string{"agent_id": agent.ID, "task_id": task.ID, "error": errText})
	return nil
}

func (s *Scheduler) lookupAssignmentLocked(agentID, taskID string) (*model.Agent, *model.Task, error) {
	agent, ok := s.agents[agentID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrAgentNotFound, agentID)
	}
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", model.ErrTaskNotFound, taskID)
	}
	if agent.CurrentTask != taskID {
		return nil, nil, fmt.Errorf("%w: agent %s is on task %q, not %q", model.ErrWrongTask, agentID, agent.CurrentTask, taskID)
	}
	return agent, task, nil
}

// ExecuteWithRetry composes the retry executor around a single opaque
// attempt function for the given agent/task pair. It folds attempts-1 into
// tasks_retried but performs no terminal transition itself — the caller
// decides whether the outcome becomes CompleteTask or FailTask.
func (s *Scheduler) ExecuteWithRetry(ctx context.Context, agentID string, task *model.Task, attempt retry.SingleAttempt) (retry.AttemptResult, error) {
	s.mu.Lock()
	agent, ok := s.agents[agentID]
	if !ok {
		s.mu.Unlock()
		return retry.AttemptResult{}, fmt.Errorf("%w: %s", model.ErrAgentNotFound, agentID)
	}
	executor := s.retry
	s.mu.Unlock()

	result, err := executor.Execute(ctx, attempt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if result.AttemptNumber > 1 {
		s.metrics.Retried += result.AttemptNumber - 1
	}
	s.updateExpertiseLocked(agent, task, err == nil, result.Duration)
	return result, err
}

// updateExpertiseLocked applies the EWMA update rules:
// success_rate uses a 0.9/0.1 weighting with an initial value of 0.5;
// avg_duration (only on success) uses 0.8/0.2 with an initial value of one
// hour; specialization_score is the stddev of the success-rate map, capped
// at 1.0.
func (s *Scheduler) updateExpertiseLocked(a *model.Agent, t *model.Task, success bool, duration time.Duration) {
	exp, ok := s.expertise[a.ID]
	if !ok {
		exp = newExpertise()
		s.expertise[a.ID] = exp
	}

	category := model.EstimateCategory(t.Description)
	old, ok := exp.SuccessRate[category]
	if !ok {
		old = 0.5
	}
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	exp.SuccessRate[category] = 0.9*old + 0.1*outcome

	if success {
		complexity := model.EstimateComplexity(t.Title, t.Description)
		oldDuration, ok := exp.AvgDuration[complexity]
		if !ok {
			oldDuration = time.Hour
		}
		newDuration := time.Duration(0.8*float64(oldDuration) + 0.2*float64(duration))
		exp.AvgDuration[complexity] = newDuration
	}

	exp.TotalTasks++
	exp.LastUpdated = time.Now()
	exp.SpecializationScore = math.Min(1.0, stddev(exp.SuccessRate))
}

func stddev(values map[model.TaskCategory]float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff / float64(len(values)))
}

// recomputeMetricsLocked recalculates utilization, bottleneck role, success
// rate, and throughput from current counters. Called after every
// completion/failure so the snapshot returned by Status is always a pure
// function of the operation sequence applied so far.
func (s *Scheduler) recomputeMetricsLocked() {
	for _, role := range s.roleSeen {
		cap := s.capacity[role]
		if cap == 0 {
			s.metrics.Utilization[role] = 0
			continue
		}
		s.metrics.Utilization[role] = float64(len(s.active[role])) / float64(cap)
	}

	var bottleneck model.AgentRole
	best := -1.0
	for _, role := range s.roleSeen {
		u := s.metrics.Utilization[role]
		if u > best {
			best = u
			bottleneck = role
		}
	}
	s.metrics.BottleneckRole = bottleneck

	total := s.metrics.Completed + s.metrics.Failed
	if total > 0 {
		s.metrics.SuccessRate = float64(s.metrics.Completed) / float64(total)
	} else {
		s.metrics.SuccessRate = 0
	}

	if s.metrics.Completed > 0 {
		s.metrics.AverageDuration = s.metrics.totalDuration / time.Duration(s.metrics.Completed)
	}
	if elapsed := time.Since(s.startedAt).Hours(); elapsed > 0 {
		s.metrics.Throughput = float64(s.metrics.Processed) / elapsed
	}
	// Cost is tracked as mean attempts per processed task; retries inflate it.
	if s.metrics.Processed > 0 {
		s.metrics.CostPerTask = float64(s.metrics.Processed+s.metrics.Retried) / float64(s.metrics.Processed)
	}
}

// Status returns a deep-copied snapshot of current metrics plus per-role
// active/capacity maps.
func (s *Scheduler) Status() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[model.AgentRole]int, len(s.active))
	for role, set := range s.active {
		active[role] = len(set)
	}
	capacity := make(map[model.AgentRole]int, len(s.capacity))
	for role, c := range s.capacity {
		capacity[role] = c
	}
	util := make(map[model.AgentRole]float64, len(s.metrics.Utilization))
	for role, u := range s.metrics.Utilization {
		util[role] = u
	}
	metrics := s.metrics
	metrics.Utilization = util
	metrics.QueueLength = len(s.queue)

	return StatusSnapshot{Metrics: metrics, Active: active, Capacity: capacity}
}

// GetAgent returns a read-only snapshot of an agent by id.
func (s *Scheduler) GetAgent(id string) (model.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, false
	}
	return a.Snapshot(), true
}

// GetAllAgents returns read-only snapshots of every registered agent.
func (s *Scheduler) GetAllAgents() []model.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.Snapshot())
	}
	return out
}

// GetQueue returns read-only snapshots of the queue in its current order.
func (s *Scheduler) GetQueue() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.queue))
	for _, t := range s.queue {
		out = append(out, t.Snapshot())
	}
	return out
}

// CheckStuck scans Working agents for inactivity past threshold, moving
// each to NeedsSupervision and returning their ids.
func (s *Scheduler) CheckStuck(threshold time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var stuck []string
	for _, a := range s.agents {
		if a.Status == model.AgentWorking && a.IdleFor(now) > threshold {
			a.RequestHelp()
			delete(s.active[a.Role], a.ID)
			stuck = append(stuck, a.ID)
			s.emit(EventAgentStuck, a.ID)
		}
	}
	if len(stuck) > 0 {
		s.recomputeMetricsLocked()
	}
	return stuck
}
