package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/retry"
)

func TestS1SingleImplementerHappyPath(t *testing.T) {
	s := New()
	a := model.NewAgent("a1", model.RoleImplementer, "")
	s.RegisterAgent(a)

	task := model.NewTask("t1", "Add feature", "implement the thing", model.RoleImplementer, model.PriorityNormal)
	s.QueueTask(task)

	agentID, taskID, ok := s.TryAssignNext()
	if !ok || agentID != "a1" || taskID != "t1" {
		t.Fatalf("TryAssignNext() = (%s, %s, %v), want (a1, t1, true)", agentID, taskID, ok)
	}

	if err := s.CompleteTask("a1", "t1"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	snap, _ := s.GetAgent("a1")
	if snap.Status != model.AgentIdle {
		t.Errorf("agent status = %s, want idle", snap.Status)
	}
	status := s.Status()
	if status.Metrics.Completed != 1 {
		t.Errorf("metrics.completed = %d, want 1", status.Metrics.Completed)
	}
}

func TestS2ScaffolderCapacityGate(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("s1", model.RoleScaffolder, ""))
	s.RegisterAgent(model.NewAgent("s2", model.RoleScaffolder, ""))

	s.QueueTask(model.NewTask("t1", "mkdir project", "mkdir project", model.RoleScaffolder, model.PriorityNormal))
	s.QueueTask(model.NewTask("t2", "mkdir other", "mkdir other", model.RoleScaffolder, model.PriorityNormal))

	firstAgent, firstTask, ok := s.TryAssignNext()
	if !ok {
		t.Fatal("expected first assignment to succeed")
	}

	_, _, ok = s.TryAssignNext()
	if ok {
		t.Fatal("expected second assignment to fail: scaffolder cap is 1")
	}

	if err := s.CompleteTask(firstAgent, firstTask); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	_, secondTask, ok := s.TryAssignNext()
	if !ok || secondTask != "t2" {
		t.Fatalf("expected t2 to be assignable after completion, got ok=%v task=%s", ok, secondTask)
	}
}

func TestS3PriorityReorder(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))

	low := model.NewTask("low", "Setup project", "Setup project", model.RoleImplementer, model.PriorityNormal)
	high := model.NewTask("high", "Critical fix", "Critical fix", model.RoleImplementer, model.PriorityHigh)
	s.QueueTask(low)
	s.QueueTask(high)

	_, task, ok := s.AssignByPriority()
	if !ok || task.ID != "high" {
		t.Fatalf("AssignByPriority() task = %v, want high", task)
	}
}

func TestCapacityInvariant(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("d1", model.RoleDebugger, ""))
	s.RegisterAgent(model.NewAgent("d2", model.RoleDebugger, ""))
	s.RegisterAgent(model.NewAgent("d3", model.RoleDebugger, ""))

	for i := 0; i < 5; i++ {
		s.QueueTask(model.NewTask(idOf(i), "debug it", "fix the bug", model.RoleDebugger, model.PriorityNormal))
	}
	for i := 0; i < 5; i++ {
		s.TryAssignNext()
	}

	status := s.Status()
	if status.Active[model.RoleDebugger] > status.Capacity[model.RoleDebugger] {
		t.Errorf("active[debugger]=%d exceeds capacity=%d", status.Active[model.RoleDebugger], status.Capacity[model.RoleDebugger])
	}
}

func idOf(i int) string {
	return "task-" + string(rune('a'+i))
}

func TestWorkingStatusImpliesCurrentTask(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))
	s.QueueTask(model.NewTask("t1", "Add feature", "implement x", model.RoleImplementer, model.PriorityNormal))

	s.TryAssignNext()
	snap, _ := s.GetAgent("i1")
	if snap.Status == model.AgentWorking && snap.CurrentTask == "" {
		t.Error("Working agent must have a current task set")
	}
	if snap.Status == model.AgentIdle && snap.CurrentTask != "" {
		t.Error("Idle agent must not have a current task set")
	}
}

func TestDependenciesGateAssignment(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))

	blocked := model.NewTask("t2", "Build on top", "implement feature using t1", model.RoleImplementer, model.PriorityNormal)
	blocked.Context.Dependencies = []string{"t1"}
	s.QueueTask(blocked)

	_, _, ok := s.TryAssignNext()
	if ok {
		t.Fatal("task with unsatisfied dependency must not be assignable")
	}
}

func TestEmptyQueueNoStateChange(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))

	_, _, ok := s.TryAssignNext()
	if ok {
		t.Fatal("expected TryAssignNext on empty queue to return false")
	}
}

func TestUnknownAgentOrTaskReturnsError(t *testing.T) {
	s := New()
	if err := s.CompleteTask("ghost", "nope"); err == nil {
		t.Error("expected error completing unknown agent/task")
	}
}

func TestCheckStuck(t *testing.T) {
	s := New()
	a := model.NewAgent("i1", model.RoleImplementer, "")
	s.RegisterAgent(a)
	s.QueueTask(model.NewTask("t1", "Add feature", "implement x", model.RoleImplementer, model.PriorityNormal))
	s.TryAssignNext()

	if stuck := s.CheckStuck(5 * time.Minute); len(stuck) != 0 {
		t.Fatalf("freshly assigned agent reported stuck: %v", stuck)
	}

	a.LastActivity = time.Now().Add(-10 * time.Minute)
	stuck := s.CheckStuck(5 * time.Minute)
	if len(stuck) != 1 || stuck[0] != "i1" {
		t.Fatalf("CheckStuck = %v, want [i1]", stuck)
	}
	snap, _ := s.GetAgent("i1")
	if snap.Status != model.AgentNeedsSupervision {
		t.Errorf("status = %s, want needs_supervision", snap.Status)
	}
}

// fakeAttempt mirrors the deterministic single-attempt fake: behavior keyed
// off task description substrings.
func fakeAttempt(description string) retry.SingleAttempt {
	return func(ctx context.Context, attempt int) (retry.AttemptResult, retry.ErrorClass) {
		if attempt == 1 && strings.Contains(description, "network") {
			return retry.AttemptResult{}, retry.ErrorNetwork
		}
		if strings.Contains(description, "fatal") {
			return retry.AttemptResult{}, retry.ErrorFatal
		}
		return retry.AttemptResult{Success: true, Output: "ok"}, ""
	}
}

func TestExecuteWithRetryCountsRetries(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))
	policy := retry.DefaultPolicy()
	policy.InitialBackoff = 10 * time.Millisecond
	s.SetRetryPolicy(policy, nil)

	task := model.NewTask("t1", "Fix network flake", "network call fails once", model.RoleImplementer, model.PriorityNormal)
	result, err := s.ExecuteWithRetry(context.Background(), "i1", task, fakeAttempt(task.Description))
	if err != nil {
		t.Fatalf("ExecuteWithRetry: %v", err)
	}
	if !result.Success || result.AttemptNumber != 2 {
		t.Errorf("result = %+v, want success on attempt 2", result)
	}
	if got := s.Status().Metrics.Retried; got != 1 {
		t.Errorf("metrics.retried = %d, want 1", got)
	}
}

func TestExecuteWithRetryFatalFailsFast(t *testing.T) {
	s := New()
	s.RegisterAgent(model.NewAgent("i1", model.RoleImplementer, ""))

	task := model.NewTask("t1", "Doomed task", "this one is fatal", model.RoleImplementer, model.PriorityNormal)
	start := time.Now()
	_, err := s.ExecuteWithRetry(context.Background(), "i1", task, fakeAttempt(task.Description))
	if err == nil {
		t.Fatal("expected NonRetryable error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("fatal path took %v, want well under 500ms", elapsed)
	}
	if got := s.Status().Metrics.Retried; got != 0 {
		t.Errorf("metrics.retried = %d, want 0", got)
	}
}

func TestExecuteWithRetryUnknownAgent(t *testing.T) {
	s := New()
	task := model.NewTask("t1", "Anything", "whatever", model.RoleImplementer, model.PriorityNormal)
	if _, err := s.ExecuteWithRetry(context.Background(), "ghost", task, fakeAttempt("")); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestSetCapacityTakesEffectImmediately(t *testing.T) {
	s := New()
	s.SetCapacity(model.RoleTester, 0)
	if s.CanAssign(model.RoleTester) {
		t.Error("expected CanAssign to be false with capacity 0")
	}
	s.SetCapacity(model.RoleTester, 1)
	if !s.CanAssign(model.RoleTester) {
		t.Error("expected CanAssign to be true immediately after raising capacity")
	}
}
