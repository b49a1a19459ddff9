package model

import "testing"

func TestTaskTransitions(t *testing.T) {
	task := NewTask("t1", "Add login", "implement the login flow", RoleImplementer, PriorityNormal)
	if task.Status != TaskPending {
		t.Fatalf("new task status = %s, want pending", task.Status)
	}

	if err := task.Start(); err == nil {
		t.Error("expected error starting a pending task")
	}

	if err := task.AssignTo("a1"); err != nil {
		t.Fatalf("AssignTo: %v", err)
	}
	if task.Status != TaskAssigned || task.AssigneeID != "a1" || task.AssignedAt.IsZero() {
		t.Errorf("after AssignTo: status=%s assignee=%q assignedAt=%v", task.Status, task.AssigneeID, task.AssignedAt)
	}

	if err := task.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	task.Complete()
	if task.Status != TaskCompleted || task.CompletedAt.IsZero() {
		t.Errorf("after Complete: status=%s completedAt=%v", task.Status, task.CompletedAt)
	}
}

func TestTaskTitleFallsBackToDescription(t *testing.T) {
	task := NewTask("t1", "   ", "fix the flaky test", RoleTester, PriorityLow)
	if task.Title != "fix the flaky test" {
		t.Errorf("title = %q, want description fallback", task.Title)
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	task := NewTask("t2", "Wire it up", "implement feature atop t1", RoleImplementer, PriorityNormal)
	task.Context.Dependencies = []string{"t1"}

	completed := map[string]struct{}{}
	if task.DependenciesSatisfied(completed) {
		t.Error("expected unsatisfied with empty completed set")
	}
	completed["t1"] = struct{}{}
	if !task.DependenciesSatisfied(completed) {
		t.Error("expected satisfied once t1 is completed")
	}
}

func TestEstimateComplexity(t *testing.T) {
	cases := []struct {
		title, description string
		want               TaskComplexity
	}{
		{"Fix the login bug", "fix null pointer on login", ComplexitySimple},
		{"Short", "", ComplexitySimple},
		{"Implement payment processing feature", "implement the feature", ComplexityMedium},
		{"Implement payment integration feature", "complex integration with the payment gateway", ComplexityComplex},
		{"Redesign the storage architecture layer", "architecture overhaul of the storage layer", ComplexityExpert},
		{"Update dependency versions everywhere", "bump everything", ComplexityMedium},
	}
	for _, c := range cases {
		if got := EstimateComplexity(c.title, c.description); got != c.want {
			t.Errorf("EstimateComplexity(%q, %q) = %s, want %s", c.title, c.description, got, c.want)
		}
	}
}

func TestEstimateCategory(t *testing.T) {
	cases := []struct {
		description string
		want        TaskCategory
	}{
		{"write a spec for the parser", CategoryTesting},
		{"debug the crash on startup", CategoryDebugging},
		{"setup the project skeleton", CategoryScaffolding},
		{"implement the new endpoint", CategoryImplementation},
		{"look into it", CategoryGeneral},
	}
	for _, c := range cases {
		if got := EstimateCategory(c.description); got != c.want {
			t.Errorf("EstimateCategory(%q) = %s, want %s", c.description, got, c.want)
		}
	}
}
