package model

import "testing"

func TestAgentLifecycle(t *testing.T) {
	a := NewAgent("a1", RoleImplementer, "pane-3")
	if a.Status != AgentIdle {
		t.Fatalf("new agent status = %s, want idle", a.Status)
	}
	if a.CurrentTask != "" {
		t.Fatal("new agent must not have a current task")
	}

	if err := a.Assign("t1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.Status != AgentWorking || a.CurrentTask != "t1" {
		t.Errorf("after Assign: status=%s task=%q, want working/t1", a.Status, a.CurrentTask)
	}

	if err := a.Assign("t2"); err == nil {
		t.Error("expected error assigning to a Working agent")
	}

	a.Complete()
	if a.Status != AgentIdle || a.CurrentTask != "" {
		t.Errorf("after Complete: status=%s task=%q, want idle with no task", a.Status, a.CurrentTask)
	}
}

func TestAgentSuccessRate(t *testing.T) {
	a := NewAgent("a1", RoleDebugger, "")
	if a.Metrics.SuccessRate != 0 {
		t.Errorf("success rate with no tasks = %v, want 0", a.Metrics.SuccessRate)
	}

	_ = a.Assign("t1")
	a.Complete()
	if a.Metrics.SuccessRate != 1.0 {
		t.Errorf("success rate after one success = %v, want 1.0", a.Metrics.SuccessRate)
	}

	_ = a.Assign("t2")
	a.Fail("boom")
	if a.Metrics.SuccessRate != 0.5 {
		t.Errorf("success rate after one success and one failure = %v, want 0.5", a.Metrics.SuccessRate)
	}
	if a.Status != AgentError {
		t.Errorf("status after Fail = %s, want error", a.Status)
	}
	if a.Metrics.LastError != "boom" {
		t.Errorf("last error = %q, want boom", a.Metrics.LastError)
	}
}

func TestAgentFailureOnlySuccessRate(t *testing.T) {
	a := NewAgent("a1", RoleTester, "")
	_ = a.Assign("t1")
	a.Fail("nope")
	if a.Metrics.SuccessRate != 0 {
		t.Errorf("success rate after only a failure = %v, want 0", a.Metrics.SuccessRate)
	}
}

func TestAgentRequestHelpAndRecover(t *testing.T) {
	a := NewAgent("a1", RoleImplementer, "")
	_ = a.Assign("t1")

	a.RequestHelp()
	if a.Status != AgentNeedsSupervision {
		t.Errorf("status after RequestHelp = %s, want needs_supervision", a.Status)
	}
	if a.Metrics.HelpRequests != 1 {
		t.Errorf("help requests = %d, want 1", a.Metrics.HelpRequests)
	}

	a.Recover()
	if a.Status != AgentIdle || a.CurrentTask != "" {
		t.Errorf("after Recover: status=%s task=%q, want idle with no task", a.Status, a.CurrentTask)
	}
}
