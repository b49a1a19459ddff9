package server

import (
	"context"
	"testing"
	"time"

	"github.com/johnhkchen/dfcoder/internal/model"
)

type recordingStuckNotifier struct {
	agentIDs chan string
}

func (r *recordingStuckNotifier) NotifyStuck(agentID string) {
	r.agentIDs <- agentID
}

func TestStuckCheckerNotifiesOnStuckAgent(t *testing.T) {
	s := newTestServer()
	agent := model.NewAgent("a1", model.RoleImplementer, "")
	agent.Status = model.AgentWorking
	agent.LastActivity = time.Now().Add(-time.Hour)
	s.scheduler.RegisterAgent(agent)

	notifier := &recordingStuckNotifier{agentIDs: make(chan string, 1)}
	s.SetStuckNotifier(notifier)

	// One pass of StartStuckChecker's tick body, run by hand because its
	// ticker fires only every StuckCheckInterval.
	for _, id := range s.scheduler.CheckStuck(time.Minute) {
		s.stuckNotifier.NotifyStuck(id)
	}

	select {
	case id := <-notifier.agentIDs:
		if id != "a1" {
			t.Errorf("agentID = %q, want a1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a stuck notification")
	}
}

func TestStartStuckCheckerStopsOnContextCancel(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartStuckChecker(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartStuckChecker did not return after context cancellation")
	}
}
