package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnhkchen/dfcoder/internal/events"
	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/scheduler"
	"github.com/johnhkchen/dfcoder/internal/supervision"
)

func newTestServer() *Server {
	sched := scheduler.New()
	sup := supervision.New()
	bus := events.NewBus(nil)
	return NewServer(sched, sup, bus, nil, 0)
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap scheduler.StatusSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHandleRegisterAndListAgents(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(registerAgentRequest{ID: "a1", Role: model.RoleImplementer})
	req := httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var agents []model.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "a1" {
		t.Errorf("agents = %+v, want one agent a1", agents)
	}
}

func TestHandleQueueAndCompleteTask(t *testing.T) {
	s := newTestServer()
	s.scheduler.RegisterAgent(model.NewAgent("a1", model.RoleImplementer, ""))

	body, _ := json.Marshal(queueTaskRequest{ID: "t1", Title: "fix it", Role: model.RoleImplementer, Priority: model.PriorityNormal})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("queue status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	if _, _, ok := s.scheduler.TryAssignNext(); !ok {
		t.Fatal("expected the queued task to be assignable")
	}

	completeBody, _ := json.Marshal(taskOutcomeRequest{AgentID: "a1"})
	req = httptest.NewRequest(http.MethodPost, "/tasks/t1/complete", bytes.NewReader(completeBody))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("complete status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCompleteTaskUnknownAgentReturnsNotFound(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(taskOutcomeRequest{AgentID: "ghost"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/complete", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestStatusForMapsCoreErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrAgentNotFound, http.StatusNotFound},
		{model.ErrTaskNotFound, http.StatusNotFound},
		{model.ErrNoActiveRequest, http.StatusNotFound},
		{model.ErrAtCapacity, http.StatusConflict},
		{model.ErrAgentBusy, http.StatusConflict},
		{model.ErrDependenciesNotSatisfied, http.StatusUnprocessableEntity},
		{model.ErrInvalidOption, http.StatusBadRequest},
		{model.ErrWrongTask, http.StatusConflict},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestHandleSupervisionRespondUnknownOptionReturnsBadRequest(t *testing.T) {
	s := newTestServer()
	s.supervision.CheckNeed(supervision.AgentContext{AgentID: "a1", Role: model.RoleImplementer}, "stuck and confused, need help")

	body, _ := json.Marshal(supervisionRespondRequest{OptionID: 999})
	req := httptest.NewRequest(http.MethodPost, "/supervision/a1/respond", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListSupervisionEmpty(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/supervision", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var reqs []supervision.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &reqs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("expected no active supervision requests, got %d", len(reqs))
	}
}
