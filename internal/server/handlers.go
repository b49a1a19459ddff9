package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/supervision"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Printf("[server] request error (%d): %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps core errors onto HTTP status codes: missing entities are
// 404, capacity/busy conflicts are 409, unmet dependencies are 422, and a
// bad option choice is 400. Anything unrecognized is treated as a conflict.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrAgentNotFound),
		errors.Is(err, model.ErrTaskNotFound),
		errors.Is(err, model.ErrNoActiveRequest):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAtCapacity),
		errors.Is(err, model.ErrAgentBusy):
		return http.StatusConflict
	case errors.Is(err, model.ErrDependenciesNotSatisfied):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidOption):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

// handleStatus reports the workshop-wide snapshot: queue depth, per-role
// utilization, and completion/failure counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.GetAllAgents())
}

type registerAgentRequest struct {
	ID     string          `json:"id"`
	Role   model.AgentRole `json:"role"`
	PaneID string          `json:"pane_id"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	agent := model.NewAgent(req.ID, req.Role, req.PaneID)
	s.scheduler.RegisterAgent(agent)
	writeJSON(w, http.StatusCreated, agent.Snapshot())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.GetQueue())
}

type queueTaskRequest struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Role        model.AgentRole    `json:"role"`
	Priority    model.TaskPriority `json:"priority"`
}

func (s *Server) handleQueueTask(w http.ResponseWriter, r *http.Request) {
	var req queueTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task := model.NewTask(req.ID, req.Title, req.Description, req.Role, req.Priority)
	s.scheduler.QueueTask(task)
	writeJSON(w, http.StatusCreated, task.Snapshot())
}

type taskOutcomeRequest struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	var req taskOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.scheduler.CompleteTask(req.AgentID, taskID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFailTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	var req taskOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.scheduler.FailTask(req.AgentID, taskID, req.Reason); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type agentOutputRequest struct {
	Output string `json:"output"`
}

// handleAgentOutput ingests a snippet of agent output. Responds 201 with
// the supervision request when the output triggers one, 204 otherwise.
func (s *Server) handleAgentOutput(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["id"]
	var req agentOutputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supReq, err := s.IngestAgentOutput(agentID, req.Output)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if supReq == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, supReq)
}

func (s *Server) handleListSupervision(w http.ResponseWriter, r *http.Request) {
	if s.supervision == nil {
		writeJSON(w, http.StatusOK, []supervision.Request{})
		return
	}
	writeJSON(w, http.StatusOK, s.supervision.GetAllActiveRequests())
}

type supervisionRespondRequest struct {
	OptionID int `json:"option_id"`
}

func (s *Server) handleSupervisionRespond(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	var req supervisionRespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action, err := s.supervision.HandleResponse(agentID, req.OptionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and registers it with the hub so
// it receives every subsequent scheduler/supervision event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{hub: s.hub, conn: conn, send: make(chan []byte, WebSocketBufferSize)}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}
