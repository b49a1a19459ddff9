package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/johnhkchen/dfcoder/internal/events"
	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/supervision"
)

// SupervisionSweepInterval is how often expired supervision requests are
// cleaned up and auto-resolution is applied.
const SupervisionSweepInterval = 10 * time.Second

// publishEvent fans an event out to the bus (for audit persistence) and the
// WebSocket hub (for connected dashboards).
func (s *Server) publishEvent(evt *events.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
	s.hub.BroadcastEvent(evt)
}

// IngestAgentOutput routes a snippet of agent output into the supervision
// engine. This is the trigger path for the whole supervision dialogue: the
// engine classifies the output and, when the agent needs help, produces a
// request that is returned to the caller and published as an event.
func (s *Server) IngestAgentOutput(agentID, output string) (*supervision.Request, error) {
	agent, ok := s.scheduler.GetAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAgentNotFound, agentID)
	}
	if s.supervision == nil {
		return nil, nil
	}

	req := s.supervision.CheckNeed(supervision.AgentContext{
		AgentID:     agentID,
		Role:        agent.Role,
		CurrentTask: agent.CurrentTask,
	}, output)
	if req == nil {
		return nil, nil
	}

	s.publishEvent(events.NewEvent(events.EventSupervisionRequested, "supervision", "all", events.PriorityHigh, map[string]interface{}{
		"agent_id": agentID,
		"urgency":  string(req.Urgency),
		"context":  req.Context,
	}))
	return req, nil
}

// StartSupervisionSweeper runs a background goroutine that expires stale
// supervision requests and applies auto-resolution, publishing an event for
// each request it retires.
func (s *Server) StartSupervisionSweeper(ctx context.Context) {
	if s.supervision == nil {
		return
	}
	ticker := time.NewTicker(SupervisionSweepInterval)
	defer ticker.Stop()

	log.Printf("[server] supervision sweeper started (interval=%v)", SupervisionSweepInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, agentID := range s.supervision.CleanupExpired(time.Now()) {
				s.publishEvent(events.NewEvent(events.EventSupervisionTimedOut, "supervision", "all", events.PriorityNormal, map[string]interface{}{
					"agent_id": agentID,
				}))
			}
			for _, r := range s.supervision.AutoResolve() {
				log.Printf("[server] auto-resolved supervision for agent %s with %s", r.AgentID, r.Action.Kind)
				s.publishEvent(events.NewEvent(events.EventSupervisionResolved, "supervision", "all", events.PriorityNormal, map[string]interface{}{
					"agent_id": r.AgentID,
					"action":   string(r.Action.Kind),
				}))
			}
		}
	}
}
