package server

import (
	"errors"
	"log"
	"strconv"

	"github.com/johnhkchen/dfcoder/internal/events"
	"github.com/johnhkchen/dfcoder/internal/model"
	natslib "github.com/johnhkchen/dfcoder/internal/nats"
)

// NATSBridge mirrors workshop events onto NATS subjects for external agent
// processes, feeds inbound status updates into supervision, and applies
// inbound supervision replies. Inbound heartbeats are only checked against
// the scheduler's agent list (an unknown agent is logged); they do not
// change agent state.
type NATSBridge struct {
	server  *Server
	client  *natslib.Client
	handler *natslib.Handler
}

// NewNATSBridge wires a bridge between the daemon's event bus/scheduler and
// a NATS connection.
func NewNATSBridge(s *Server, client *natslib.Client) *NATSBridge {
	b := &NATSBridge{server: s, client: client}
	b.handler = natslib.NewHandler(client, natslib.HandlerCallbacks{
		OnHeartbeat:        b.handleHeartbeat,
		OnStatusUpdate:     b.handleStatusUpdate,
		OnSupervisionReply: b.handleSupervisionReply,
	})
	return b
}

// Start begins processing inbound NATS messages.
func (b *NATSBridge) Start() error {
	return b.handler.Start()
}

// Stop terminates message processing.
func (b *NATSBridge) Stop() {
	b.handler.Stop()
}

func (b *NATSBridge) handleHeartbeat(agentID, status, task string) error {
	if _, ok := b.server.scheduler.GetAgent(agentID); !ok {
		log.Printf("[nats-bridge] heartbeat from unknown agent %s", agentID)
	}
	return nil
}

// handleStatusUpdate feeds an agent's free-text status message into the
// supervision engine so a stuck agent reporting over NATS triggers the same
// dialogue as one reporting over HTTP.
func (b *NATSBridge) handleStatusUpdate(agentID, status, message string) error {
	req, err := b.server.IngestAgentOutput(agentID, message)
	if errors.Is(err, model.ErrAgentNotFound) {
		log.Printf("[nats-bridge] status update from unknown agent %s", agentID)
		return nil
	}
	if err != nil {
		return err
	}
	if req != nil {
		log.Printf("[nats-bridge] supervision requested for agent %s (urgency=%s)", agentID, req.Urgency)
	}
	return nil
}

func (b *NATSBridge) handleSupervisionReply(agentID, optionID, from string) error {
	if b.server.supervision == nil {
		return nil
	}
	n, err := strconv.Atoi(optionID)
	if err != nil {
		return err
	}
	_, err = b.server.supervision.HandleResponse(agentID, n)
	return err
}

// PublishEvent forwards a workshop event onto its NATS subject so external
// subscribers (dashboards, agent processes) see it without connecting to
// the HTTP WebSocket.
func (b *NATSBridge) PublishEvent(evt *events.Event) {
	var subject string
	switch evt.Type {
	case events.EventTaskQueued:
		subject = natslib.SubjectTaskQueued
	case events.EventTaskAssigned:
		subject = natslib.SubjectTaskAssigned
	case events.EventTaskCompleted:
		subject = natslib.SubjectTaskCompleted
	case events.EventTaskFailed:
		subject = natslib.SubjectTaskFailed
	case events.EventSupervisionRequested:
		subject = natslib.SubjectSupervisionRequest
	default:
		subject = natslib.SubjectSystemBroadcast
	}
	if err := b.client.PublishJSON(subject, evt); err != nil {
		log.Printf("[nats-bridge] publish failed: %v", err)
	}
}
