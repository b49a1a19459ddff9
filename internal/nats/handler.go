package nats

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

var errAlreadyRunning = errors.New("handler already running")

// HandlerCallbacks defines callbacks the handler uses to feed inbound NATS
// traffic into the scheduler and supervision engine. A nil callback means
// the corresponding subject is simply not actioned.
type HandlerCallbacks struct {
	OnHeartbeat        func(agentID, status, task string) error
	OnStatusUpdate     func(agentID, status, message string) error
	OnSupervisionReply func(agentID, optionID, from string) error
	OnSystemBroadcast  func(msgType, message string, data map[string]interface{}) error
}

// Handler processes NATS messages and delegates to callbacks.
type Handler struct {
	client    *Client
	callbacks HandlerCallbacks

	subs   []*nats.Subscription
	subsMu sync.Mutex

	running bool
	stopCh  chan struct{}
}

// NewHandler creates a new NATS message handler.
func NewHandler(client *Client, callbacks HandlerCallbacks) *Handler {
	return &Handler{
		client:    client,
		callbacks: callbacks,
		subs:      make([]*nats.Subscription, 0),
		stopCh:    make(chan struct{}),
	}
}

// Start begins processing NATS messages.
func (h *Handler) Start() error {
	if h.running {
		return errAlreadyRunning
	}
	h.running = true

	subs := []struct {
		subject string
		fn      func(*Message)
	}{
		{SubjectAllHeartbeats, h.handleHeartbeat},
		{SubjectAllStatus, h.handleStatus},
		{SubjectAllSupervisionResponses, h.handleSupervisionReply},
		{SubjectSystemBroadcast, h.handleSystemBroadcast},
	}
	for _, s := range subs {
		sub, err := h.client.Subscribe(s.subject, s.fn)
		if err != nil {
			return err
		}
		h.addSub(sub)
	}

	log.Printf("[nats-handler] started, subscribed to %d subjects", len(h.subs))
	return nil
}

// Stop terminates message processing.
func (h *Handler) Stop() {
	if !h.running {
		return
	}
	close(h.stopCh)

	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}
	h.subs = nil
	h.subsMu.Unlock()

	h.running = false
	log.Printf("[nats-handler] stopped")
}

func (h *Handler) addSub(sub *nats.Subscription) {
	h.subsMu.Lock()
	h.subs = append(h.subs, sub)
	h.subsMu.Unlock()
}

func (h *Handler) handleHeartbeat(msg *Message) {
	var hb HeartbeatMessage
	if err := json.Unmarshal(msg.Data, &hb); err != nil {
		log.Printf("[nats-handler] invalid heartbeat message: %v", err)
		return
	}
	if h.callbacks.OnHeartbeat != nil {
		if err := h.callbacks.OnHeartbeat(hb.AgentID, hb.Status, hb.CurrentTask); err != nil {
			log.Printf("[nats-handler] heartbeat callback error: %v", err)
		}
	}
}

func (h *Handler) handleStatus(msg *Message) {
	var status StatusMessage
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		log.Printf("[nats-handler] invalid status message: %v", err)
		return
	}
	if h.callbacks.OnStatusUpdate != nil {
		if err := h.callbacks.OnStatusUpdate(status.AgentID, status.Status, status.Message); err != nil {
			log.Printf("[nats-handler] status callback error: %v", err)
		}
	}
}

func (h *Handler) handleSupervisionReply(msg *Message) {
	var resp SupervisionResponseMessage
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		log.Printf("[nats-handler] invalid supervision response: %v", err)
		return
	}
	if h.callbacks.OnSupervisionReply != nil {
		if err := h.callbacks.OnSupervisionReply(resp.AgentID, resp.OptionID, resp.From); err != nil {
			log.Printf("[nats-handler] supervision reply callback error: %v", err)
		}
	}
}

func (h *Handler) handleSystemBroadcast(msg *Message) {
	var broadcast SystemBroadcastMessage
	if err := json.Unmarshal(msg.Data, &broadcast); err != nil {
		log.Printf("[nats-handler] invalid system broadcast message: %v", err)
		return
	}
	if h.callbacks.OnSystemBroadcast != nil {
		if err := h.callbacks.OnSystemBroadcast(broadcast.Type, broadcast.Message, broadcast.Data); err != nil {
			log.Printf("[nats-handler] system broadcast callback error: %v", err)
		}
	}
}
