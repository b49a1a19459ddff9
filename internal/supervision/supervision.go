// Package supervision implements the supervisor-intervention dialogue: it
// consults the classifier on agent output, generates structured requests
// with a contextual option set when a worker needs_help, and resolves them
// either by an explicit operator response, an expiry sweep, or auto-resolve.
package supervision

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/johnhkchen/dfcoder/internal/classifier"
	"github.com/johnhkchen/dfcoder/internal/model"
)

// Urgency ranks how promptly a request needs operator attention.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ActionKind is the closed set of actions an operator can choose, or that
// auto-resolve/cleanup can apply on an agent's behalf.
type ActionKind string

const (
	ActionProvideGuidance ActionKind = "provide_guidance"
	ActionRequestMoreInfo ActionKind = "request_more_info"
	ActionTakeOver        ActionKind = "take_over"
	ActionIgnoreForNow    ActionKind = "ignore_for_now"
	ActionEscalateToHuman ActionKind = "escalate_to_human"
	ActionBreakDownTask   ActionKind = "break_down_task"
	ActionReassignTask    ActionKind = "reassign_task"
	ActionRestartAgent    ActionKind = "restart_agent"
)

// Action is the resolved action returned by HandleResponse, carrying
// whatever payload the kind needs (guidance text, or a reassignment role).
type Action struct {
	Kind         ActionKind
	GuidanceText string
	ReassignRole model.AgentRole
}

// Option is one entry in a SupervisionRequest's offered option list.
type Option struct {
	ID            int
	Text          string
	Action        Action
	Icon          string
	EstimatedTime time.Duration
}

// Request is a structured supervisor prompt produced when the classifier
// flags needs_help for an agent's output.
type Request struct {
	AgentID   string
	Context   string
	Options   []Option
	Timeout   time.Duration
	Urgency   Urgency
	CreatedAt time.Time
}

// EventType labels an entry in a request's history.
type EventType string

const (
	EventGenerated    EventType = "generated"
	EventSelected     EventType = "selected"
	EventAutoResolved EventType = "auto_resolved"
	EventTimeout      EventType = "timeout"
	EventEscalated    EventType = "escalated"
)

// HistoryEntry is one record in an agent's supervision history.
type HistoryEntry struct {
	AgentID    string
	EventType  EventType
	Context    string
	Timestamp  time.Time
	Resolution *Action
}

// Escalator is notified, in addition to the normal return value, whenever
// CheckNeed produces a Critical-urgency request. A nil Escalator is valid
// and does nothing.
type Escalator interface {
	Notify(req Request)
}

// Engine holds active supervision requests and a bounded history.
type Engine struct {
	mu sync.Mutex

	active         map[string]*Request
	history        []HistoryEntry
	stuckThreshold time.Duration
	autoResolve    bool

	escalator Escalator
}

const maxHistory = 1000

// New creates a supervision engine with the default 5-minute stuck
// threshold and auto-resolve disabled.
func New() *Engine {
	return &Engine{
		active:         make(map[string]*Request),
		stuckThreshold: 5 * time.Minute,
	}
}

// SetEscalator binds the ambient escalation hook (e.g. desktop notification).
func (e *Engine) SetEscalator(esc Escalator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escalator = esc
}

// SetStuckThreshold reconfigures the stuck threshold used by embedders that
// route CheckStuck results into this engine.
func (e *Engine) SetStuckThreshold(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stuckThreshold = d
}

// EnableAutoSupervision toggles whether AutoResolve is allowed to act.
func (e *Engine) EnableAutoSupervision(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoResolve = enabled
}

// AgentContext is the subset of an agent/task the daemon passes in so
// CheckNeed can build a readable context string without importing the
// scheduler package.
type AgentContext struct {
	AgentID     string
	Role        model.AgentRole
	CurrentTask string
}

// CheckNeed classifies recentOutput for the given agent. If a request is
// already active for the agent, it returns nil without consulting the
// classifier. Otherwise, if the classification's needs_help is true, it
// builds, stores, and returns a new Request.
func (e *Engine) CheckNeed(ctx AgentContext, recentOutput string) *Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.active[ctx.AgentID]; exists {
		return nil
	}

	result := classifier.Classify(recentOutput, nil)
	if !result.NeedsHelp {
		return nil
	}

	req := e.buildRequest(ctx, recentOutput, result)
	e.active[ctx.AgentID] = req
	e.recordHistory(ctx.AgentID, EventGenerated, req.Context, nil)

	if req.Urgency == UrgencyCritical && e.escalator != nil {
		e.escalator.Notify(*req)
	}

	return req
}

func (e *Engine) buildRequest(ctx AgentContext, triggeringText string, result classifier.Result) *Request {
	contextSummary := fmt.Sprintf(
		"agent=%s role=%s task=%s activity=%s confidence=%.2f emotion=%s | %s",
		ctx.AgentID, ctx.Role, ctx.CurrentTask, result.Activity, result.Confidence, result.Emotion, triggeringText,
	)

	options := e.generateOptions(triggeringText, result)
	urgency := determineUrgency(result)

	return &Request{
		AgentID:   ctx.AgentID,
		Context:   contextSummary,
		Options:   options,
		Timeout:   30 * time.Second,
		Urgency:   urgency,
		CreatedAt: time.Now(),
	}
}

// generateOptions builds the contextual option set: a primary option keyed
// on activity/output, an emotion-keyed option, then the two options present
// on every request.
func (e *Engine) generateOptions(output string, result classifier.Result) []Option {
	id := 0
	next := func() int { id++; return id }

	var options []Option

	switch {
	case result.Activity == classifier.ActivityStuck:
		options = append(options,
			Option{ID: next(), Text: "Provide guidance to get unstuck", Action: Action{Kind: ActionProvideGuidance, GuidanceText: stuckScript}, Icon: "🧭", EstimatedTime: 2 * time.Minute},
			Option{ID: next(), Text: "Break the task down into smaller steps", Action: Action{Kind: ActionBreakDownTask}, Icon: "🪓", EstimatedTime: 3 * time.Minute},
		)
	case result.Activity == classifier.ActivityDebugging && containsError(output):
		options = append(options,
			Option{ID: next(), Text: "Provide error-analysis guidance", Action: Action{Kind: ActionProvideGuidance, GuidanceText: errorAnalysisScript}, Icon: "🧭", EstimatedTime: 2 * time.Minute},
		)
	default:
		options = append(options,
			Option{ID: next(), Text: "Request more information from the agent", Action: Action{Kind: ActionRequestMoreInfo}, Icon: "❓", EstimatedTime: 1 * time.Minute},
		)
	}

	switch result.Emotion {
	case classifier.EmotionDesperate:
		options = append(options, Option{ID: next(), Text: "Take over this task", Action: Action{Kind: ActionTakeOver}, Icon: "🙋", EstimatedTime: 5 * time.Minute})
	case classifier.EmotionFrustrated:
		options = append(options, Option{ID: next(), Text: "Reassign to a debugger", Action: Action{Kind: ActionReassignTask, ReassignRole: model.RoleDebugger}, Icon: "🔁", EstimatedTime: 1 * time.Minute})
	}

	options = append(options,
		Option{ID: next(), Text: "Ignore for now", Action: Action{Kind: ActionIgnoreForNow}, Icon: "⏸", EstimatedTime: 0},
		Option{ID: next(), Text: "Escalate to a human", Action: Action{Kind: ActionEscalateToHuman}, Icon: "🚨", EstimatedTime: 0},
	)

	return options
}

const stuckScript = "Describe exactly what you tried and the last error you saw; we'll work through it together."
const errorAnalysisScript = "Paste the full error and stack trace; let's trace it back to the failing line."

func containsError(text string) bool {
	return strings.Contains(strings.ToLower(text), "error")
}

// determineUrgency derives urgency from the classifier result; the rules
// are ordered, first match wins.
func determineUrgency(result classifier.Result) Urgency {
	switch {
	case result.Emotion == classifier.EmotionDesperate:
		return UrgencyCritical
	case result.Emotion == classifier.EmotionFrustrated:
		return UrgencyHigh
	case result.Confidence < 0.4 && result.Activity == classifier.ActivityStuck:
		return UrgencyHigh
	case result.Confidence <= 0.3:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// HandleResponse resolves the active request for agentID by the chosen
// option id, removing it and recording a Selected history entry.
func (e *Engine) HandleResponse(agentID string, optionID int) (Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.active[agentID]
	if !ok {
		return Action{}, fmt.Errorf("%w: agent %s", model.ErrNoActiveRequest, agentID)
	}

	var chosen *Action
	for _, opt := range req.Options {
		if opt.ID == optionID {
			chosen = &opt.Action
			break
		}
	}
	if chosen == nil {
		return Action{}, fmt.Errorf("%w: option %d for agent %s", model.ErrInvalidOption, optionID, agentID)
	}

	delete(e.active, agentID)
	e.recordHistory(agentID, EventSelected, req.Context, chosen)
	return *chosen, nil
}

// CleanupExpired removes every request whose timeout has elapsed relative
// to now, recording a Timeout history entry for each. Idempotent: a second
// call with no newly-expired requests is a no-op.
func (e *Engine) CleanupExpired(now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var expired []string
	for agentID, req := range e.active {
		if now.Sub(req.CreatedAt) > req.Timeout {
			expired = append(expired, agentID)
		}
	}
	for _, agentID := range expired {
		req := e.active[agentID]
		delete(e.active, agentID)
		e.recordHistory(agentID, EventTimeout, req.Context, nil)
	}
	return expired
}

// AutoResolve applies to every active request whose first option is
// ProvideGuidance or RequestMoreInfo, only when the auto-resolve flag is
// enabled. Returns the (agentID, action) pairs it resolved.
func (e *Engine) AutoResolve() []AutoResolution {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.autoResolve {
		return nil
	}

	var resolved []AutoResolution
	for agentID, req := range e.active {
		if len(req.Options) == 0 {
			continue
		}
		first := req.Options[0]
		if first.Action.Kind != ActionProvideGuidance && first.Action.Kind != ActionRequestMoreInfo {
			continue
		}
		resolved = append(resolved, AutoResolution{AgentID: agentID, Action: first.Action})
	}
	for _, r := range resolved {
		req := e.active[r.AgentID]
		delete(e.active, r.AgentID)
		e.recordHistory(r.AgentID, EventAutoResolved, req.Context, &r.Action)
	}
	return resolved
}

// AutoResolution is one entry AutoResolve acted on.
type AutoResolution struct {
	AgentID string
	Action  Action
}

// GetActiveRequest returns the active request for an agent, if any.
func (e *Engine) GetActiveRequest(agentID string) (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.active[agentID]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// GetAllActiveRequests returns a copy of every currently active request.
func (e *Engine) GetAllActiveRequests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Request, 0, len(e.active))
	for _, req := range e.active {
		out = append(out, *req)
	}
	return out
}

// GetAgentHistory returns the bounded history of events for one agent.
func (e *Engine) GetAgentHistory(agentID string) []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []HistoryEntry
	for _, h := range e.history {
		if h.AgentID == agentID {
			out = append(out, h)
		}
	}
	return out
}

func (e *Engine) recordHistory(agentID string, eventType EventType, context string, resolution *Action) {
	e.history = append(e.history, HistoryEntry{
		AgentID:    agentID,
		EventType:  eventType,
		Context:    context,
		Timestamp:  time.Now(),
		Resolution: resolution,
	})
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
}
