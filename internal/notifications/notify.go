// Package notifications implements the desktop/terminal notification
// channels the daemon wires to the supervision engine's escalation hook and
// to stuck-agent detections. A failing notifier never affects scheduler or
// supervision state; every method here returns its error for logging only.
package notifications

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/johnhkchen/dfcoder/internal/supervision"
)

// TerminalNotifier flashes the terminal title via an ANSI OSC sequence.
type TerminalNotifier struct {
	mu            sync.Mutex
	originalTitle string
}

func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{originalTitle: "workshopd"}
}

func (t *TerminalNotifier) Flash(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch runtime.GOOS {
	case "windows", "linux", "darwin":
		fmt.Printf("\033]0;🔔 workshopd - %s\007", message)
		return nil
	default:
		return fmt.Errorf("terminal title manipulation not supported on %s", runtime.GOOS)
	}
}

func (t *TerminalNotifier) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Printf("\033]0;%s\007", t.originalTitle)
	return nil
}

// Manager fans a supervision escalation out to every enabled channel. It
// implements supervision.Escalator so the engine can notify it directly.
type Manager struct {
	toast    *ToastNotifier
	terminal *TerminalNotifier
	logger   *log.Logger
}

var _ supervision.Escalator = (*Manager)(nil)

func NewManager(appID, dashboardURL string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		toast:    NewToastNotifier(appID, dashboardURL),
		terminal: NewTerminalNotifier(),
		logger:   logger,
	}
}

// Notify implements supervision.Escalator for Critical-urgency requests.
func (m *Manager) Notify(req supervision.Request) {
	message := fmt.Sprintf("agent %s needs supervision (urgency=%s)", req.AgentID, req.Urgency)
	if err := m.toast.ShowToast("Supervisor needs input", message); err != nil {
		m.logger.Printf("[notify] toast failed: %v", err)
	}
	if err := m.terminal.Flash(message); err != nil {
		m.logger.Printf("[notify] terminal flash failed: %v", err)
	}
}

// NotifyStuck is a lighter-weight alert for agents detected stuck by
// scheduler.CheckStuck, independent of the supervision escalation path.
func (m *Manager) NotifyStuck(agentID string) {
	if err := m.terminal.Flash(fmt.Sprintf("agent %s appears stuck", agentID)); err != nil {
		m.logger.Printf("[notify] terminal flash failed: %v", err)
	}
}
