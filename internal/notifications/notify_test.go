package notifications

import (
	"testing"

	"github.com/johnhkchen/dfcoder/internal/supervision"
)

func TestManagerImplementsEscalator(t *testing.T) {
	m := NewManager("", "", nil)
	// Notify must not panic even though toast is unsupported off Windows.
	m.Notify(supervision.Request{AgentID: "a1", Urgency: supervision.UrgencyCritical})
}

func TestTerminalFlashAndClear(t *testing.T) {
	term := NewTerminalNotifier()
	if err := term.Flash("test message"); err != nil {
		t.Errorf("Flash returned error on a supported platform: %v", err)
	}
	if err := term.Clear(); err != nil {
		t.Errorf("Clear returned error: %v", err)
	}
}
