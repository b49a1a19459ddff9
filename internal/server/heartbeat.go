package server

import (
	"context"
	"log"
	"time"
)

const (
	// StuckCheckInterval is how often the server polls the scheduler for
	// agents that have gone idle-while-working past the stuck threshold.
	StuckCheckInterval = 15 * time.Second
	// StuckThreshold is how long an agent may sit without activity before
	// it is reported stuck.
	StuckThreshold = 5 * time.Minute
)

// StuckNotifier is notified when the periodic stuck check finds an agent
// that has gone quiet past StuckThreshold. Implemented by
// notifications.Manager; nil disables the alert without affecting the
// scheduler's own CheckStuck bookkeeping.
type StuckNotifier interface {
	NotifyStuck(agentID string)
}

// SetStuckNotifier wires an alert channel for agents detected stuck.
func (s *Server) SetStuckNotifier(n StuckNotifier) {
	s.stuckNotifier = n
}

// StartStuckChecker runs a background goroutine that polls the scheduler
// for stuck agents and forwards them to the notifier and the event bus.
func (s *Server) StartStuckChecker(ctx context.Context) {
	ticker := time.NewTicker(StuckCheckInterval)
	defer ticker.Stop()

	log.Printf("[server] stuck checker started (interval=%v threshold=%v)", StuckCheckInterval, StuckThreshold)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, agentID := range s.scheduler.CheckStuck(StuckThreshold) {
				log.Printf("[server] agent %s appears stuck", agentID)
				if s.stuckNotifier != nil {
					s.stuckNotifier.NotifyStuck(agentID)
				}
			}
		}
	}
}
