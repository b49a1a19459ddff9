package server

import (
	"context"
	"log"
	"time"
)

const (
	auditCleanupInterval = 30 * time.Minute
	auditRetention       = 7 * 24 * time.Hour
)

// StartAuditCleanup periodically prunes delivered audit events older than
// auditRetention. With a nil audit store it returns immediately.
func (s *Server) StartAuditCleanup(ctx context.Context) {
	if s.auditStore == nil {
		return
	}
	ticker := time.NewTicker(auditCleanupInterval)
	defer ticker.Stop()

	log.Println("[server] audit cleanup started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[server] audit cleanup stopped")
			return
		case <-ticker.C:
			if err := s.auditStore.Cleanup(auditRetention); err != nil {
				log.Printf("[server] audit cleanup error: %v", err)
			}
		}
	}
}
