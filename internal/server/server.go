package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/johnhkchen/dfcoder/internal/audit"
	"github.com/johnhkchen/dfcoder/internal/events"
	"github.com/johnhkchen/dfcoder/internal/scheduler"
	"github.com/johnhkchen/dfcoder/internal/supervision"
)

// schedulerEventType maps a scheduler.EventKind onto the corresponding
// events.EventType so the two packages can evolve independently.
func schedulerEventType(kind scheduler.EventKind) events.EventType {
	switch kind {
	case scheduler.EventAgentRegistered:
		return events.EventAgentRegistered
	case scheduler.EventTaskQueued:
		return events.EventTaskQueued
	case scheduler.EventTaskAssigned:
		return events.EventTaskAssigned
	case scheduler.EventTaskCompleted:
		return events.EventTaskCompleted
	case scheduler.EventTaskFailed:
		return events.EventTaskFailed
	case scheduler.EventAgentStuck:
		return events.EventAgentStuck
	default:
		return events.EventType(kind)
	}
}

// Server is the daemon's HTTP + WebSocket control-plane API. It wraps a
// Scheduler and a supervision Engine; it never duplicates their state, it
// only projects it over JSON and pushes transitions to connected clients.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub

	scheduler   *scheduler.Scheduler
	supervision *supervision.Engine
	bus         *events.Bus
	auditStore  *audit.Store // optional, nil disables historical queries

	stuckNotifier StuckNotifier

	port      int
	startTime time.Time
	stopChan  chan struct{}
}

// NewServer wires a Server around an already-configured scheduler and
// supervision engine. auditStore may be nil.
func NewServer(sched *scheduler.Scheduler, sup *supervision.Engine, bus *events.Bus, auditStore *audit.Store, port int) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		hub:         NewHub(),
		scheduler:   sched,
		supervision: sup,
		bus:         bus,
		auditStore:  auditStore,
		port:        port,
		startTime:   time.Now(),
		stopChan:    make(chan struct{}),
	}
	s.routes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      SecurityHeadersMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/agents", s.handleRegisterAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/agents/{id}/output", s.handleAgentOutput).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	s.router.HandleFunc("/tasks", s.handleQueueTask).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods(http.MethodPost)
	s.router.HandleFunc("/tasks/{id}/fail", s.handleFailTask).Methods(http.MethodPost)
	s.router.HandleFunc("/supervision", s.handleListSupervision).Methods(http.MethodGet)
	s.router.HandleFunc("/supervision/{agentId}/respond", s.handleSupervisionRespond).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
}

// Start runs the hub loop and the HTTP listener. It blocks until ctx is
// cancelled or ListenAndServe returns a non-shutdown error.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown() error {
	close(s.stopChan)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// WireScheduler registers a scheduler.NotifyFunc that fans every scheduler
// mutation out to the event bus (for audit persistence), the WebSocket hub
// (for connected dashboards), and any extra sinks such as the telemetry
// collector. Call once, before any scheduler mutation; the scheduler keeps
// only the last registered sink.
func (s *Server) WireScheduler(extra ...scheduler.NotifyFunc) {
	s.scheduler.SetNotify(func(kind scheduler.EventKind, payload any) {
		fields, ok := payload.(map[string]interface{})
		if !ok {
			fields = map[string]interface{}{"value": payload}
		}
		s.publishEvent(events.NewEvent(schedulerEventType(kind), "scheduler", "all", events.PriorityNormal, fields))
		for _, fn := range extra {
			fn(kind, payload)
		}
	})
}
