package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/johnhkchen/dfcoder/internal/audit"
	"github.com/johnhkchen/dfcoder/internal/config"
	"github.com/johnhkchen/dfcoder/internal/events"
	"github.com/johnhkchen/dfcoder/internal/model"
	"github.com/johnhkchen/dfcoder/internal/nats"
	"github.com/johnhkchen/dfcoder/internal/notifications"
	"github.com/johnhkchen/dfcoder/internal/scheduler"
	"github.com/johnhkchen/dfcoder/internal/server"
	"github.com/johnhkchen/dfcoder/internal/supervision"
	"github.com/johnhkchen/dfcoder/internal/telemetry"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workshopd daemon",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		var err error
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer auditStore.Close()
	}

	var store events.EventStore
	if auditStore != nil {
		store = auditStore
	}
	bus := events.NewBus(store)

	sched := scheduler.New()
	for role, capacity := range cfg.Capacity {
		sched.SetCapacity(model.AgentRole(role), capacity)
	}

	sup := supervision.New()
	sup.SetStuckThreshold(cfg.Supervision.StuckThreshold)
	sup.EnableAutoSupervision(cfg.Supervision.AutoSupervision)

	notifyMgr := notifications.NewManager("workshopd", "", nil)
	sup.SetEscalator(notifyMgr)

	reg := prometheus.NewRegistry()
	collector := telemetry.NewCollector(reg)
	sched.SetRetryPolicy(cfg.RetryPolicy(), telemetry.NewTracingObserver())

	srv := server.NewServer(sched, sup, bus, auditStore, cfg.Server.Port)
	srv.WireScheduler(collector.NotifyFunc())
	srv.SetStuckNotifier(notifyMgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("[workshopd] shutting down")
		cancel()
	}()

	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[workshopd] metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		metricsServer.Close()
	}()

	go srv.StartStuckChecker(ctx)
	go srv.StartSupervisionSweeper(ctx)
	go srv.StartAuditCleanup(ctx)
	go observeLoop(ctx, sched, collector)

	if cfg.NATS.Enabled {
		if err := startNATS(ctx, cfg, srv, bus); err != nil {
			log.Printf("[workshopd] nats bridge disabled: %v", err)
		}
	}

	return srv.Start(ctx)
}

func observeLoop(ctx context.Context, sched *scheduler.Scheduler, collector *telemetry.Collector) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collector.Observe(sched.Status())
		}
	}
}

func startNATS(ctx context.Context, cfg *config.Config, srv *server.Server, bus *events.Bus) error {
	url := cfg.NATS.URL
	if cfg.NATS.Embed {
		embedded, err := nats.NewEmbeddedServer(nats.EmbeddedServerConfig{Port: cfg.NATS.Port})
		if err != nil {
			return err
		}
		if err := embedded.Start(); err != nil {
			return err
		}
		go func() {
			<-ctx.Done()
			embedded.Shutdown()
		}()
		url = embedded.URL()
	}

	client, err := nats.NewClient(url)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	bridge := server.NewNATSBridge(srv, client)
	if err := bridge.Start(); err != nil {
		client.Close()
		return err
	}
	go func() {
		<-ctx.Done()
		bridge.Stop()
	}()

	// Mirror everything the daemon publishes on the bus onto NATS subjects.
	ch := bus.Subscribe("nats-bridge", nil)
	go func() {
		for {
			select {
			case <-ctx.Done():
				bus.Unsubscribe("nats-bridge", ch)
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				bridge.PublishEvent(&evt)
			}
		}
	}()
	return nil
}
