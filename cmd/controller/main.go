// Command controller runs the HTTP API and VM orchestrator: host
// selection, create/lifecycle routing to node agents, and the periodic
// VM-status/host-liveness reconciler.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qarax-project/qarax/lib/config"
	"github.com/qarax-project/qarax/lib/httpapi"
	"github.com/qarax-project/qarax/lib/logger"
	"github.com/qarax-project/qarax/lib/orchestrator"
	"github.com/qarax-project/qarax/lib/otel"
	"github.com/qarax-project/qarax/lib/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "controller:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadController(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.NewConfig()
	log := logger.NewSubsystemLogger(logger.SubsystemOrchestrator, logCfg, otel.GetGlobalLogHandler())

	otelProvider, otelShutdown, err := otel.Init(context.Background(), otel.Config{
		Enabled:           cfg.OTel.Enabled,
		Endpoint:          cfg.OTel.Endpoint,
		ServiceName:       cfg.OTel.ServiceName,
		ServiceInstanceID: cfg.OTel.ServiceInstanceID,
		Insecure:          cfg.OTel.Insecure,
	})
	if err != nil {
		log.Warn("failed to initialize OpenTelemetry, continuing without it", "error", err)
	}
	if otelProvider != nil && otelProvider.LogHandler != nil {
		otel.SetGlobalLogHandler(otelProvider.LogHandler)
	}
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Warn("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	// The relational store (cfg.DBDSN) is an opaque external
	// collaborator per spec; this binary runs against the in-memory
	// stand-in until a real driver is wired to that DSN.
	if cfg.DBDSN != "" {
		log.Warn("db-dsn configured but the relational store is out of scope here; using the in-memory store", "dsn", cfg.DBDSN)
	}
	st := store.NewMemStore()

	orch := orchestrator.New(st, orchestrator.DialNodeClient, orchestrator.Config{
		DefaultKernelPath: envOr("QARAX_DEFAULT_KERNEL", "/var/lib/qarax/images/default/vmlinux"),
		DefaultCmdline:    envOr("QARAX_DEFAULT_CMDLINE", "console=ttyS0 reboot=k panic=1"),
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reconcileInterval := time.Duration(cfg.ReconcileIntervalMS) * time.Millisecond
	go orch.RunReconciler(ctx, reconcileInterval)

	srv := httpapi.NewServer(orch, st, logger.NewSubsystemLogger(logger.SubsystemHTTPAPI, logCfg, otel.GetGlobalLogHandler()))
	router := srv.Router(httpapi.Config{OtelServiceName: cfg.OTel.ServiceName})

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down controller")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("controller listening", "addr", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
