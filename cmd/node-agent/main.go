// Command node-agent runs the per-host VM manager + image store behind
// the RPC surface described in spec §4.5.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/qarax-project/qarax/lib/config"
	"github.com/qarax-project/qarax/lib/imagestore"
	"github.com/qarax-project/qarax/lib/logger"
	"github.com/qarax-project/qarax/lib/otel"
	"github.com/qarax-project/qarax/lib/paths"
	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "node-agent:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadNodeAgent(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.NewConfig()
	log := logger.NewSubsystemLogger(logger.SubsystemVMManager, logCfg, otel.GetGlobalLogHandler())

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

	p := paths.New(cfg.RuntimeDir, cfg.ImageCacheDir)

	var fsDaemons *imagestore.Store
	if _, err := os.Stat(cfg.VirtiofsdBinary); err == nil {
		fsDaemons = imagestore.New(p, cfg.VirtiofsdBinary, cfg.QaraxInitBinary, logger.NewSubsystemLogger(logger.SubsystemImageStore, logCfg, otel.GetGlobalLogHandler()))
	} else {
		log.Warn("virtiofsd binary not found, shared-fs subsystem disabled", "path", cfg.VirtiofsdBinary)
	}

	vmLog := logger.NewSubsystemLogger(logger.SubsystemVMManager, logCfg, otel.GetGlobalLogHandler())
	vms := vmmanager.New(p, cfg.CloudHypervisorBinary, fsDaemons, vmLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vms.RecoverVMs(ctx)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
	}

	srv := grpc.NewServer()
	rpc.RegisterNodeAgentServer(srv, rpc.NewServer(vms, fsDaemons, cfg.CloudHypervisorBinary, logger.NewSubsystemLogger(logger.SubsystemRPC, logCfg, otel.GetGlobalLogHandler())))

	go func() {
		<-ctx.Done()
		log.Info("shutting down node agent")
		srv.GracefulStop()
	}()

	log.Info("node agent listening", "port", cfg.Port, "runtime_dir", cfg.RuntimeDir)
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
