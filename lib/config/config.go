// Package config loads node-agent and controller configuration from flags
// and a .env file, following the teacher's godotenv-based config loading.
package config

import (
	"flag"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/joho/godotenv"
)

func init() {
	// Best effort: a missing .env is normal outside of development.
	_ = godotenv.Load()
}

// BuildVersion extracts a short version string from Go's embedded build info.
func BuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if len(revision) > 8 {
		revision = revision[:8]
	}
	if dirty {
		revision += "-dirty"
	}
	return revision
}

func hostnameOr(fallback string) string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return fallback
}

// OTelConfig is shared between both binaries.
type OTelConfig struct {
	Enabled           bool
	Endpoint          string
	ServiceName       string
	ServiceInstanceID string
	Insecure          bool
}

func (o *OTelConfig) register(fs *flag.FlagSet, defaultServiceName string) {
	fs.BoolVar(&o.Enabled, "otel-enabled", envBool("OTEL_ENABLED", false), "enable OpenTelemetry export")
	fs.StringVar(&o.Endpoint, "otel-endpoint", envOr("OTEL_ENDPOINT", "localhost:4317"), "OTLP gRPC endpoint")
	fs.StringVar(&o.ServiceName, "otel-service-name", envOr("OTEL_SERVICE_NAME", defaultServiceName), "service name for telemetry")
	fs.StringVar(&o.ServiceInstanceID, "otel-service-instance-id", envOr("OTEL_SERVICE_INSTANCE_ID", hostnameOr("unknown")), "service instance id")
	fs.BoolVar(&o.Insecure, "otel-insecure", envBool("OTEL_INSECURE", true), "disable TLS for the OTLP exporter")
}

// NodeAgent holds node-agent configuration, per §6 flags.
type NodeAgent struct {
	Port                  string
	RuntimeDir            string
	CloudHypervisorBinary string
	VirtiofsdBinary       string
	QaraxInitBinary       string
	ImageCacheDir         string
	LogLevel              string
	OTel                  OTelConfig
}

// LoadNodeAgent parses node-agent flags, applying env-var defaults first.
func LoadNodeAgent(args []string) (*NodeAgent, error) {
	fs := flag.NewFlagSet("node-agent", flag.ContinueOnError)
	c := &NodeAgent{}
	fs.StringVar(&c.Port, "port", envOr("QARAX_PORT", "50051"), "RPC listen port")
	fs.StringVar(&c.RuntimeDir, "runtime-dir", envOr("QARAX_RUNTIME_DIR", "/var/lib/qarax/vms"), "per-VM runtime state directory")
	fs.StringVar(&c.CloudHypervisorBinary, "cloud-hypervisor-binary", envOr("QARAX_CH_BINARY", "/usr/local/bin/cloud-hypervisor"), "path to the cloud-hypervisor binary")
	fs.StringVar(&c.VirtiofsdBinary, "virtiofsd-binary", envOr("QARAX_VIRTIOFSD_BINARY", "/usr/local/bin/virtiofsd"), "path to the virtiofsd binary")
	fs.StringVar(&c.QaraxInitBinary, "qarax-init-binary", envOr("QARAX_INIT_BINARY", "/usr/local/bin/qarax-init"), "path to the static guest init binary")
	fs.StringVar(&c.ImageCacheDir, "image-cache-dir", envOr("QARAX_IMAGE_CACHE_DIR", "/var/lib/qarax/images"), "OCI image cache directory")
	fs.StringVar(&c.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "default log level")
	c.OTel.register(fs, "qarax-node-agent")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

// Controller holds controller configuration.
type Controller struct {
	HTTPAddr            string
	DBDSN               string
	ReconcileIntervalMS int
	LogLevel            string
	OTel                OTelConfig
}

// LoadController parses controller flags, applying env-var defaults first.
func LoadController(args []string) (*Controller, error) {
	fs := flag.NewFlagSet("controller", flag.ContinueOnError)
	c := &Controller{}
	fs.StringVar(&c.HTTPAddr, "http-addr", envOr("QARAX_HTTP_ADDR", ":8080"), "HTTP API listen address")
	fs.StringVar(&c.DBDSN, "db-dsn", envOr("QARAX_DB_DSN", ""), "relational store DSN (opaque)")
	fs.IntVar(&c.ReconcileIntervalMS, "reconcile-interval-ms", envInt("QARAX_RECONCILE_INTERVAL_MS", 30000), "status reconciler tick interval in milliseconds")
	fs.StringVar(&c.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "default log level")
	c.OTel.register(fs, "qarax-controller")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
