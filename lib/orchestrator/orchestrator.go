// Package orchestrator is the controller's VM orchestrator: host
// selection, synchronous and asynchronous create, lifecycle routing to
// the assigned node agent, and the periodic status/host reconciler.
package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// NodeClient is the subset of lib/rpc.Client the orchestrator drives,
// declared here (not in lib/rpc) so tests can substitute a fake without
// standing up a real grpc.ClientConn. *rpc.Client satisfies this
// structurally.
type NodeClient interface {
	CreateVM(ctx context.Context, config vmmanager.VMConfig) (*rpc.CreateVMResponse, error)
	StartVM(ctx context.Context, vmID string) error
	StopVM(ctx context.Context, vmID string) error
	PauseVM(ctx context.Context, vmID string) error
	ResumeVM(ctx context.Context, vmID string) error
	DeleteVM(ctx context.Context, vmID string) error
	GetInfo(ctx context.Context, vmID string) (*rpc.StatusResponse, error)
	GetCounters(ctx context.Context, vmID string) (*rpc.CountersResponse, error)
	PullImage(ctx context.Context, imageRef string) (*rpc.PullImageResponse, error)
	Ping(ctx context.Context) (*rpc.PingResponse, error)
	AttachConsole(ctx context.Context, vmID string) (*rpc.ConsoleClientStream, error)
}

// ClientFactory dials (or returns a cached connection to) the node agent
// for a host. Production wiring uses DialNodeClient; tests inject a fake.
type ClientFactory func(ctx context.Context, host store.Host) (NodeClient, error)

// Orchestrator is the controller's orchestration entry point.
type Orchestrator struct {
	store   store.Store
	clients ClientFactory
	log     *slog.Logger

	defaultKernelPath string
	defaultCmdline    string

	mu     sync.Mutex
	cached map[string]NodeClient
}

// Config carries the orchestrator's boot defaults, used when a create
// request names no boot source.
type Config struct {
	DefaultKernelPath string
	DefaultCmdline    string
}

// New builds an Orchestrator. clients is typically DialNodeClient;
// tests pass a fake.
func New(s store.Store, clients ClientFactory, cfg Config, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:             s,
		clients:           clients,
		log:               log,
		defaultKernelPath: cfg.DefaultKernelPath,
		defaultCmdline:    cfg.DefaultCmdline,
		cached:            make(map[string]NodeClient),
	}
}

// clientFor returns a cached NodeClient for host, dialing on first use.
func (o *Orchestrator) clientFor(ctx context.Context, host store.Host) (NodeClient, error) {
	o.mu.Lock()
	if c, ok := o.cached[host.ID]; ok {
		o.mu.Unlock()
		return c, nil
	}
	o.mu.Unlock()

	c, err := o.clients(ctx, host)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cached[host.ID] = c
	o.mu.Unlock()
	return c, nil
}

// DialNodeClient is the production ClientFactory: a real grpc
// connection to the host's RPC address.
func DialNodeClient(ctx context.Context, host store.Host) (NodeClient, error) {
	addr := host.Address
	if host.RPCPort != 0 {
		addr = addr + ":" + strconv.Itoa(host.RPCPort)
	}
	return rpc.Dial(ctx, addr)
}
