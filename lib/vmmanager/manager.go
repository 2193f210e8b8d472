package vmmanager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"github.com/qarax-project/qarax/lib/hypervisor/cloudhypervisor"
	"github.com/qarax-project/qarax/lib/paths"
	"github.com/qarax-project/qarax/lib/tapnet"
	"github.com/qarax-project/qarax/lib/vmm"
	"gvisor.dev/gvisor/pkg/cleanup"
)

// FsDaemonStarter is the subset of the image store's process-map API the
// VM manager needs during create()/delete(). It is declared here, rather
// than importing lib/imagestore directly, to keep the dependency edge
// one-directional (imagestore never needs to know about VmInstance).
type FsDaemonStarter interface {
	StartVirtiofsd(ctx context.Context, vmID string, index int, rootfsPath string) (socketPath string, err error)
	CleanupVM(ctx context.Context, vmID string, index int)
}

// vmInstance is the manager's private bookkeeping for one registered VM.
type vmInstance struct {
	config     VMConfig
	cmd        *exec.Cmd // nil for a VM recovered after a node-agent restart
	ch         *cloudhypervisor.CloudHypervisor
	socketPath string
	status     VMStatus
	tapDevices []string
}

func (vi *vmInstance) projection() VMProjection {
	return VMProjection{Config: vi.config, Status: vi.status}
}

// VmManager is the node agent's table of running VMs, guarded by a single
// mutex per §5 ("one async mutex, short critical sections except for
// pause/resume").
type VmManager struct {
	paths     *paths.Paths
	chBinary  string
	fsDaemons FsDaemonStarter // nil if the node agent was started without image support
	mu        sync.Mutex
	vms       map[string]*vmInstance
	log       *slog.Logger
}

// New creates an empty VmManager. Call RecoverVMs once at startup before
// serving requests.
func New(p *paths.Paths, chBinary string, fsDaemons FsDaemonStarter, log *slog.Logger) *VmManager {
	return &VmManager{
		paths:     p,
		chBinary:  chBinary,
		fsDaemons: fsDaemons,
		vms:       make(map[string]*vmInstance),
		log:       log,
	}
}

// Create implements §4.1's create() operation.
func (m *VmManager) Create(ctx context.Context, config VMConfig) (*VMProjection, error) {
	if _, err := uuid.Parse(config.VMID); err != nil {
		return nil, wrap(KindInvalidConfig, fmt.Errorf("vm id %q does not parse as a uuid: %w", config.VMID, err))
	}

	m.mu.Lock()
	if _, exists := m.vms[config.VMID]; exists {
		m.mu.Unlock()
		return nil, wrap(KindVMAlreadyExists, fmt.Errorf("vm %s: %w", config.VMID, ErrVMAlreadyExists))
	}
	m.mu.Unlock()

	vmID := config.VMID
	log := m.log
	log.Info("creating vm", "vm_id", vmID)

	// Step 1: create deterministic tap devices for every tap-backed network
	// that doesn't already name one, rolling back on any failure.
	var tapDevices []string
	cu := cleanup.Make(func() {
		for _, name := range tapDevices {
			_ = tapnet.Delete(name)
		}
	})
	defer cu.Clean()

	for i := range config.Networks {
		n := &config.Networks[i]
		if n.VhostUser || n.Tap != nil {
			continue
		}
		name := tapnet.Name(vmID, i)
		if err := tapnet.Create(name); err != nil {
			return nil, wrap(KindTapError, fmt.Errorf("create tap %s: %w", name, err))
		}
		tapDevices = append(tapDevices, name)
		n.Tap = &name
	}

	// Step 2: start a shared-fs daemon for every fs entry carrying a
	// bootstrap hint, writing the resulting socket path back into the config.
	if m.fsDaemons != nil {
		for i := range config.FS {
			fs := &config.FS[i]
			if fs.BootstrapPath == nil {
				continue
			}
			socket, err := m.fsDaemons.StartVirtiofsd(ctx, vmID, i, *fs.BootstrapPath)
			if err != nil {
				log.Warn("failed to start virtiofsd", "vm_id", vmID, "fs_index", i, "error", err)
				continue
			}
			fs.Socket = socket
		}
	}

	// Step 3: runtime directory + stale socket.
	if err := os.MkdirAll(m.paths.RuntimeDir(), 0o755); err != nil {
		return nil, wrap(KindSpawnError, fmt.Errorf("create runtime dir: %w", err))
	}
	socketPath := m.paths.VMSocket(vmID)
	_ = os.Remove(socketPath)

	// Step 4: spawn the hypervisor child, log to {vm-id}.log.
	logPath := m.paths.VMLog(vmID)
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, wrap(KindSpawnError, fmt.Errorf("create vm log %s: %w", logPath, err))
	}
	defer logFile.Close()

	cmd := exec.Command(m.chBinary, "--api-socket", socketPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return nil, wrap(KindSpawnError, fmt.Errorf("spawn cloud-hypervisor: %w", err))
	}
	cu.Add(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	log.Info("spawned cloud-hypervisor", "vm_id", vmID, "pid", cmd.Process.Pid)

	// Step 5: poll for the control socket.
	if err := vmm.WaitForSocket(ctx, socketPath); err != nil {
		return nil, wrap(KindSpawnError, fmt.Errorf("wait for control socket: %w", err))
	}

	// Step 6: PUT the converted config.
	ch := cloudhypervisor.New(socketPath)
	if err := ch.Create(ctx, toHypervisorConfig(config)); err != nil {
		return nil, wrap(KindSdkError, fmt.Errorf("vm.create: %w", err))
	}

	// Step 7: persist the config for recovery.
	if err := persistConfig(m.paths.VMConfig(vmID), config); err != nil {
		log.Warn("failed to persist vm config", "vm_id", vmID, "error", err)
	}

	// Step 8: register. Past this point nothing rolls back; the instance
	// owns its own cleanup via delete().
	cu.Release()

	inst := &vmInstance{
		config:     config,
		cmd:        cmd,
		ch:         ch,
		socketPath: socketPath,
		status:     StatusCreated,
		tapDevices: tapDevices,
	}

	m.mu.Lock()
	m.vms[vmID] = inst
	m.mu.Unlock()

	log.Info("vm registered", "vm_id", vmID)
	proj := inst.projection()
	return &proj, nil
}

func (m *VmManager) get(vmID string) (*vmInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.vms[vmID]
	if !ok {
		return nil, wrap(KindVMNotFound, fmt.Errorf("vm %s: %w", vmID, ErrVMNotFound))
	}
	return inst, nil
}
