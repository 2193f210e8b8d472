package cloudhypervisor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/qarax-project/qarax/lib/vmm"
)

// CloudHypervisor is a typed wrapper over the raw control-socket client,
// one per running VM.
type CloudHypervisor struct {
	client *vmm.Client
}

// New wraps an already-reachable control socket. Callers that are spawning
// a fresh hypervisor process must call vmm.WaitForSocket first.
func New(socketPath string) *CloudHypervisor {
	return &CloudHypervisor{client: vmm.New(socketPath)}
}

// Create PUTs the VM config to /api/v1/vm.create.
func (c *CloudHypervisor) Create(ctx context.Context, config VMConfig) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.create", config, nil); err != nil {
		return fmt.Errorf("vm.create: %w", err)
	}
	return nil
}

// Boot drives the VM from Created to Running.
func (c *CloudHypervisor) Boot(ctx context.Context) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.boot", nil, nil); err != nil {
		return fmt.Errorf("vm.boot: %w", err)
	}
	return nil
}

// Shutdown drives the VM to Shutdown.
func (c *CloudHypervisor) Shutdown(ctx context.Context) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.shutdown", nil, nil); err != nil {
		return fmt.Errorf("vm.shutdown: %w", err)
	}
	return nil
}

// Pause suspends VM execution.
func (c *CloudHypervisor) Pause(ctx context.Context) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.pause", nil, nil); err != nil {
		return fmt.Errorf("vm.pause: %w", err)
	}
	return nil
}

// Resume continues VM execution after a pause.
func (c *CloudHypervisor) Resume(ctx context.Context) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.resume", nil, nil); err != nil {
		return fmt.Errorf("vm.resume: %w", err)
	}
	return nil
}

// GetInfo issues GET /api/v1/vm.info.
func (c *CloudHypervisor) GetInfo(ctx context.Context) (*VMInfo, error) {
	var info VMInfo
	if err := c.client.Do(ctx, http.MethodGet, "/vm.info", nil, &info); err != nil {
		return nil, fmt.Errorf("vm.info: %w", err)
	}
	return &info, nil
}

// GetCounters issues GET /api/v1/vm.counters. Callers treat a failure as
// "counters unavailable" rather than propagating it, per §4.1.
func (c *CloudHypervisor) GetCounters(ctx context.Context) (map[string]map[string]int64, error) {
	var counters map[string]map[string]int64
	if err := c.client.Do(ctx, http.MethodGet, "/vm.counters", nil, &counters); err != nil {
		return nil, fmt.Errorf("vm.counters: %w", err)
	}
	return counters, nil
}

// AddNetDevice hot-adds a network interface.
func (c *CloudHypervisor) AddNetDevice(ctx context.Context, net NetConfig) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.add-net", net, nil); err != nil {
		return fmt.Errorf("vm.add-net: %w", err)
	}
	return nil
}

// AddDiskDevice hot-adds a block device.
func (c *CloudHypervisor) AddDiskDevice(ctx context.Context, disk DiskConfig) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.add-disk", disk, nil); err != nil {
		return fmt.Errorf("vm.add-disk: %w", err)
	}
	return nil
}

// AddFsDevice hot-adds a virtiofs device.
func (c *CloudHypervisor) AddFsDevice(ctx context.Context, fs FsConfig) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.add-fs", fs, nil); err != nil {
		return fmt.Errorf("vm.add-fs: %w", err)
	}
	return nil
}

// RemoveDevice hot-removes any device (net, disk, or fs) by id.
func (c *CloudHypervisor) RemoveDevice(ctx context.Context, id string) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vm.remove-device", DeviceRemoval{ID: id}, nil); err != nil {
		return fmt.Errorf("vm.remove-device: %w", err)
	}
	return nil
}

// ShutdownVMM shuts down the VMM process itself, distinct from Shutdown of
// the guest above. The node agent's delete path calls Shutdown, not this.
func (c *CloudHypervisor) ShutdownVMM(ctx context.Context) error {
	if err := c.client.Do(ctx, http.MethodPut, "/vmm.shutdown", nil, nil); err != nil {
		return fmt.Errorf("vmm.shutdown: %w", err)
	}
	return nil
}
