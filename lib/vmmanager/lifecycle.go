package vmmanager

import (
	"context"
	"fmt"
	"os"

	"github.com/qarax-project/qarax/lib/tapnet"
)

// Start drives the hypervisor's boot API and sets status=running.
func (m *VmManager) Start(ctx context.Context, vmID string) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.Boot(ctx); err != nil {
		return wrap(KindSdkError, fmt.Errorf("boot vm %s: %w", vmID, err))
	}
	m.mu.Lock()
	inst.status = StatusRunning
	m.mu.Unlock()
	return nil
}

// Stop drives the hypervisor's shutdown API and sets status=shutdown.
func (m *VmManager) Stop(ctx context.Context, vmID string) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.Shutdown(ctx); err != nil {
		return wrap(KindSdkError, fmt.Errorf("shutdown vm %s: %w", vmID, err))
	}
	m.mu.Lock()
	inst.status = StatusShutdown
	m.mu.Unlock()
	return nil
}

// Pause drives /vm.pause. The guard is held across both the API call and
// the status mutation, one of the two acceptable strategies §4.1 allows.
func (m *VmManager) Pause(ctx context.Context, vmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.vms[vmID]
	if !ok {
		return wrap(KindVMNotFound, fmt.Errorf("vm %s: %w", vmID, ErrVMNotFound))
	}
	if err := inst.ch.Pause(ctx); err != nil {
		return wrap(KindSdkError, fmt.Errorf("pause vm %s: %w", vmID, err))
	}
	inst.status = StatusPaused
	return nil
}

// Resume drives /vm.resume, holding the guard across both steps like Pause.
func (m *VmManager) Resume(ctx context.Context, vmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.vms[vmID]
	if !ok {
		return wrap(KindVMNotFound, fmt.Errorf("vm %s: %w", vmID, ErrVMNotFound))
	}
	if err := inst.ch.Resume(ctx); err != nil {
		return wrap(KindSdkError, fmt.Errorf("resume vm %s: %w", vmID, err))
	}
	inst.status = StatusRunning
	return nil
}

// Delete removes the VmInstance from the map first, then runs a
// best-effort cleanup sequence. Any individual cleanup failure is logged,
// not propagated, per §4.1.
func (m *VmManager) Delete(ctx context.Context, vmID string) error {
	m.mu.Lock()
	inst, ok := m.vms[vmID]
	if ok {
		delete(m.vms, vmID)
	}
	m.mu.Unlock()
	if !ok {
		return wrap(KindVMNotFound, fmt.Errorf("vm %s: %w", vmID, ErrVMNotFound))
	}

	log := m.log
	if err := inst.ch.Shutdown(ctx); err != nil {
		log.Warn("shutdown during delete failed", "vm_id", vmID, "error", err)
	}
	if inst.cmd != nil && inst.cmd.Process != nil {
		if err := inst.cmd.Process.Kill(); err != nil {
			log.Warn("kill cloud-hypervisor process failed", "vm_id", vmID, "error", err)
		}
		_, _ = inst.cmd.Process.Wait()
	}
	if err := os.Remove(inst.socketPath); err != nil && !os.IsNotExist(err) {
		log.Warn("remove socket failed", "vm_id", vmID, "error", err)
	}
	if err := os.Remove(m.paths.VMConfig(vmID)); err != nil && !os.IsNotExist(err) {
		log.Warn("remove persisted config failed", "vm_id", vmID, "error", err)
	}
	for _, tap := range inst.tapDevices {
		if err := tapnet.Delete(tap); err != nil {
			log.Warn("delete tap device failed", "vm_id", vmID, "tap", tap, "error", err)
		}
	}
	if m.fsDaemons != nil {
		for i := 0; i < 8; i++ {
			m.fsDaemons.CleanupVM(ctx, vmID, i)
		}
	}

	log.Info("vm deleted", "vm_id", vmID)
	return nil
}

// GetInfo issues the hypervisor's info API, maps the reported state onto
// the manager's status enum, updates the cached status, and returns the
// projection.
func (m *VmManager) GetInfo(ctx context.Context, vmID string) (*VMProjection, error) {
	inst, err := m.get(vmID)
	if err != nil {
		return nil, err
	}

	info, err := inst.ch.GetInfo(ctx)
	if err != nil {
		m.mu.Lock()
		inst.status = StatusUnknown
		m.mu.Unlock()
		proj := inst.projection()
		return &proj, nil
	}

	m.mu.Lock()
	inst.status = fromHypervisorState(info.State)
	m.mu.Unlock()

	proj := inst.projection()
	proj.MemoryActualSize = info.MemoryActualSize
	return &proj, nil
}

// GetCounters returns an empty map, rather than an error, when the
// hypervisor is unreachable or doesn't support the endpoint.
func (m *VmManager) GetCounters(ctx context.Context, vmID string) (map[string]map[string]int64, error) {
	inst, err := m.get(vmID)
	if err != nil {
		return nil, err
	}
	counters, err := inst.ch.GetCounters(ctx)
	if err != nil {
		return map[string]map[string]int64{}, nil
	}
	return counters, nil
}

// List returns a snapshot of every registered VM's projection.
func (m *VmManager) List() []VMProjection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VMProjection, 0, len(m.vms))
	for _, inst := range m.vms {
		out = append(out, inst.projection())
	}
	return out
}

// AddNetDevice PUTs a net device config to the running VM.
func (m *VmManager) AddNetDevice(ctx context.Context, vmID string, net NetConfig) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.AddNetDevice(ctx, netToHypervisor(net)); err != nil {
		return wrap(KindSdkError, fmt.Errorf("add net device to vm %s: %w", vmID, err))
	}
	return nil
}

// AddDiskDevice PUTs a disk device config to the running VM.
func (m *VmManager) AddDiskDevice(ctx context.Context, vmID string, disk DiskConfig) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.AddDiskDevice(ctx, diskToHypervisor(disk)); err != nil {
		return wrap(KindSdkError, fmt.Errorf("add disk device to vm %s: %w", vmID, err))
	}
	return nil
}

// AddFsDevice PUTs a virtiofs device config to the running VM.
func (m *VmManager) AddFsDevice(ctx context.Context, vmID string, fs FsConfig) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.AddFsDevice(ctx, fsToHypervisor(fs)); err != nil {
		return wrap(KindSdkError, fmt.Errorf("add fs device to vm %s: %w", vmID, err))
	}
	return nil
}

// ConsolePath returns the configured console device's File path (the
// on-disk console log for ConsoleFile, or the PTY symlink cloud-hypervisor
// creates there for ConsolePty). Used by the RPC layer's attach-console
// to locate what to read from.
func (m *VmManager) ConsolePath(vmID string) (string, error) {
	inst, err := m.get(vmID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst.config.Console == nil || inst.config.Console.File == nil {
		return "", wrap(KindInvalidConfig, fmt.Errorf("vm %s has no console file configured", vmID))
	}
	return *inst.config.Console.File, nil
}

// RemoveDevice removes any net/disk/fs device from the running VM by id.
func (m *VmManager) RemoveDevice(ctx context.Context, vmID, deviceID string) error {
	inst, err := m.get(vmID)
	if err != nil {
		return err
	}
	if err := inst.ch.RemoveDevice(ctx, deviceID); err != nil {
		return wrap(KindSdkError, fmt.Errorf("remove device %s from vm %s: %w", deviceID, vmID, err))
	}
	return nil
}
