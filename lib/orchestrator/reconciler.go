package orchestrator

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// ReconcileInterval is the cadence of the status/host reconciler, per
// §4.3's "30 s cadence."
const ReconcileInterval = 30 * time.Second

// RunReconciler blocks, running one reconcile pass every interval, until
// ctx is cancelled. Intended to be launched in its own goroutine from
// cmd/controller's main.
func (o *Orchestrator) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.reconcileOnce(ctx)
		}
	}
}

func (o *Orchestrator) reconcileOnce(ctx context.Context) {
	o.reconcileVMStatus(ctx)
	o.probeHosts(ctx)
}

// reconcileVMStatus lists every VM not already shutdown/unknown, groups
// by host, and reconciles each against the node's live get-info.
func (o *Orchestrator) reconcileVMStatus(ctx context.Context) {
	vms, err := o.store.ListVMs(ctx)
	if err != nil {
		o.log.Warn("reconciler: list vms failed", "error", err)
		return
	}

	byHost := make(map[string][]store.VM)
	for _, vm := range vms {
		if vm.Status == store.VMShutdown || vm.Status == store.VMUnknown {
			continue
		}
		if vm.HostID == nil {
			continue
		}
		byHost[*vm.HostID] = append(byHost[*vm.HostID], vm)
	}

	for hostID, hostVMs := range byHost {
		host, err := o.store.GetHost(ctx, hostID)
		if err != nil {
			o.log.Warn("reconciler: get host failed", "host_id", hostID, "error", err)
			continue
		}
		client, err := o.clientFor(ctx, host)
		if err != nil {
			o.log.Warn("reconciler: dial host failed, skipping", "host_id", hostID, "error", err)
			continue
		}
		for _, vm := range hostVMs {
			o.reconcileVM(ctx, client, vm)
		}
	}
}

func (o *Orchestrator) reconcileVM(ctx context.Context, client NodeClient, vm store.VM) {
	info, err := client.GetInfo(ctx, vm.ID)
	if err != nil {
		if isNotFound(err) {
			_ = o.store.UpdateVMStatus(ctx, vm.ID, store.VMUnknown)
			return
		}
		o.log.Info("reconciler: host unreachable, skipping", "vm_id", vm.ID, "error", err)
		return
	}

	live := fromAgentStatus(info.Projection.Status)
	if live != vm.Status {
		if err := o.store.UpdateVMStatus(ctx, vm.ID, live); err != nil {
			o.log.Warn("reconciler: update status failed", "vm_id", vm.ID, "error", err)
		}
	}
}

// probeHosts dials every host with status=up and calls Ping; a
// successful response refreshes the cached version fields, a failure
// marks the host down. SPEC_FULL addition, run as the reconciler's
// second phase.
func (o *Orchestrator) probeHosts(ctx context.Context) {
	hosts, err := o.store.ListHosts(ctx)
	if err != nil {
		o.log.Warn("reconciler: list hosts failed", "error", err)
		return
	}
	for _, host := range hosts {
		if host.Status != store.HostUp {
			continue
		}
		o.probeHost(ctx, host)
	}
}

func (o *Orchestrator) probeHost(ctx context.Context, host store.Host) {
	client, err := o.clientFor(ctx, host)
	if err != nil {
		o.log.Info("reconciler: host ping dial failed, marking down", "host_id", host.ID, "error", err)
		_ = o.store.UpdateHostStatus(ctx, host.ID, store.HostDown)
		return
	}
	resp, err := client.Ping(ctx)
	if err != nil {
		o.log.Info("reconciler: host ping failed, marking down", "host_id", host.ID, "error", err)
		_ = o.store.UpdateHostStatus(ctx, host.ID, store.HostDown)
		return
	}
	_ = o.store.UpdateHostProbe(ctx, host.ID, resp.HypervisorVersion, resp.KernelVersion)
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

// fromAgentStatus maps the node agent's VMStatus onto the controller's
// persisted VMStatus; the two enums share the same member names.
func fromAgentStatus(s vmmanager.VMStatus) store.VMStatus {
	switch s {
	case vmmanager.StatusCreated:
		return store.VMCreated
	case vmmanager.StatusRunning:
		return store.VMRunning
	case vmmanager.StatusPaused:
		return store.VMPaused
	case vmmanager.StatusShutdown:
		return store.VMShutdown
	default:
		return store.VMUnknown
	}
}
