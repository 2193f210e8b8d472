package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

func TestReconcileVMStatusUpdatesOnDivergence(t *testing.T) {
	client := &fakeClient{getInfoResp: &rpc.StatusResponse{Projection: vmmanager.VMProjection{Status: vmmanager.StatusPaused}}}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMRunning, HostID: &hostID})
	require.NoError(t, err)

	o.reconcileOnce(ctx)

	got, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMPaused, got.Status)
}

func TestReconcileVMStatusSkipsShutdownAndUnknown(t *testing.T) {
	client := &fakeClient{getInfoResp: &rpc.StatusResponse{Projection: vmmanager.VMProjection{Status: vmmanager.StatusRunning}}}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMShutdown, HostID: &hostID})
	require.NoError(t, err)

	o.reconcileOnce(ctx)

	got, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMShutdown, got.Status)
}

func TestReconcileVMStatusSetsUnknownOnNotFound(t *testing.T) {
	client := &fakeClient{getInfoErr: errNotFoundStatus}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMRunning, HostID: &hostID})
	require.NoError(t, err)

	o.reconcileOnce(ctx)

	got, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMUnknown, got.Status)
}

func TestProbeHostMarksDownOnPingFailure(t *testing.T) {
	client := &fakeClient{pingErr: errBoom}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)

	o.probeHosts(ctx)

	got, err := s.GetHost(ctx, host.ID)
	require.NoError(t, err)
	require.Equal(t, store.HostDown, got.Status)
}

func TestProbeHostRefreshesVersionsOnSuccess(t *testing.T) {
	client := &fakeClient{pingResp: &rpc.PingResponse{HypervisorVersion: "ch-45", KernelVersion: "6.9"}}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)

	o.probeHosts(ctx)

	got, err := s.GetHost(ctx, host.ID)
	require.NoError(t, err)
	require.Equal(t, "ch-45", got.HypervisorVersion)
	require.Equal(t, "6.9", got.KernelVersion)
}
