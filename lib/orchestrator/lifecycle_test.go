package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/store"
)

func TestStartVMFailsWithoutAssignedHost(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMCreated})
	require.NoError(t, err)

	err = o.StartVM(ctx, vm.ID)
	require.ErrorIs(t, err, ErrHostUnassigned)
}

func TestStartVMRejectsPauseToStart(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMPaused, HostID: &hostID})
	require.NoError(t, err)

	err = o.StartVM(ctx, vm.ID)
	require.ErrorIs(t, err, ErrUsePause)
	require.Empty(t, client.startCalls)
}

func TestStartVMRejectsPendingToStart(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMPending, HostID: &hostID})
	require.NoError(t, err)

	err = o.StartVM(ctx, vm.ID)
	require.ErrorIs(t, err, ErrJobNotFinished)
}

func TestStartVMUpdatesStatusOnSuccess(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMCreated, HostID: &hostID})
	require.NoError(t, err)

	require.NoError(t, o.StartVM(ctx, vm.ID))
	require.Equal(t, []string{vm.ID}, client.startCalls)

	got, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMRunning, got.Status)
}

func TestDeleteVMRemovesFromStore(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(ctx, store.VM{Name: "web-1", Status: store.VMRunning, HostID: &hostID})
	require.NoError(t, err)

	require.NoError(t, o.DeleteVM(ctx, vm.ID))
	_, err = s.GetVM(ctx, vm.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
