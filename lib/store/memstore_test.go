package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateVMAssignsIDAndDefaultStatus(t *testing.T) {
	s := NewMemStore()
	vm, err := s.CreateVM(context.Background(), VM{Name: "web-1"})
	require.NoError(t, err)
	require.NotEmpty(t, vm.ID)
	require.Equal(t, VMPending, vm.Status)
}

func TestGetVMMissingReturnsNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetVM(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListVMsNotStatusFiltersRunning(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	running, _ := s.CreateVM(ctx, VM{Name: "a", Status: VMRunning})
	_, _ = s.CreateVM(ctx, VM{Name: "b", Status: VMShutdown})

	out, err := s.ListVMsNotStatus(ctx, VMShutdown)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, running.ID, out[0].ID)
}

func TestWithTxRollsBackVMAndNicsOnError(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	boom := errors.New("rpc failed")
	var vmID string
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		vm, err := tx.CreateVM(ctx, VM{Name: "web-1"})
		require.NoError(t, err)
		vmID = vm.ID
		_, err = tx.CreateNetworkInterface(ctx, NetworkInterface{VMID: vm.ID, DeviceID: "eth0", Type: NetDeviceTap})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	vms, _ := s.ListVMs(ctx)
	require.Empty(t, vms)

	nics, _ := s.ListNetworkInterfaces(ctx, vmID)
	require.Empty(t, nics)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var vmID string
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		vm, err := tx.CreateVM(ctx, VM{Name: "web-1"})
		require.NoError(t, err)
		vmID = vm.ID
		_, err = tx.CreateNetworkInterface(ctx, NetworkInterface{VMID: vm.ID, DeviceID: "eth0", Type: NetDeviceTap})
		return err
	})
	require.NoError(t, err)

	vm, err := s.GetVM(ctx, vmID)
	require.NoError(t, err)
	require.Equal(t, "web-1", vm.Name)

	nics, err := s.ListNetworkInterfaces(ctx, vmID)
	require.NoError(t, err)
	require.Len(t, nics, 1)
}

func TestJobLifecycleTransitions(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	job, err := s.CreateJob(ctx, Job{Type: JobImagePull, VMID: "vm-1"})
	require.NoError(t, err)
	require.Equal(t, JobPending, job.Status)

	require.NoError(t, s.UpdateJobProgress(ctx, job.ID, 40))
	got, _ := s.GetJob(ctx, job.ID)
	require.Equal(t, JobRunning, got.Status)
	require.Equal(t, 40, got.Progress)

	require.NoError(t, s.CompleteJob(ctx, job.ID, "ok"))
	got, _ = s.GetJob(ctx, job.ID)
	require.Equal(t, JobCompleted, got.Status)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, "ok", *got.Result)
}

func TestAssignVMHostIsSticky(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	vm, _ := s.CreateVM(ctx, VM{Name: "web-1"})

	require.NoError(t, s.AssignVMHost(ctx, vm.ID, "host-1"))
	got, _ := s.GetVM(ctx, vm.ID)
	require.Equal(t, "host-1", *got.HostID)
}
