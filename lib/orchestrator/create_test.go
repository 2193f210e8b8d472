package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/store"
)

var errBoom = errors.New("boom")

func newTestOrchestrator(t *testing.T, client *fakeClient) (*Orchestrator, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(ctx context.Context, host store.Host) (NodeClient, error) { return client, nil }
	o := New(s, factory, Config{DefaultKernelPath: "/boot/vmlinux", DefaultCmdline: "console=ttyS0"}, log)
	return o, s
}

func upHost(t *testing.T, s *store.MemStore) store.Host {
	t.Helper()
	h, err := s.CreateHost(context.Background(), store.Host{Address: "10.0.0.1", RPCPort: 50051, Status: store.HostUp})
	require.NoError(t, err)
	return h
}

func TestPickHostFailsWithNoHosts(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{})
	_, err := o.PickHost(context.Background())
	require.ErrorIs(t, err, ErrNoHostsAvailable)
}

func TestPickHostOnlyReturnsUpHosts(t *testing.T) {
	o, s := newTestOrchestrator(t, &fakeClient{})
	ctx := context.Background()
	_, _ = s.CreateHost(ctx, store.Host{Address: "10.0.0.2", Status: store.HostDown})
	up := upHost(t, s)

	got, err := o.PickHost(ctx)
	require.NoError(t, err)
	require.Equal(t, up.ID, got.ID)
}

func TestCreateVMSyncInsertsVMAndCallsNode(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	upHost(t, s)

	vm, job, err := o.CreateVM(ctx, CreateVMRequest{Name: "web-1", BootVCPUs: 1, MaxVCPUs: 1, MemorySizeMiB: 512})
	require.NoError(t, err)
	require.Nil(t, job)
	require.Equal(t, store.VMCreated, vm.Status)
	require.NotNil(t, vm.HostID)
	require.Len(t, client.createCalls, 1)

	persisted, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, "web-1", persisted.Name)
}

func TestCreateVMSyncForwardsNetworksAndPrefault(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	upHost(t, s)

	ip := "10.1.0.5"
	vm, _, err := o.CreateVM(ctx, CreateVMRequest{
		Name:           "web-1",
		MemorySizeMiB:  512,
		MemoryPrefault: true,
		Networks: []store.NetworkInterface{
			{DeviceID: "eth0", Type: store.NetDeviceTap, IP: &ip},
		},
	})
	require.NoError(t, err)
	require.Len(t, client.createCalls, 1)

	config := client.createCalls[0]
	require.True(t, config.Memory.Prefault)
	require.False(t, config.Memory.Mergeable)
	require.Len(t, config.Networks, 1)
	require.Equal(t, "eth0", config.Networks[0].ID)
	require.Equal(t, &ip, config.Networks[0].IP)
	require.Nil(t, config.Networks[0].Tap)

	nics, err := s.ListNetworkInterfaces(ctx, vm.ID)
	require.NoError(t, err)
	require.Len(t, nics, 1)
}

func TestCreateVMSyncRollsBackOnNodeFailure(t *testing.T) {
	boom := &fakeClient{createErr: errBoom}
	o, s := newTestOrchestrator(t, boom)
	ctx := context.Background()
	upHost(t, s)

	_, _, err := o.CreateVM(ctx, CreateVMRequest{Name: "web-1"})
	require.Error(t, err)

	vms, _ := s.ListVMs(ctx)
	require.Empty(t, vms)
}

func TestCreateVMAsyncRunsPullThenCreate(t *testing.T) {
	client := &fakeClient{}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	upHost(t, s)

	ref := "docker.io/library/alpine:latest"
	vm, job, err := o.CreateVM(ctx, CreateVMRequest{Name: "web-1", ImageRef: &ref})
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, store.VMPending, vm.Status)

	require.Eventually(t, func() bool {
		got, err := s.GetJob(ctx, job.ID)
		return err == nil && got.Status == store.JobCompleted
	}, time.Second, 10*time.Millisecond)

	persisted, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMCreated, persisted.Status)

	fsRows, err := s.ListFilesystems(ctx, vm.ID)
	require.NoError(t, err)
	require.Len(t, fsRows, 1)
	require.Equal(t, "rootfs", fsRows[0].Tag)
}

func TestCreateVMAsyncMarksFailedOnPullError(t *testing.T) {
	client := &fakeClient{pullErr: errBoom}
	o, s := newTestOrchestrator(t, client)
	ctx := context.Background()
	upHost(t, s)

	ref := "docker.io/library/alpine:latest"
	vm, job, err := o.CreateVM(ctx, CreateVMRequest{Name: "web-1", ImageRef: &ref})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := s.GetJob(ctx, job.ID)
		return err == nil && got.Status == store.JobFailed
	}, time.Second, 10*time.Millisecond)

	persisted, err := s.GetVM(ctx, vm.ID)
	require.NoError(t, err)
	require.Equal(t, store.VMUnknown, persisted.Status)
}
