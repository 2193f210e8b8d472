package vmmanager

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/qarax-project/qarax/lib/hypervisor/cloudhypervisor"
	"github.com/qarax-project/qarax/lib/paths"
	"github.com/stretchr/testify/require"
)

// fakeHypervisor serves a minimal subset of the CH control API for tests
// that exercise lifecycle operations without spawning a real hypervisor.
func fakeHypervisor(t *testing.T, sockPath string, state cloudhypervisor.VMState) *http.Server {
	t.Helper()
	os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/vm.info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cloudhypervisor.VMInfo{State: state})
	})
	mux.HandleFunc("/api/v1/vm.boot", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) })
	mux.HandleFunc("/api/v1/vm.shutdown", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) })
	mux.HandleFunc("/api/v1/vm.pause", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) })
	mux.HandleFunc("/api/v1/vm.resume", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) })

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func newTestManager(t *testing.T) (*VmManager, string) {
	t.Helper()
	dir := t.TempDir()
	p := paths.New(dir, filepath.Join(dir, "images"))
	m := New(p, "/bin/true", nil, slog.New(slog.DiscardHandler))
	return m, dir
}

func registerFakeVM(t *testing.T, m *VmManager, vmID string, state cloudhypervisor.VMState) {
	t.Helper()
	sock := m.paths.VMSocket(vmID)
	fakeHypervisor(t, sock, state)
	m.mu.Lock()
	m.vms[vmID] = &vmInstance{
		config:     VMConfig{VMID: vmID},
		ch:         cloudhypervisor.New(sock),
		socketPath: sock,
		status:     StatusCreated,
	}
	m.mu.Unlock()
}

func TestCreateRejectsNonUUID(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Create(context.Background(), VMConfig{VMID: "not-a-uuid"})
	require.Error(t, err)
	var mErr *Error
	require.ErrorAs(t, err, &mErr)
	require.Equal(t, KindInvalidConfig, mErr.Kind)
}

func TestLifecycleTransitions(t *testing.T) {
	m, _ := newTestManager(t)
	vmID := "11111111-2222-3333-4444-555555555555"
	registerFakeVM(t, m, vmID, cloudhypervisor.VMStateRunning)

	require.NoError(t, m.Start(context.Background(), vmID))
	proj, err := m.GetInfo(context.Background(), vmID)
	require.NoError(t, err)
	require.Equal(t, StatusRunning, proj.Status)

	require.NoError(t, m.Pause(context.Background(), vmID))
	m.mu.Lock()
	require.Equal(t, StatusPaused, m.vms[vmID].status)
	m.mu.Unlock()

	require.NoError(t, m.Resume(context.Background(), vmID))
	m.mu.Lock()
	require.Equal(t, StatusRunning, m.vms[vmID].status)
	m.mu.Unlock()
}

func TestGetInfoUnreachableMapsToUnknown(t *testing.T) {
	m, _ := newTestManager(t)
	vmID := "11111111-2222-3333-4444-555555555555"
	sock := m.paths.VMSocket(vmID)
	m.mu.Lock()
	m.vms[vmID] = &vmInstance{config: VMConfig{VMID: vmID}, ch: cloudhypervisor.New(sock), socketPath: sock, status: StatusRunning}
	m.mu.Unlock()

	proj, err := m.GetInfo(context.Background(), vmID)
	require.NoError(t, err)
	require.Equal(t, StatusUnknown, proj.Status)
}

func TestOperationsOnMissingVMReturnNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.GetInfo(context.Background(), "missing")
	var mErr *Error
	require.ErrorAs(t, err, &mErr)
	require.Equal(t, KindVMNotFound, mErr.Kind)
}

func TestDeleteRemovesFromMapEvenOnCleanupFailure(t *testing.T) {
	m, _ := newTestManager(t)
	vmID := "11111111-2222-3333-4444-555555555555"
	registerFakeVM(t, m, vmID, cloudhypervisor.VMStateShutdown)

	require.NoError(t, m.Delete(context.Background(), vmID))

	m.mu.Lock()
	_, exists := m.vms[vmID]
	m.mu.Unlock()
	require.False(t, exists)
}

func TestListReturnsSnapshot(t *testing.T) {
	m, _ := newTestManager(t)
	registerFakeVM(t, m, "11111111-2222-3333-4444-555555555555", cloudhypervisor.VMStateCreated)
	registerFakeVM(t, m, "22222222-2222-3333-4444-555555555555", cloudhypervisor.VMStateCreated)

	list := m.List()
	require.Len(t, list, 2)
}
