package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qarax-project/qarax/lib/orchestrator"
	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// fakeNodeClient is a minimal orchestrator.NodeClient stand-in so these
// tests never dial a real grpc connection, mirroring lib/orchestrator's
// own fakeClient.
type fakeNodeClient struct{}

func (fakeNodeClient) CreateVM(ctx context.Context, config vmmanager.VMConfig) (*rpc.CreateVMResponse, error) {
	return &rpc.CreateVMResponse{Projection: vmmanager.VMProjection{Config: config}}, nil
}
func (fakeNodeClient) StartVM(ctx context.Context, vmID string) error  { return nil }
func (fakeNodeClient) StopVM(ctx context.Context, vmID string) error   { return nil }
func (fakeNodeClient) PauseVM(ctx context.Context, vmID string) error  { return nil }
func (fakeNodeClient) ResumeVM(ctx context.Context, vmID string) error { return nil }
func (fakeNodeClient) DeleteVM(ctx context.Context, vmID string) error { return nil }
func (fakeNodeClient) GetInfo(ctx context.Context, vmID string) (*rpc.StatusResponse, error) {
	return &rpc.StatusResponse{}, nil
}
func (fakeNodeClient) GetCounters(ctx context.Context, vmID string) (*rpc.CountersResponse, error) {
	memActual := int64(536870912)
	return &rpc.CountersResponse{
		Counters:         map[string]map[string]int64{"net0": {"rx_bytes": 10}},
		MemoryActualSize: &memActual,
	}, nil
}
func (fakeNodeClient) PullImage(ctx context.Context, imageRef string) (*rpc.PullImageResponse, error) {
	return &rpc.PullImageResponse{ImageRef: imageRef, Digest: "sha256:fake", RootPath: "/cache/fake/rootfs"}, nil
}
func (fakeNodeClient) Ping(ctx context.Context) (*rpc.PingResponse, error) { return &rpc.PingResponse{}, nil }
func (fakeNodeClient) AttachConsole(ctx context.Context, vmID string) (*rpc.ConsoleClientStream, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *store.MemStore) {
	t.Helper()
	s := store.NewMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(ctx context.Context, host store.Host) (orchestrator.NodeClient, error) {
		return fakeNodeClient{}, nil
	}
	orch := orchestrator.New(s, factory, orchestrator.Config{DefaultKernelPath: "/boot/vmlinux"}, log)
	return NewServer(orch, s, log), s
}

func upHost(t *testing.T, s *store.MemStore) store.Host {
	t.Helper()
	h, err := s.CreateHost(context.Background(), store.Host{Address: "10.0.0.1", RPCPort: 50051, Status: store.HostUp})
	require.NoError(t, err)
	return h
}

func TestCreateVMSyncReturns201WithID(t *testing.T) {
	srv, s := newTestServer(t)
	upHost(t, s)
	router := srv.Router(Config{})

	body := `{"name":"web-1","boot_vcpus":1,"max_vcpus":1,"memory_size":536870912}`
	req := httptest.NewRequest(http.MethodPost, "/vms", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createVMSyncResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
}

func TestCreateVMAsyncReturns202(t *testing.T) {
	srv, s := newTestServer(t)
	upHost(t, s)
	router := srv.Router(Config{})

	body := `{"name":"web-1","image_ref":"docker.io/library/busybox:latest"}`
	req := httptest.NewRequest(http.MethodPost, "/vms", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp createVMAsyncResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.VMID)
	require.NotEmpty(t, resp.JobID)
}

func TestCreateVMNoHostsReturns422(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodPost, "/vms", bytes.NewBufferString(`{"name":"web-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetVMMissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodGet, "/vms/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLifecycleRejectsPauseToStartWith422(t *testing.T) {
	srv, s := newTestServer(t)
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(context.Background(), store.VM{Name: "web-1", Status: store.VMPaused, HostID: &hostID})
	require.NoError(t, err)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodPost, "/vms/"+vm.ID+"/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Contains(t, body.Message, "resume")
}

func TestDeleteVMReturns204(t *testing.T) {
	srv, s := newTestServer(t)
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(context.Background(), store.VM{Name: "web-1", Status: store.VMRunning, HostID: &hostID})
	require.NoError(t, err)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodDelete, "/vms/"+vm.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetMetricsReturnsCounters(t *testing.T) {
	srv, s := newTestServer(t)
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(context.Background(), store.VM{Name: "web-1", Status: store.VMRunning, HostID: &hostID})
	require.NoError(t, err)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodGet, "/vms/"+vm.ID+"/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp metricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "running", resp.Status)
	require.Equal(t, int64(10), resp.Counters["net0"]["rx_bytes"])
	require.NotNil(t, resp.MemoryActualSize)
	require.Equal(t, int64(536870912), *resp.MemoryActualSize)
}

func TestCreateHostReturns201(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodPost, "/hosts", bytes.NewBufferString(`{"address":"10.0.0.5","rpc_port":50051}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp createHostResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
}

func TestPatchHostUpdatesStatus(t *testing.T) {
	srv, s := newTestServer(t)
	host := upHost(t, s)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodPatch, "/hosts/"+host.ID, bytes.NewBufferString(`{"status":"down"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Host
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Equal(t, store.HostDown, got.Status)
}

func TestGetJobMissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsForVM(t *testing.T) {
	srv, s := newTestServer(t)
	host := upHost(t, s)
	hostID := host.ID
	vm, err := s.CreateVM(context.Background(), store.VM{Name: "web-1", Status: store.VMPending, HostID: &hostID})
	require.NoError(t, err)
	_, err = s.CreateJob(context.Background(), store.Job{Type: store.JobImagePull, VMID: vm.ID, Status: store.JobRunning})
	require.NoError(t, err)
	router := srv.Router(Config{})

	req := httptest.NewRequest(http.MethodGet, "/vms/"+vm.ID+"/jobs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []store.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
}
