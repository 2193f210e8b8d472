package orchestrator

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// fakeClient is an in-process NodeClient stand-in: every call records
// its arguments and returns a pre-programmed response/error, avoiding
// the need for a real grpc.ClientConn in orchestrator unit tests.
type fakeClient struct {
	createErr error
	pullResp  *rpc.PullImageResponse
	pullErr   error
	getInfoResp *rpc.StatusResponse
	getInfoErr  error
	pingResp  *rpc.PingResponse
	pingErr   error

	createCalls []vmmanager.VMConfig
	startCalls  []string
	stopCalls   []string
}

func (f *fakeClient) CreateVM(ctx context.Context, config vmmanager.VMConfig) (*rpc.CreateVMResponse, error) {
	f.createCalls = append(f.createCalls, config)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &rpc.CreateVMResponse{Projection: vmmanager.VMProjection{Config: config}}, nil
}

func (f *fakeClient) StartVM(ctx context.Context, vmID string) error {
	f.startCalls = append(f.startCalls, vmID)
	return nil
}

func (f *fakeClient) StopVM(ctx context.Context, vmID string) error {
	f.stopCalls = append(f.stopCalls, vmID)
	return nil
}

func (f *fakeClient) PauseVM(ctx context.Context, vmID string) error  { return nil }
func (f *fakeClient) ResumeVM(ctx context.Context, vmID string) error { return nil }
func (f *fakeClient) DeleteVM(ctx context.Context, vmID string) error { return nil }

func (f *fakeClient) GetInfo(ctx context.Context, vmID string) (*rpc.StatusResponse, error) {
	if f.getInfoErr != nil {
		return nil, f.getInfoErr
	}
	if f.getInfoResp != nil {
		return f.getInfoResp, nil
	}
	return &rpc.StatusResponse{}, nil
}

func (f *fakeClient) GetCounters(ctx context.Context, vmID string) (*rpc.CountersResponse, error) {
	return &rpc.CountersResponse{Counters: map[string]map[string]int64{}}, nil
}

func (f *fakeClient) PullImage(ctx context.Context, imageRef string) (*rpc.PullImageResponse, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResp != nil {
		return f.pullResp, nil
	}
	return &rpc.PullImageResponse{ImageRef: imageRef, Digest: "sha256:fake", RootPath: "/cache/fake/rootfs"}, nil
}

func (f *fakeClient) Ping(ctx context.Context) (*rpc.PingResponse, error) {
	if f.pingErr != nil {
		return nil, f.pingErr
	}
	if f.pingResp != nil {
		return f.pingResp, nil
	}
	return &rpc.PingResponse{HypervisorVersion: "v1", KernelVersion: "v2"}, nil
}

func (f *fakeClient) AttachConsole(ctx context.Context, vmID string) (*rpc.ConsoleClientStream, error) {
	return nil, errors.New("not implemented in fake")
}

var errNotFoundStatus = status.Error(codes.NotFound, "vm not found")
