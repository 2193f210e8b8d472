package rpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/qarax-project/qarax/lib/imagestore"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// serverImpl adapts a VmManager and an imagestore.Store to NodeAgentServer.
// Every method is a direct translation: decode the request, call the
// manager, map the error through toStatus, encode the response.
type serverImpl struct {
	vms      *vmmanager.VmManager
	images   *imagestore.Store
	chBinary string
	log      *slog.Logger
}

// NewServer builds the node agent's RPC implementation.
func NewServer(vms *vmmanager.VmManager, images *imagestore.Store, chBinary string, log *slog.Logger) NodeAgentServer {
	return &serverImpl{vms: vms, images: images, chBinary: chBinary, log: log}
}

func (s *serverImpl) CreateVM(ctx context.Context, req *CreateVMRequest) (*CreateVMResponse, error) {
	proj, err := s.vms.Create(ctx, req.Config)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateVMResponse{Projection: *proj}, nil
}

func (s *serverImpl) StartVM(ctx context.Context, req *VMIDRequest) (*EmptyResponse, error) {
	if err := s.vms.Start(ctx, req.VMID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) StopVM(ctx context.Context, req *VMIDRequest) (*EmptyResponse, error) {
	if err := s.vms.Stop(ctx, req.VMID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) PauseVM(ctx context.Context, req *VMIDRequest) (*EmptyResponse, error) {
	if err := s.vms.Pause(ctx, req.VMID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) ResumeVM(ctx context.Context, req *VMIDRequest) (*EmptyResponse, error) {
	if err := s.vms.Resume(ctx, req.VMID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) DeleteVM(ctx context.Context, req *VMIDRequest) (*EmptyResponse, error) {
	if err := s.vms.Delete(ctx, req.VMID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) GetInfo(ctx context.Context, req *VMIDRequest) (*StatusResponse, error) {
	proj, err := s.vms.GetInfo(ctx, req.VMID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &StatusResponse{Projection: *proj}, nil
}

func (s *serverImpl) GetCounters(ctx context.Context, req *VMIDRequest) (*CountersResponse, error) {
	counters, err := s.vms.GetCounters(ctx, req.VMID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &CountersResponse{Counters: counters}
	if proj, err := s.vms.GetInfo(ctx, req.VMID); err == nil {
		resp.MemoryActualSize = proj.MemoryActualSize
	}
	return resp, nil
}

func (s *serverImpl) ListVMs(ctx context.Context, _ *EmptyRequest) (*ListVMsResponse, error) {
	return &ListVMsResponse{VMs: s.vms.List()}, nil
}

func (s *serverImpl) AddNetDevice(ctx context.Context, req *AddNetDeviceRequest) (*EmptyResponse, error) {
	if err := s.vms.AddNetDevice(ctx, req.VMID, req.Device); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) AddDiskDevice(ctx context.Context, req *AddDiskDeviceRequest) (*EmptyResponse, error) {
	if err := s.vms.AddDiskDevice(ctx, req.VMID, req.Device); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) AddFsDevice(ctx context.Context, req *AddFsDeviceRequest) (*EmptyResponse, error) {
	if err := s.vms.AddFsDevice(ctx, req.VMID, req.Device); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) RemoveDevice(ctx context.Context, req *RemoveDeviceRequest) (*EmptyResponse, error) {
	if err := s.vms.RemoveDevice(ctx, req.VMID, req.DeviceID); err != nil {
		return nil, toStatus(err)
	}
	return &EmptyResponse{}, nil
}

func (s *serverImpl) PullImage(ctx context.Context, req *PullImageRequest) (*PullImageResponse, error) {
	rec, err := s.images.PullAndUnpack(ctx, req.ImageRef)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PullImageResponse{
		ImageRef:   rec.ImageRef,
		Digest:     rec.Digest,
		RootPath:   rec.RootPath,
		Env:        rec.Env,
		Entrypoint: rec.Entrypoint,
		Cmd:        rec.Cmd,
	}, nil
}

// Ping answers the controller's host-liveness probe (the status
// reconciler calls it on every sweep for each host whose status is up).
// The kernel release comes from
// uname; the hypervisor version comes from invoking the configured
// binary with --version, best-effort.
func (s *serverImpl) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	resp := &PingResponse{}

	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		resp.KernelVersion = unix.ByteSliceToString(uts.Release[:])
	}

	if s.chBinary != "" {
		out, err := exec.CommandContext(ctx, s.chBinary, "--version").Output()
		if err != nil {
			s.log.Warn("cloud-hypervisor --version failed", "error", err)
		} else {
			resp.HypervisorVersion = strings.TrimSpace(string(out))
		}
	}

	return resp, nil
}

const consoleChunkSize = 4096

// AttachConsole implements the bidirectional stream described in §4.5:
// the first inbound frame carries the VM id, then the agent opens the
// hypervisor-exposed PTY and pumps both directions until either side
// closes.
func (s *serverImpl) AttachConsole(stream ConsoleStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.VMID == "" {
		return fmt.Errorf("attach-console: first frame must carry vm_id")
	}

	path, err := s.vms.ConsolePath(first.VMID)
	if err != nil {
		return toStatus(err)
	}

	pty, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("attach-console: open console %s: %w", path, err)
	}
	defer pty.Close()

	done := make(chan struct{})
	go s.pumpPTYToStream(pty, stream, done)
	s.pumpStreamToPTY(stream, pty)
	<-done
	return nil
}

func (s *serverImpl) pumpPTYToStream(pty *os.File, stream ConsoleStream, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, consoleChunkSize)
	for {
		n, err := pty.Read(buf)
		if n > 0 {
			if sendErr := stream.Send(&ConsoleFrame{Data: append([]byte(nil), buf[:n]...)}); sendErr != nil {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				_ = stream.Send(&ConsoleFrame{EOF: true})
			} else {
				_ = stream.Send(&ConsoleFrame{Error: err.Error()})
			}
			return
		}
	}
}

func (s *serverImpl) pumpStreamToPTY(stream ConsoleStream, pty *os.File) {
	for {
		frame, err := stream.Recv()
		if err != nil {
			return
		}
		if frame.Resize != nil {
			setWinsize(pty, frame.Resize)
			continue
		}
		if len(frame.Data) > 0 {
			if _, err := pty.Write(frame.Data); err != nil {
				return
			}
		}
	}
}

func setWinsize(pty *os.File, r *ConsoleResize) {
	ws := &unix.Winsize{Row: r.Rows, Col: r.Cols}
	_ = unix.IoctlSetWinsize(int(pty.Fd()), unix.TIOCSWINSZ, ws)
}
