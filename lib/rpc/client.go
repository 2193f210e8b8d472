package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/qarax-project/qarax/lib/vmmanager"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// Client is a typed wrapper around a NodeAgentServer connection, used by
// the controller/orchestrator to drive a node's node-agent.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a node agent at addr. Callers own the returned
// Client and must call Close.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, "/"+ServiceDesc.ServiceName+"/"+method, req, resp)
}

func (c *Client) CreateVM(ctx context.Context, config vmmanager.VMConfig) (*CreateVMResponse, error) {
	resp := new(CreateVMResponse)
	if err := c.invoke(ctx, "CreateVM", &CreateVMRequest{Config: config}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) StartVM(ctx context.Context, vmID string) error {
	return c.invoke(ctx, "StartVM", &VMIDRequest{VMID: vmID}, new(EmptyResponse))
}

func (c *Client) StopVM(ctx context.Context, vmID string) error {
	return c.invoke(ctx, "StopVM", &VMIDRequest{VMID: vmID}, new(EmptyResponse))
}

func (c *Client) PauseVM(ctx context.Context, vmID string) error {
	return c.invoke(ctx, "PauseVM", &VMIDRequest{VMID: vmID}, new(EmptyResponse))
}

func (c *Client) ResumeVM(ctx context.Context, vmID string) error {
	return c.invoke(ctx, "ResumeVM", &VMIDRequest{VMID: vmID}, new(EmptyResponse))
}

func (c *Client) DeleteVM(ctx context.Context, vmID string) error {
	return c.invoke(ctx, "DeleteVM", &VMIDRequest{VMID: vmID}, new(EmptyResponse))
}

func (c *Client) GetInfo(ctx context.Context, vmID string) (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke(ctx, "GetInfo", &VMIDRequest{VMID: vmID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetCounters(ctx context.Context, vmID string) (*CountersResponse, error) {
	resp := new(CountersResponse)
	if err := c.invoke(ctx, "GetCounters", &VMIDRequest{VMID: vmID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ListVMs(ctx context.Context) (*ListVMsResponse, error) {
	resp := new(ListVMsResponse)
	if err := c.invoke(ctx, "ListVMs", &EmptyRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AddNetDevice(ctx context.Context, vmID string, dev vmmanager.NetConfig) error {
	return c.invoke(ctx, "AddNetDevice", &AddNetDeviceRequest{VMID: vmID, Device: dev}, new(EmptyResponse))
}

func (c *Client) AddDiskDevice(ctx context.Context, vmID string, dev vmmanager.DiskConfig) error {
	return c.invoke(ctx, "AddDiskDevice", &AddDiskDeviceRequest{VMID: vmID, Device: dev}, new(EmptyResponse))
}

func (c *Client) AddFsDevice(ctx context.Context, vmID string, dev vmmanager.FsConfig) error {
	return c.invoke(ctx, "AddFsDevice", &AddFsDeviceRequest{VMID: vmID, Device: dev}, new(EmptyResponse))
}

func (c *Client) RemoveDevice(ctx context.Context, vmID, deviceID string) error {
	return c.invoke(ctx, "RemoveDevice", &RemoveDeviceRequest{VMID: vmID, DeviceID: deviceID}, new(EmptyResponse))
}

func (c *Client) PullImage(ctx context.Context, imageRef string) (*PullImageResponse, error) {
	resp := new(PullImageResponse)
	if err := c.invoke(ctx, "PullImage", &PullImageRequest{ImageRef: imageRef}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	resp := new(PingResponse)
	if err := c.invoke(ctx, "Ping", &PingRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ConsoleClientStream is the controller side of the attach-console
// stream: send the initial vm_id frame, then Send/Recv data frames.
type ConsoleClientStream struct {
	grpc.ClientStream
}

func (s *ConsoleClientStream) Send(f *ConsoleFrame) error { return s.ClientStream.SendMsg(f) }

func (s *ConsoleClientStream) Recv() (*ConsoleFrame, error) {
	f := new(ConsoleFrame)
	if err := s.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AttachConsole opens the stream and sends the initial vm_id frame.
func (c *Client) AttachConsole(ctx context.Context, vmID string) (*ConsoleClientStream, error) {
	desc := ServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, &desc, "/"+ServiceDesc.ServiceName+"/AttachConsole")
	if err != nil {
		return nil, err
	}
	cs := &ConsoleClientStream{ClientStream: stream}
	if err := cs.Send(&ConsoleFrame{VMID: vmID}); err != nil {
		return nil, err
	}
	return cs, nil
}
