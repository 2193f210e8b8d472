package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// NodeAgentServer is the node agent's RPC surface. Every method maps
// one-to-one onto a vmmanager or imagestore operation; see serverImpl
// in server.go for the translation.
type NodeAgentServer interface {
	CreateVM(context.Context, *CreateVMRequest) (*CreateVMResponse, error)
	StartVM(context.Context, *VMIDRequest) (*EmptyResponse, error)
	StopVM(context.Context, *VMIDRequest) (*EmptyResponse, error)
	PauseVM(context.Context, *VMIDRequest) (*EmptyResponse, error)
	ResumeVM(context.Context, *VMIDRequest) (*EmptyResponse, error)
	DeleteVM(context.Context, *VMIDRequest) (*EmptyResponse, error)
	GetInfo(context.Context, *VMIDRequest) (*StatusResponse, error)
	GetCounters(context.Context, *VMIDRequest) (*CountersResponse, error)
	ListVMs(context.Context, *EmptyRequest) (*ListVMsResponse, error)
	AddNetDevice(context.Context, *AddNetDeviceRequest) (*EmptyResponse, error)
	AddDiskDevice(context.Context, *AddDiskDeviceRequest) (*EmptyResponse, error)
	AddFsDevice(context.Context, *AddFsDeviceRequest) (*EmptyResponse, error)
	RemoveDevice(context.Context, *RemoveDeviceRequest) (*EmptyResponse, error)
	PullImage(context.Context, *PullImageRequest) (*PullImageResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	AttachConsole(ConsoleStream) error
}

// ConsoleStream is the bidirectional attach-console stream described in
// §4.5: the first inbound frame carries the VM id, every frame after
// that carries either a data chunk or (from the client) a resize.
type ConsoleStream interface {
	grpc.ServerStream
	Send(*ConsoleFrame) error
	Recv() (*ConsoleFrame, error)
}

type consoleStream struct {
	grpc.ServerStream
}

func (s *consoleStream) Send(f *ConsoleFrame) error { return s.ServerStream.SendMsg(f) }
func (s *consoleStream) Recv() (*ConsoleFrame, error) {
	f := new(ConsoleFrame)
	if err := s.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

// unaryHandler adapts a NodeAgentServer method value into the untyped
// shape grpc.MethodDesc.Handler expects, decoding the request with the
// codec grpc already selected for the call.
func unaryHandler[Req, Resp any](call func(NodeAgentServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NodeAgentServer), ctx, req.(*Req))
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		return interceptor(ctx, req, info, handler)
	}
}

func attachConsoleHandler(srv any, stream grpc.ServerStream) error {
	return srv.(NodeAgentServer).AttachConsole(&consoleStream{ServerStream: stream})
}

// ServiceDesc is the hand-written grpc.ServiceDesc for NodeAgentServer.
// Code generation from a .proto file isn't available in this
// environment, so methods are wired directly instead of via generated
// _grpc.pb.go stubs.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "qarax.node.NodeAgent",
	HandlerType: (*NodeAgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateVM", Handler: unaryHandler(NodeAgentServer.CreateVM)},
		{MethodName: "StartVM", Handler: unaryHandler(NodeAgentServer.StartVM)},
		{MethodName: "StopVM", Handler: unaryHandler(NodeAgentServer.StopVM)},
		{MethodName: "PauseVM", Handler: unaryHandler(NodeAgentServer.PauseVM)},
		{MethodName: "ResumeVM", Handler: unaryHandler(NodeAgentServer.ResumeVM)},
		{MethodName: "DeleteVM", Handler: unaryHandler(NodeAgentServer.DeleteVM)},
		{MethodName: "GetInfo", Handler: unaryHandler(NodeAgentServer.GetInfo)},
		{MethodName: "GetCounters", Handler: unaryHandler(NodeAgentServer.GetCounters)},
		{MethodName: "ListVMs", Handler: unaryHandler(NodeAgentServer.ListVMs)},
		{MethodName: "AddNetDevice", Handler: unaryHandler(NodeAgentServer.AddNetDevice)},
		{MethodName: "AddDiskDevice", Handler: unaryHandler(NodeAgentServer.AddDiskDevice)},
		{MethodName: "AddFsDevice", Handler: unaryHandler(NodeAgentServer.AddFsDevice)},
		{MethodName: "RemoveDevice", Handler: unaryHandler(NodeAgentServer.RemoveDevice)},
		{MethodName: "PullImage", Handler: unaryHandler(NodeAgentServer.PullImage)},
		{MethodName: "Ping", Handler: unaryHandler(NodeAgentServer.Ping)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "AttachConsole",
			Handler:       attachConsoleHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "qarax/node_agent.proto",
}

// RegisterNodeAgentServer registers srv's implementation on s.
func RegisterNodeAgentServer(s *grpc.Server, srv NodeAgentServer) {
	s.RegisterService(&ServiceDesc, srv)
}
