// Package rpc is the node agent's RPC surface: a thin translation layer
// where every method maps one-to-one onto a vmmanager/imagestore
// operation (§4.5). Code generation from a .proto file isn't available
// in this environment, so the service is wired by hand onto
// grpc.ServiceDesc with a JSON wire codec rather than generated
// protobuf stubs.
package rpc

import "github.com/qarax-project/qarax/lib/vmmanager"

// CreateVMRequest carries the domain VM config plus the agent-specific
// extras §4.5 mentions (bootstrap_path on filesystem entries).
type CreateVMRequest struct {
	Config vmmanager.VMConfig `json:"config"`
}

type CreateVMResponse struct {
	Projection vmmanager.VMProjection `json:"projection"`
}

type EmptyRequest struct{}

type VMIDRequest struct {
	VMID string `json:"vm_id"`
}

type StatusResponse struct {
	Projection vmmanager.VMProjection `json:"projection"`
}

type EmptyResponse struct{}

type CountersResponse struct {
	Counters         map[string]map[string]int64 `json:"counters"`
	MemoryActualSize *int64                       `json:"memory_actual_size,omitempty"`
}

type ListVMsResponse struct {
	VMs []vmmanager.VMProjection `json:"vms"`
}

type AddNetDeviceRequest struct {
	VMID   string               `json:"vm_id"`
	Device vmmanager.NetConfig  `json:"device"`
}

type AddDiskDeviceRequest struct {
	VMID   string                `json:"vm_id"`
	Device vmmanager.DiskConfig  `json:"device"`
}

type AddFsDeviceRequest struct {
	VMID   string              `json:"vm_id"`
	Device vmmanager.FsConfig  `json:"device"`
}

type RemoveDeviceRequest struct {
	VMID     string `json:"vm_id"`
	DeviceID string `json:"device_id"`
}

type PullImageRequest struct {
	ImageRef string `json:"image_ref"`
}

type PullImageResponse struct {
	ImageRef   string            `json:"image_ref"`
	Digest     string            `json:"digest"`
	RootPath   string            `json:"root_path"`
	Env        map[string]string `json:"env,omitempty"`
	Entrypoint []string          `json:"entrypoint,omitempty"`
	Cmd        []string          `json:"cmd,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	HypervisorVersion string `json:"hypervisor_version,omitempty"`
	KernelVersion     string `json:"kernel_version,omitempty"`
}

// ConsoleFrame is one message of the bidirectional attach-console
// stream. Exactly one field is set per message: the first inbound
// message from the client must carry VMID; subsequent client messages
// carry Data or Resize, and server messages carry Data, EOF or Error,
// Resize being unidirectional client->server only.
type ConsoleFrame struct {
	VMID   string `json:"vm_id,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Resize *ConsoleResize `json:"resize,omitempty"`
	Error  string `json:"error,omitempty"`
	EOF    bool   `json:"eof,omitempty"`
}

type ConsoleResize struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}
