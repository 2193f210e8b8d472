// Package store defines the controller's persistent entities and the
// Store interface the orchestrator drives them through. The relational
// store itself is an external collaborator (out of scope); this package
// only fixes the shape callers code against, plus an in-memory
// implementation for tests and local runs without a database.
package store

import "time"

type HostStatus string

const (
	HostUnknown            HostStatus = "unknown"
	HostDown               HostStatus = "down"
	HostInstalling         HostStatus = "installing"
	HostInstallationFailed HostStatus = "installation-failed"
	HostInitializing       HostStatus = "initializing"
	HostUp                 HostStatus = "up"
)

// Host is an operator-registered node-agent endpoint.
type Host struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	RPCPort    int    `json:"rpc_port"`
	SSHUser    string `json:"ssh_user,omitempty"`
	SSHKeyPath string `json:"ssh_key_path,omitempty"`

	Status            HostStatus `json:"status"`
	HypervisorVersion string     `json:"hypervisor_version,omitempty"`
	KernelVersion     string     `json:"kernel_version,omitempty"`
}

type VMStatus string

const (
	VMUnknown  VMStatus = "unknown"
	VMPending  VMStatus = "pending"
	VMCreated  VMStatus = "created"
	VMRunning  VMStatus = "running"
	VMPaused   VMStatus = "paused"
	VMShutdown VMStatus = "shutdown"
)

// VM is a controller-tracked virtual machine. HostID is sticky once set:
// it is assigned at create time and never changed except by delete.
type VM struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Hypervisor    string `json:"hypervisor"`
	BootVCPUs     int    `json:"boot_vcpus"`
	MaxVCPUs      int    `json:"max_vcpus"`
	MemorySizeMiB int64  `json:"memory_size_mib"`
	MemoryShared  bool   `json:"memory_shared"`
	MemoryHugepages bool `json:"memory_hugepages"`
	MemoryPrefault  bool `json:"memory_prefault"`

	BootSourceID *string `json:"boot_source_id,omitempty"`
	ImageRef     *string `json:"image_ref,omitempty"`

	Status VMStatus `json:"status"`
	HostID *string  `json:"host_id,omitempty"`
}

type NetDeviceType string

const (
	NetDeviceTap       NetDeviceType = "tap"
	NetDeviceMacvtap   NetDeviceType = "macvtap"
	NetDeviceVhostUser NetDeviceType = "vhost-user"
)

// NetworkInterface belongs to a VM; DeviceID is unique within that VM.
type NetworkInterface struct {
	VMID     string        `json:"vm_id"`
	DeviceID string        `json:"device_id"`
	Type     NetDeviceType `json:"type"`

	TapName   *string `json:"tap_name,omitempty"`
	MAC       *string `json:"mac,omitempty"`
	IP        *string `json:"ip,omitempty"`
	Mask      *string `json:"mask,omitempty"`
	MTU       *int    `json:"mtu,omitempty"`
	VhostSocket *string `json:"vhost_socket,omitempty"`

	NumQueues int  `json:"num_queues"`
	QueueSize int  `json:"queue_size"`
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty"`
}

type RateLimitConfig struct {
	BandwidthBytesPerSec int64 `json:"bandwidth_bytes_per_sec,omitempty"`
	OpsPerSec            int64 `json:"ops_per_sec,omitempty"`
}

// Filesystem belongs to a VM; Tag is the guest-visible virtiofs mount tag.
type Filesystem struct {
	VMID      string  `json:"vm_id"`
	Tag       string  `json:"tag"`
	NumQueues int     `json:"num_queues"`
	QueueSize int     `json:"queue_size"`
	ImageRef  *string `json:"image_ref,omitempty"`
	Digest    *string `json:"digest,omitempty"`
}

// BootSource maps a named kernel (+ optional initramfs, cmdline) to
// storage-object ids, resolved to file paths at VM-create time.
type BootSource struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	KernelPath    string  `json:"kernel_path"`
	InitramfsPath *string `json:"initramfs_path,omitempty"`
	Cmdline       string  `json:"cmdline,omitempty"`
}

type JobType string

const (
	JobImagePull JobType = "image-pull"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks an asynchronous background task, e.g. the pull-then-create
// flow for a VM created from an OCI image ref.
type Job struct {
	ID       string    `json:"id"`
	Type     JobType   `json:"type"`
	VMID     string    `json:"vm_id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Result   *string   `json:"result,omitempty"`
	Error    *string   `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferRunning   TransferStatus = "running"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// Transfer records a download/copy into a storage pool; storage-pool and
// boot-source catalog CRUD is otherwise out of scope here.
type Transfer struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	DestPool    string         `json:"dest_pool"`
	BytesWritten int64         `json:"bytes_written"`
	Status      TransferStatus `json:"status"`
}
