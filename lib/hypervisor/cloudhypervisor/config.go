// Package cloudhypervisor wraps the Cloud Hypervisor control-socket API
// (lib/vmm) with the JSON wire shapes the hypervisor itself expects. The
// mapping from the node agent's own VM config types lives in
// lib/vmmanager (convert.go).
package cloudhypervisor

// VMConfig is the top-level body PUT to /api/v1/vm.create. Field names and
// JSON tags mirror Cloud Hypervisor's own vmm config schema (snake_case),
// not Go convention, since this struct's only job is to round-trip over
// the wire unchanged.
type VMConfig struct {
	CPUs    *CPUsConfig    `json:"cpus,omitempty"`
	Memory  *MemoryConfig  `json:"memory,omitempty"`
	Payload PayloadConfig  `json:"payload"`
	Disks   []DiskConfig   `json:"disks,omitempty"`
	Net     []NetConfig    `json:"net,omitempty"`
	RNG     *RNGConfig     `json:"rng,omitempty"`
	Serial  *ConsoleConfig `json:"serial,omitempty"`
	Console *ConsoleConfig `json:"console,omitempty"`
	FS      []FsConfig     `json:"fs,omitempty"`
}

// CPUsConfig describes vCPU topology.
type CPUsConfig struct {
	BootVCPUs  uint8        `json:"boot_vcpus"`
	MaxVCPUs   uint8        `json:"max_vcpus"`
	Topology   *CPUTopology `json:"topology,omitempty"`
	KVMHyperv  bool         `json:"kvm_hyperv,omitempty"`
	MaxPhysBit *uint8       `json:"max_phys_bits,omitempty"`
}

// CPUTopology describes the die/core/thread layout presented to the guest.
type CPUTopology struct {
	ThreadsPerCore uint8 `json:"threads_per_core"`
	CoresPerDie    uint8 `json:"cores_per_die"`
	DiesPerPackage uint8 `json:"dies_per_package"`
	Packages       uint8 `json:"packages"`
}

// MemoryConfig describes the guest's memory allocation.
type MemoryConfig struct {
	Size         int64  `json:"size"`
	HotplugSize  *int64 `json:"hotplug_size,omitempty"`
	Mergeable    bool   `json:"mergeable,omitempty"`
	Shared       bool   `json:"shared,omitempty"`
	Hugepages    bool   `json:"hugepages,omitempty"`
	HugepageSize *int64 `json:"hugepage_size,omitempty"`
	Prefault     bool   `json:"prefault,omitempty"`
	THP          bool   `json:"thp,omitempty"`
}

// PayloadConfig describes the kernel/firmware boot payload.
type PayloadConfig struct {
	Firmware  *string `json:"firmware,omitempty"`
	Kernel    *string `json:"kernel,omitempty"`
	Cmdline   *string `json:"cmdline,omitempty"`
	Initramfs *string `json:"initramfs,omitempty"`
}

// DiskConfig describes a block device attached to the VM.
type DiskConfig struct {
	ID              string              `json:"id,omitempty"`
	Path            string              `json:"path,omitempty"`
	Readonly        bool                `json:"readonly,omitempty"`
	Direct          bool                `json:"direct,omitempty"`
	NumQueues       *int                `json:"num_queues,omitempty"`
	QueueSize       *int                `json:"queue_size,omitempty"`
	VhostUser       bool                `json:"vhost_user,omitempty"`
	VhostSocket     *string             `json:"vhost_socket,omitempty"`
	RateLimiter     *RateLimiterConfig  `json:"rate_limiter_config,omitempty"`
	PCISegment      *uint16             `json:"pci_segment,omitempty"`
	Serial          *string             `json:"serial,omitempty"`
	RateLimitGroup  *string             `json:"rate_limit_group,omitempty"`
}

// NetConfig describes a network interface attached to the VM.
type NetConfig struct {
	ID          string             `json:"id,omitempty"`
	Tap         *string            `json:"tap,omitempty"`
	IP          *string            `json:"ip,omitempty"`
	Mask        *string            `json:"mask,omitempty"`
	Mac         *string            `json:"mac,omitempty"`
	HostMac     *string            `json:"host_mac,omitempty"`
	MTU         *uint16            `json:"mtu,omitempty"`
	NumQueues   *int               `json:"num_queues,omitempty"`
	QueueSize   *int               `json:"queue_size,omitempty"`
	VhostUser   bool               `json:"vhost_user,omitempty"`
	VhostSocket *string            `json:"vhost_socket,omitempty"`
	VhostMode   *string            `json:"vhost_mode,omitempty"`
	PCISegment  *uint16            `json:"pci_segment,omitempty"`
	RateLimiter *RateLimiterConfig `json:"rate_limiter_config,omitempty"`
	OffloadTSO  *bool              `json:"offload_tso,omitempty"`
	OffloadUFO  *bool              `json:"offload_ufo,omitempty"`
	OffloadCsum *bool              `json:"offload_csum,omitempty"`
}

// FsConfig describes a virtiofs shared-filesystem device.
type FsConfig struct {
	ID        string `json:"id,omitempty"`
	Tag       string `json:"tag"`
	Socket    string `json:"socket"`
	NumQueues int    `json:"num_queues,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
}

// RNGConfig describes the guest's source of entropy.
type RNGConfig struct {
	Src   string `json:"src,omitempty"`
	IOMMU bool   `json:"iommu,omitempty"`
}

// ConsoleMode selects where a console/serial device's output goes.
type ConsoleMode string

const (
	ConsoleModeOff    ConsoleMode = "Off"
	ConsoleModePty    ConsoleMode = "Pty"
	ConsoleModeTTY    ConsoleMode = "Tty"
	ConsoleModeFile   ConsoleMode = "File"
	ConsoleModeSocket ConsoleMode = "Socket"
	ConsoleModeNull   ConsoleMode = "Null"
)

// ConsoleConfig describes a serial or virtio-console device.
type ConsoleConfig struct {
	File   *string     `json:"file,omitempty"`
	Socket *string     `json:"socket,omitempty"`
	Mode   ConsoleMode `json:"mode"`
	IOMMU  bool        `json:"iommu,omitempty"`
}

// RateLimiterConfig bounds a device's throughput.
type RateLimiterConfig struct {
	Bandwidth *TokenBucket `json:"bandwidth,omitempty"`
	Ops       *TokenBucket `json:"ops,omitempty"`
}

// TokenBucket is a single rate-limiter bucket.
type TokenBucket struct {
	Size         int64  `json:"size"`
	RefillTime   int64  `json:"refill_time"`
	OneTimeBurst *int64 `json:"one_time_burst,omitempty"`
}

// VMState is the hypervisor-reported lifecycle state, as returned by
// GET /api/v1/vm.info.
type VMState string

const (
	VMStateCreated  VMState = "Created"
	VMStateRunning  VMState = "Running"
	VMStatePaused   VMState = "Paused"
	VMStateShutdown VMState = "Shutdown"
)

// VMInfo is the body returned by GET /api/v1/vm.info.
type VMInfo struct {
	Config           VMConfig `json:"config"`
	State            VMState  `json:"state"`
	MemoryActualSize *int64   `json:"memory_actual_size,omitempty"`
}

// DeviceRemoval is the body PUT to /api/v1/vm.remove-device.
type DeviceRemoval struct {
	ID string `json:"id"`
}
