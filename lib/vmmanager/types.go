// Package vmmanager owns the node agent's in-memory table of running VMs:
// creation, lifecycle transitions, device hot-plug, and crash recovery.
package vmmanager

// VMConfig is the domain representation of a VM's configuration. It is
// the wire config carried by the node agent's RPC surface (lib/rpc) and
// the form persisted to {runtime-dir}/{vm-id}.json for crash recovery.
// Field shape follows the teacher's proto VmConfig one-to-one; cloudhypervisor.VMConfig
// is the hypervisor's own JSON wire shape, not this one.
type VMConfig struct {
	VMID     string         `json:"vm_id"`
	CPUs     *CPUsConfig    `json:"cpus,omitempty"`
	Memory   *MemoryConfig  `json:"memory,omitempty"`
	Payload  PayloadConfig  `json:"payload"`
	Disks    []DiskConfig   `json:"disks,omitempty"`
	Networks []NetConfig    `json:"networks,omitempty"`
	RNG      *RNGConfig     `json:"rng,omitempty"`
	Serial   *ConsoleConfig `json:"serial,omitempty"`
	Console  *ConsoleConfig `json:"console,omitempty"`
	FS       []FsConfig     `json:"fs,omitempty"`
}

// CPUsConfig mirrors the hypervisor's vCPU topology fields.
type CPUsConfig struct {
	BootVCPUs uint8        `json:"boot_vcpus"`
	MaxVCPUs  uint8        `json:"max_vcpus"`
	Topology  *CPUTopology `json:"topology,omitempty"`
	KVMHyperv bool         `json:"kvm_hyperv,omitempty"`
}

// CPUTopology mirrors the hypervisor's die/core/thread layout.
type CPUTopology struct {
	ThreadsPerCore uint8 `json:"threads_per_core"`
	CoresPerDie    uint8 `json:"cores_per_die"`
	DiesPerPackage uint8 `json:"dies_per_package"`
	Packages       uint8 `json:"packages"`
}

// MemoryConfig mirrors the hypervisor's memory allocation fields.
type MemoryConfig struct {
	Size        int64  `json:"size"`
	HotplugSize *int64 `json:"hotplug_size,omitempty"`
	Mergeable   bool   `json:"mergeable,omitempty"`
	Shared      bool   `json:"shared,omitempty"`
	Hugepages   bool   `json:"hugepages,omitempty"`
	Prefault    bool   `json:"prefault,omitempty"`
}

// PayloadConfig mirrors the hypervisor's boot payload fields.
type PayloadConfig struct {
	Firmware  *string `json:"firmware,omitempty"`
	Kernel    *string `json:"kernel,omitempty"`
	Cmdline   *string `json:"cmdline,omitempty"`
	Initramfs *string `json:"initramfs,omitempty"`
}

// DiskConfig describes one block device.
type DiskConfig struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	Readonly  bool    `json:"readonly,omitempty"`
	Direct    bool    `json:"direct,omitempty"`
	NumQueues *int    `json:"num_queues,omitempty"`
	QueueSize *int    `json:"queue_size,omitempty"`
	VhostUser bool    `json:"vhost_user,omitempty"`
	Serial    *string `json:"serial,omitempty"`
}

// NetConfig describes one network interface. Tap is left nil by a caller
// that wants the manager to allocate and create a deterministic tap
// device during create(); it is filled in (by the manager) once that
// happens, and is what gets persisted for recover-vms to re-derive
// ownership.
type NetConfig struct {
	ID        string  `json:"id"`
	Tap       *string `json:"tap,omitempty"`
	IP        *string `json:"ip,omitempty"`
	Mask      *string `json:"mask,omitempty"`
	Mac       *string `json:"mac,omitempty"`
	MTU       *uint16 `json:"mtu,omitempty"`
	VhostUser bool    `json:"vhost_user,omitempty"`
}

// FsConfig describes one virtiofs shared-filesystem device. BootstrapPath,
// when set, tells create() to start a shared-fs daemon rooted at that path
// and write the resulting socket path back into Socket before the config
// is sent to the hypervisor.
type FsConfig struct {
	ID            string  `json:"id"`
	Tag           string  `json:"tag"`
	Socket        string  `json:"socket,omitempty"`
	BootstrapPath *string `json:"bootstrap_path,omitempty"`
}

// RNGConfig describes the guest's entropy source.
type RNGConfig struct {
	Src string `json:"src,omitempty"`
}

// ConsoleMode selects where a serial/console device's output goes.
type ConsoleMode int

const (
	ConsoleOff ConsoleMode = iota
	ConsolePty
	ConsoleTTY
	ConsoleFile
	ConsoleSocket
	ConsoleNull
)

// ConsoleConfig describes a serial or virtio-console device. File is the
// per-VM console log path ({runtime-dir}/{vm-id}.console.log) used when
// Mode is ConsoleFile (the SPEC_FULL console-log addition).
type ConsoleConfig struct {
	File   *string     `json:"file,omitempty"`
	Socket *string     `json:"socket,omitempty"`
	Mode   ConsoleMode `json:"mode"`
}

// VMStatus is the manager's own lifecycle status for a VmInstance,
// distinct from (but derived from) the hypervisor's VMState.
type VMStatus int

const (
	StatusCreated VMStatus = iota
	StatusRunning
	StatusPaused
	StatusShutdown
	StatusUnknown
)

func (s VMStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// VMProjection is the read-only snapshot returned by get-info, list, and
// the create() success path.
type VMProjection struct {
	Config           VMConfig `json:"config"`
	Status           VMStatus `json:"status"`
	MemoryActualSize *int64   `json:"memory_actual_size,omitempty"`
}
