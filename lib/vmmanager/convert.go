package vmmanager

import "github.com/qarax-project/qarax/lib/hypervisor/cloudhypervisor"

// toHypervisorConfig translates the domain VMConfig into the hypervisor's
// own JSON wire shape. Structural conversion is the only logic here; no
// field is defaulted that the caller didn't already set, following §4.5's
// description of the RPC translation layer as doing "structural
// conversion... and nothing else".
func toHypervisorConfig(c VMConfig) cloudhypervisor.VMConfig {
	out := cloudhypervisor.VMConfig{
		Payload: cloudhypervisor.PayloadConfig{
			Firmware:  c.Payload.Firmware,
			Kernel:    c.Payload.Kernel,
			Cmdline:   c.Payload.Cmdline,
			Initramfs: c.Payload.Initramfs,
		},
	}

	if c.CPUs != nil {
		out.CPUs = &cloudhypervisor.CPUsConfig{
			BootVCPUs: c.CPUs.BootVCPUs,
			MaxVCPUs:  c.CPUs.MaxVCPUs,
			KVMHyperv: c.CPUs.KVMHyperv,
		}
		if c.CPUs.Topology != nil {
			out.CPUs.Topology = &cloudhypervisor.CPUTopology{
				ThreadsPerCore: c.CPUs.Topology.ThreadsPerCore,
				CoresPerDie:    c.CPUs.Topology.CoresPerDie,
				DiesPerPackage: c.CPUs.Topology.DiesPerPackage,
				Packages:       c.CPUs.Topology.Packages,
			}
		}
	}

	if c.Memory != nil {
		out.Memory = &cloudhypervisor.MemoryConfig{
			Size:        c.Memory.Size,
			HotplugSize: c.Memory.HotplugSize,
			Mergeable:   c.Memory.Mergeable,
			Shared:      c.Memory.Shared,
			Hugepages:   c.Memory.Hugepages,
			Prefault:    c.Memory.Prefault,
		}
	}

	for _, d := range c.Disks {
		out.Disks = append(out.Disks, diskToHypervisor(d))
	}
	for _, n := range c.Networks {
		out.Net = append(out.Net, netToHypervisor(n))
	}
	for _, f := range c.FS {
		out.FS = append(out.FS, fsToHypervisor(f))
	}

	if c.RNG != nil {
		out.RNG = &cloudhypervisor.RNGConfig{Src: c.RNG.Src}
	}
	if c.Serial != nil {
		out.Serial = consoleToHypervisor(*c.Serial)
	}
	if c.Console != nil {
		out.Console = consoleToHypervisor(*c.Console)
	}

	return out
}

func diskToHypervisor(d DiskConfig) cloudhypervisor.DiskConfig {
	return cloudhypervisor.DiskConfig{
		ID:        d.ID,
		Path:      d.Path,
		Readonly:  d.Readonly,
		Direct:    d.Direct,
		NumQueues: d.NumQueues,
		QueueSize: d.QueueSize,
		VhostUser: d.VhostUser,
		Serial:    d.Serial,
	}
}

func netToHypervisor(n NetConfig) cloudhypervisor.NetConfig {
	return cloudhypervisor.NetConfig{
		ID:        n.ID,
		Tap:       n.Tap,
		IP:        n.IP,
		Mask:      n.Mask,
		Mac:       n.Mac,
		MTU:       n.MTU,
		VhostUser: n.VhostUser,
	}
}

func fsToHypervisor(f FsConfig) cloudhypervisor.FsConfig {
	return cloudhypervisor.FsConfig{
		ID:     f.ID,
		Tag:    f.Tag,
		Socket: f.Socket,
	}
}

var consoleModeToHypervisor = map[ConsoleMode]cloudhypervisor.ConsoleMode{
	ConsoleOff:    cloudhypervisor.ConsoleModeOff,
	ConsolePty:    cloudhypervisor.ConsoleModePty,
	ConsoleTTY:    cloudhypervisor.ConsoleModeTTY,
	ConsoleFile:   cloudhypervisor.ConsoleModeFile,
	ConsoleSocket: cloudhypervisor.ConsoleModeSocket,
	ConsoleNull:   cloudhypervisor.ConsoleModeNull,
}

func consoleToHypervisor(c ConsoleConfig) *cloudhypervisor.ConsoleConfig {
	mode, ok := consoleModeToHypervisor[c.Mode]
	if !ok {
		mode = cloudhypervisor.ConsoleModeNull
	}
	return &cloudhypervisor.ConsoleConfig{
		File:   c.File,
		Socket: c.Socket,
		Mode:   mode,
	}
}

// fromHypervisorState maps the hypervisor's reported state onto the
// manager's own status enum, per §4.1's state machine. An unrecognized
// state maps to StatusUnknown rather than erroring, since callers
// (get-info, the reconciler) must always have a status to report.
func fromHypervisorState(s cloudhypervisor.VMState) VMStatus {
	switch s {
	case cloudhypervisor.VMStateCreated:
		return StatusCreated
	case cloudhypervisor.VMStateRunning:
		return StatusRunning
	case cloudhypervisor.VMStatePaused:
		return StatusPaused
	case cloudhypervisor.VMStateShutdown:
		return StatusShutdown
	default:
		return StatusUnknown
	}
}
