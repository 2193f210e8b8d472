package vmmanager

import (
	"testing"

	"github.com/qarax-project/qarax/lib/hypervisor/cloudhypervisor"
	"github.com/stretchr/testify/require"
)

func TestToHypervisorConfigMapsFields(t *testing.T) {
	kernel := "/boot/vmlinux"
	tap := "qtabcdef12n0"

	config := VMConfig{
		VMID:    "11111111-2222-3333-4444-555555555555",
		Payload: PayloadConfig{Kernel: &kernel},
		CPUs:    &CPUsConfig{BootVCPUs: 2, MaxVCPUs: 4},
		Memory:  &MemoryConfig{Size: 1 << 30, Shared: true},
		Networks: []NetConfig{
			{ID: "net0", Tap: &tap},
		},
		FS: []FsConfig{
			{ID: "fs0", Tag: "rootfs", Socket: "/run/qarax/vm-fs.sock"},
		},
	}

	out := toHypervisorConfig(config)

	require.Equal(t, &kernel, out.Payload.Kernel)
	require.NotNil(t, out.CPUs)
	require.EqualValues(t, 2, out.CPUs.BootVCPUs)
	require.NotNil(t, out.Memory)
	require.True(t, out.Memory.Shared)
	require.Len(t, out.Net, 1)
	require.Equal(t, &tap, out.Net[0].Tap)
	require.Len(t, out.FS, 1)
	require.Equal(t, "rootfs", out.FS[0].Tag)
}

func TestConsoleModeMapping(t *testing.T) {
	c := consoleToHypervisor(ConsoleConfig{Mode: ConsoleFile})
	require.Equal(t, cloudhypervisor.ConsoleModeFile, c.Mode)

	c = consoleToHypervisor(ConsoleConfig{Mode: ConsoleMode(99)})
	require.Equal(t, cloudhypervisor.ConsoleModeNull, c.Mode)
}

func TestFromHypervisorStateMapsUnknown(t *testing.T) {
	require.Equal(t, StatusRunning, fromHypervisorState(cloudhypervisor.VMStateRunning))
	require.Equal(t, StatusUnknown, fromHypervisorState(cloudhypervisor.VMState("Bogus")))
}
