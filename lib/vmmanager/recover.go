package vmmanager

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/qarax-project/qarax/lib/hypervisor/cloudhypervisor"
	"github.com/qarax-project/qarax/lib/tapnet"
)

// RecoverVMs implements §4.1's recover-vms operation. Called once on
// startup, before the manager serves requests. Once every persisted VM
// has either rejoined m.vms or been given up on, it sweeps the host for
// tap devices carrying the managed prefix that belong to none of the
// recovered VMs (e.g. a VM whose hypervisor died across the restart) and
// removes them, so a crash loop doesn't leak tap devices indefinitely.
func (m *VmManager) RecoverVMs(ctx context.Context) {
	log := m.log
	entries, err := os.ReadDir(m.paths.RuntimeDir())
	if err != nil {
		log.Warn("failed to read runtime dir for recovery", "error", err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sock") {
			continue
		}
		vmID := strings.TrimSuffix(name, ".sock")
		if _, err := uuid.Parse(vmID); err != nil {
			continue
		}

		configPath := m.paths.VMConfig(vmID)
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		config, err := loadConfig(configPath)
		if err != nil {
			log.Warn("failed to decode persisted config", "vm_id", vmID, "error", err)
			continue
		}

		socketPath := filepath.Join(m.paths.RuntimeDir(), name)
		ch := cloudhypervisor.New(socketPath)
		info, err := ch.GetInfo(ctx)
		if err != nil {
			log.Warn("failed to reconnect to vm, hypervisor likely died", "vm_id", vmID, "error", err)
			continue
		}

		var tapDevices []string
		for _, n := range config.Networks {
			if n.Tap != nil && strings.HasPrefix(*n.Tap, tapnet.Prefix) {
				tapDevices = append(tapDevices, *n.Tap)
			}
		}

		inst := &vmInstance{
			config:     config,
			cmd:        nil, // no child-process handle survives a node-agent restart
			ch:         ch,
			socketPath: socketPath,
			status:     fromHypervisorState(info.State),
			tapDevices: tapDevices,
		}

		m.mu.Lock()
		m.vms[vmID] = inst
		m.mu.Unlock()

		log.Info("recovered vm", "vm_id", vmID, "status", inst.status.String())
	}

	m.sweepOrphanedTaps()
}

// sweepOrphanedTaps removes managed-prefix tap devices not owned by any
// VM that just rejoined m.vms.
func (m *VmManager) sweepOrphanedTaps() {
	m.mu.Lock()
	keep := make(map[string]bool)
	for _, inst := range m.vms {
		for _, tap := range inst.tapDevices {
			keep[tap] = true
		}
	}
	m.mu.Unlock()

	deleted, err := tapnet.CleanupOrphaned(keep)
	if err != nil {
		m.log.Warn("tap orphan sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		m.log.Info("swept orphaned tap devices", "count", deleted)
	}
}
