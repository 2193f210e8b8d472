package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"

	"github.com/qarax-project/qarax/lib/orchestrator"
	"github.com/qarax-project/qarax/lib/store"
)

// memorySize accepts either a bare byte count (the wire shape used by
// the end-to-end scenarios, e.g. 536870912) or a human-readable string
// datasize understands (e.g. "512MB"), so operators can use whichever is
// convenient.
type memorySize int64

func (m *memorySize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*m = memorySize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("memory_size: %w", err)
	}
	var bs datasize.ByteSize
	if err := bs.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("memory_size: %w", err)
	}
	*m = memorySize(bs.Bytes())
	return nil
}

type createNetworkRequest struct {
	DeviceID string                `json:"device_id"`
	Type     store.NetDeviceType   `json:"type"`
	TapName  *string               `json:"tap_name,omitempty"`
	MAC      *string               `json:"mac,omitempty"`
	IP       *string               `json:"ip,omitempty"`
	Mask     *string               `json:"mask,omitempty"`
	MTU      *int                  `json:"mtu,omitempty"`
	NumQueues int                  `json:"num_queues,omitempty"`
	QueueSize int                  `json:"queue_size,omitempty"`
}

// createVMRequest is the POST /vms body. memory_size is in bytes;
// handlers convert it to the store's MiB-denominated field.
type createVMRequest struct {
	Name            string                 `json:"name"`
	Hypervisor      string                 `json:"hypervisor"`
	BootVCPUs       int                    `json:"boot_vcpus"`
	MaxVCPUs        int                    `json:"max_vcpus"`
	MemorySize      memorySize             `json:"memory_size"`
	MemoryShared    bool                   `json:"memory_shared,omitempty"`
	MemoryHugepages bool                   `json:"memory_hugepages,omitempty"`
	MemoryPrefault  bool                   `json:"memory_prefault,omitempty"`
	BootSourceID    *string                `json:"boot_source_id,omitempty"`
	ImageRef        *string                `json:"image_ref,omitempty"`
	Networks        []createNetworkRequest `json:"networks,omitempty"`
}

func (r createVMRequest) toOrchestratorRequest() orchestrator.CreateVMRequest {
	networks := lo.Map(r.Networks, func(n createNetworkRequest, _ int) store.NetworkInterface {
		return store.NetworkInterface{
			DeviceID:  n.DeviceID,
			Type:      n.Type,
			TapName:   n.TapName,
			MAC:       n.MAC,
			IP:        n.IP,
			Mask:      n.Mask,
			MTU:       n.MTU,
			NumQueues: n.NumQueues,
			QueueSize: n.QueueSize,
		}
	})
	return orchestrator.CreateVMRequest{
		Name:            r.Name,
		BootVCPUs:       r.BootVCPUs,
		MaxVCPUs:        r.MaxVCPUs,
		MemorySizeMiB:   int64(r.MemorySize) / (1024 * 1024),
		MemoryShared:    r.MemoryShared,
		MemoryHugepages: r.MemoryHugepages,
		MemoryPrefault:  r.MemoryPrefault,
		BootSourceID:    r.BootSourceID,
		ImageRef:        r.ImageRef,
		Networks:        networks,
	}
}

type createVMSyncResponse struct {
	ID string `json:"id"`
}

type createVMAsyncResponse struct {
	VMID  string `json:"vm_id"`
	JobID string `json:"job_id"`
}

type metricsResponse struct {
	VMID             string                      `json:"vm_id"`
	Status           string                      `json:"status"`
	MemoryActualSize *int64                      `json:"memory_actual_size,omitempty"`
	Counters         map[string]map[string]int64 `json:"counters"`
}

type createHostRequest struct {
	Address    string `json:"address"`
	RPCPort    int    `json:"rpc_port"`
	SSHUser    string `json:"ssh_user,omitempty"`
	SSHKeyPath string `json:"ssh_key_path,omitempty"`
}

type createHostResponse struct {
	ID string `json:"id"`
}

type patchHostRequest struct {
	Status *store.HostStatus `json:"status,omitempty"`
}
