package orchestrator

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qarax-project/qarax/lib/store"
	"github.com/qarax-project/qarax/lib/vmmanager"
)

// CreateVMRequest is the operator-supplied shape for creating a VM,
// resolved by CreateVM into a store.VM plus a node-agent create-VM call.
type CreateVMRequest struct {
	Name          string
	BootVCPUs     int
	MaxVCPUs      int
	MemorySizeMiB int64
	MemoryShared  bool
	MemoryHugepages bool
	MemoryPrefault  bool

	BootSourceID *string
	ImageRef     *string

	Networks []store.NetworkInterface
}

// PickHost returns a uniformly random host with status=up.
func (o *Orchestrator) PickHost(ctx context.Context) (store.Host, error) {
	hosts, err := o.store.ListHosts(ctx)
	if err != nil {
		return store.Host{}, err
	}
	up := lo.Filter(hosts, func(h store.Host, _ int) bool { return h.Status == store.HostUp })
	if len(up) == 0 {
		return store.Host{}, wrap(KindNoHostsAvailable, ErrNoHostsAvailable)
	}
	return up[rand.Intn(len(up))], nil
}

// resolveBootSource resolves a boot source id (or the orchestrator's
// configured defaults when none is given) to (kernel, initramfs, cmdline).
func (o *Orchestrator) resolveBootSource(ctx context.Context, id *string) (kernel string, initramfs *string, cmdline string, err error) {
	if id == nil {
		return o.defaultKernelPath, nil, o.defaultCmdline, nil
	}
	bs, err := o.store.GetBootSource(ctx, *id)
	if err != nil {
		return "", nil, "", err
	}
	return bs.KernelPath, bs.InitramfsPath, bs.Cmdline, nil
}

// CreateVM dispatches to the synchronous path (no image-ref) or the
// asynchronous image-pull path (image-ref present), per §4.3.
func (o *Orchestrator) CreateVM(ctx context.Context, req CreateVMRequest) (*store.VM, *store.Job, error) {
	if req.ImageRef != nil {
		vm, job, err := o.createAsync(ctx, req)
		return vm, job, err
	}
	vm, err := o.createSync(ctx, req)
	return vm, nil, err
}

func (o *Orchestrator) createSync(ctx context.Context, req CreateVMRequest) (*store.VM, error) {
	host, err := o.PickHost(ctx)
	if err != nil {
		return nil, err
	}
	kernel, initramfs, cmdline, err := o.resolveBootSource(ctx, req.BootSourceID)
	if err != nil {
		return nil, err
	}

	vmID := uuid.NewString()
	hostID := host.ID
	vm := store.VM{
		ID:              vmID,
		Name:            req.Name,
		Hypervisor:      "cloud-hypervisor",
		BootVCPUs:       req.BootVCPUs,
		MaxVCPUs:        req.MaxVCPUs,
		MemorySizeMiB:   req.MemorySizeMiB,
		MemoryShared:    req.MemoryShared,
		MemoryHugepages: req.MemoryHugepages,
		MemoryPrefault:  req.MemoryPrefault,
		BootSourceID:    req.BootSourceID,
		Status:          store.VMCreated,
		HostID:          &hostID,
	}

	var created store.VM
	err = o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var txErr error
		created, txErr = tx.CreateVM(ctx, vm)
		if txErr != nil {
			return txErr
		}
		for _, nic := range req.Networks {
			nic.VMID = vmID
			if _, txErr = tx.CreateNetworkInterface(ctx, nic); txErr != nil {
				return txErr
			}
		}

		client, clientErr := o.clientFor(ctx, host)
		if clientErr != nil {
			return clientErr
		}
		config := buildVMConfig(vmID, req, kernel, initramfs, cmdline)
		if _, rpcErr := client.CreateVM(ctx, config); rpcErr != nil {
			return wrap(KindNodeCreateFailed, fmt.Errorf("qarax-node: %w", rpcErr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (o *Orchestrator) createAsync(ctx context.Context, req CreateVMRequest) (*store.VM, *store.Job, error) {
	host, err := o.PickHost(ctx)
	if err != nil {
		return nil, nil, err
	}

	vmID := uuid.NewString()
	hostID := host.ID
	vm := store.VM{
		ID:            vmID,
		Name:          req.Name,
		Hypervisor:    "cloud-hypervisor",
		BootVCPUs:     req.BootVCPUs,
		MaxVCPUs:      req.MaxVCPUs,
		MemorySizeMiB: req.MemorySizeMiB,
		ImageRef:      req.ImageRef,
		Status:        store.VMPending,
		HostID:        &hostID,
	}

	var created store.VM
	err = o.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var txErr error
		created, txErr = tx.CreateVM(ctx, vm)
		return txErr
	})
	if err != nil {
		return nil, nil, err
	}

	job, err := o.store.CreateJob(ctx, store.Job{Type: store.JobImagePull, VMID: vmID, Status: store.JobPending})
	if err != nil {
		return nil, nil, err
	}

	go o.runImagePullCreate(context.WithoutCancel(ctx), created, host, job, req)

	return &created, &job, nil
}

// runImagePullCreate is the async create background task described in
// §4.3's numbered steps 1-7.
func (o *Orchestrator) runImagePullCreate(ctx context.Context, vm store.VM, host store.Host, job store.Job, req CreateVMRequest) {
	fail := func(err error) {
		o.log.Error("async create failed", "vm_id", vm.ID, "error", err)
		_ = o.store.FailJob(ctx, job.ID, err.Error())
		_ = o.store.UpdateVMStatus(ctx, vm.ID, store.VMUnknown)
	}

	client, err := o.clientFor(ctx, host)
	if err != nil {
		fail(err)
		return
	}

	_ = o.store.UpdateJobProgress(ctx, job.ID, 0)

	pulled, err := client.PullImage(ctx, *req.ImageRef)
	if err != nil {
		fail(fmt.Errorf("pull-image: %w", err))
		return
	}
	_ = o.store.UpdateJobProgress(ctx, job.ID, 50)

	config := o.buildAsyncVMConfig(vm.ID, req, pulled.RootPath)
	if _, err := client.CreateVM(ctx, config); err != nil {
		fail(fmt.Errorf("create-vm: %w", err))
		return
	}

	digest := pulled.Digest
	imageRef := pulled.ImageRef
	if _, err := o.store.CreateFilesystem(ctx, store.Filesystem{
		VMID:     vm.ID,
		Tag:      "rootfs",
		ImageRef: &imageRef,
		Digest:   &digest,
	}); err != nil {
		o.log.Warn("persist filesystem row failed", "vm_id", vm.ID, "error", err)
	}

	_ = o.store.UpdateVMStatus(ctx, vm.ID, store.VMCreated)
	_ = o.store.CompleteJob(ctx, job.ID, digest)
}

// buildVMConfig translates a synchronous-create request into the
// node-agent's wire config.
func buildVMConfig(vmID string, req CreateVMRequest, kernel string, initramfs *string, cmdline string) vmmanager.VMConfig {
	cmdlineCopy := cmdline
	return vmmanager.VMConfig{
		VMID: vmID,
		CPUs: &vmmanager.CPUsConfig{
			BootVCPUs: uint8(req.BootVCPUs),
			MaxVCPUs:  uint8(req.MaxVCPUs),
		},
		Memory: &vmmanager.MemoryConfig{
			Size:      req.MemorySizeMiB * 1024 * 1024,
			Shared:    req.MemoryShared,
			Hugepages: req.MemoryHugepages,
			Prefault:  req.MemoryPrefault,
		},
		Payload: vmmanager.PayloadConfig{
			Kernel:    &kernel,
			Initramfs: initramfs,
			Cmdline:   &cmdlineCopy,
		},
		Networks: toNetConfigs(req.Networks),
	}
}

// toNetConfigs translates the persisted NIC rows into the node agent's
// wire NetConfig, leaving Tap nil so the manager allocates a deterministic
// tap device per §4.1's create() step 1.
func toNetConfigs(nics []store.NetworkInterface) []vmmanager.NetConfig {
	return lo.Map(nics, func(n store.NetworkInterface, i int) vmmanager.NetConfig {
		var mtu *uint16
		if n.MTU != nil {
			v := uint16(*n.MTU)
			mtu = &v
		}
		return vmmanager.NetConfig{
			ID:        n.DeviceID,
			IP:        n.IP,
			Mask:      n.Mask,
			Mac:       n.MAC,
			MTU:       mtu,
			VhostUser: n.Type == store.NetDeviceVhostUser,
		}
	})
}

// buildAsyncVMConfig builds the config for the image-pull create path:
// a single virtiofs rootfs device, shared memory, and the fixed OCI-boot
// cmdline, per §4.3 step 4. Boots the node's configured default kernel
// (OCI-booted VMs never name a boot source).
func (o *Orchestrator) buildAsyncVMConfig(vmID string, req CreateVMRequest, rootPath string) vmmanager.VMConfig {
	cmdline := "console=ttyS0 root=rootfs rootfstype=virtiofs rw init=/.qarax-init"
	cfg := buildVMConfig(vmID, req, o.defaultKernelPath, nil, cmdline)
	cfg.Memory.Shared = true
	cfg.FS = []vmmanager.FsConfig{{
		ID:            "rootfs",
		Tag:           "rootfs",
		BootstrapPath: &rootPath,
	}}
	return cfg
}
