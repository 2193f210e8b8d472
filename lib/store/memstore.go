package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store, used by tests and local runs that
// don't wire a real database. Guarded by a single mutex, mirroring the
// rest of this module's "one mutex, short critical sections" idiom.
type MemStore struct {
	mu sync.Mutex

	hosts      map[string]Host
	vms        map[string]VM
	nics       map[string][]NetworkInterface
	filesystems map[string][]Filesystem
	bootSources map[string]BootSource
	jobs       map[string]Job
	transfers  map[string]Transfer
}

// NewMemStore returns an empty MemStore. Seed bootSources directly via
// SeedBootSource before serving requests; the real store would populate
// these from the boot-source catalog CRUD, out of scope here.
func NewMemStore() *MemStore {
	return &MemStore{
		hosts:       make(map[string]Host),
		vms:         make(map[string]VM),
		nics:        make(map[string][]NetworkInterface),
		filesystems: make(map[string][]Filesystem),
		bootSources: make(map[string]BootSource),
		jobs:        make(map[string]Job),
		transfers:   make(map[string]Transfer),
	}
}

func (s *MemStore) SeedBootSource(bs BootSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bootSources[bs.ID] = bs
}

func (s *MemStore) CreateHost(ctx context.Context, h Host) (Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HostUnknown
	}
	s.hosts[h.ID] = h
	return h, nil
}

func (s *MemStore) GetHost(ctx context.Context, id string) (Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return Host{}, ErrNotFound
	}
	return h, nil
}

func (s *MemStore) ListHosts(ctx context.Context) ([]Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out, nil
}

func (s *MemStore) UpdateHostStatus(ctx context.Context, id string, status HostStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return ErrNotFound
	}
	h.Status = status
	s.hosts[id] = h
	return nil
}

func (s *MemStore) UpdateHostProbe(ctx context.Context, id string, hypervisorVersion, kernelVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hosts[id]
	if !ok {
		return ErrNotFound
	}
	h.HypervisorVersion = hypervisorVersion
	h.KernelVersion = kernelVersion
	s.hosts[id] = h
	return nil
}

func (s *MemStore) CreateVM(ctx context.Context, vm VM) (VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vm.ID == "" {
		vm.ID = uuid.NewString()
	}
	if vm.Status == "" {
		vm.Status = VMPending
	}
	s.vms[vm.ID] = vm
	return vm, nil
}

func (s *MemStore) GetVM(ctx context.Context, id string) (VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[id]
	if !ok {
		return VM{}, ErrNotFound
	}
	return vm, nil
}

func (s *MemStore) ListVMs(ctx context.Context) ([]VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VM, 0, len(s.vms))
	for _, vm := range s.vms {
		out = append(out, vm)
	}
	return out, nil
}

func (s *MemStore) ListVMsNotStatus(ctx context.Context, status VMStatus) ([]VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VM, 0, len(s.vms))
	for _, vm := range s.vms {
		if vm.Status != status {
			out = append(out, vm)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateVMStatus(ctx context.Context, id string, status VMStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[id]
	if !ok {
		return ErrNotFound
	}
	vm.Status = status
	s.vms[id] = vm
	return nil
}

func (s *MemStore) AssignVMHost(ctx context.Context, id, hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vm, ok := s.vms[id]
	if !ok {
		return ErrNotFound
	}
	vm.HostID = &hostID
	s.vms[id] = vm
	return nil
}

func (s *MemStore) DeleteVM(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vms[id]; !ok {
		return ErrNotFound
	}
	delete(s.vms, id)
	delete(s.nics, id)
	delete(s.filesystems, id)
	return nil
}

func (s *MemStore) CreateNetworkInterface(ctx context.Context, nic NetworkInterface) (NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nics[nic.VMID] = append(s.nics[nic.VMID], nic)
	return nic, nil
}

func (s *MemStore) ListNetworkInterfaces(ctx context.Context, vmID string) ([]NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NetworkInterface(nil), s.nics[vmID]...), nil
}

func (s *MemStore) CreateFilesystem(ctx context.Context, fs Filesystem) (Filesystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filesystems[fs.VMID] = append(s.filesystems[fs.VMID], fs)
	return fs, nil
}

func (s *MemStore) ListFilesystems(ctx context.Context, vmID string) ([]Filesystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Filesystem(nil), s.filesystems[vmID]...), nil
}

func (s *MemStore) GetBootSource(ctx context.Context, id string) (BootSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.bootSources[id]
	if !ok {
		return BootSource{}, ErrNotFound
	}
	return bs, nil
}

func (s *MemStore) ListBootSources(ctx context.Context) ([]BootSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BootSource, 0, len(s.bootSources))
	for _, bs := range s.bootSources {
		out = append(out, bs)
	}
	return out, nil
}

func (s *MemStore) CreateJob(ctx context.Context, j Job) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobPending
	}
	now := time.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	s.jobs[j.ID] = j
	return j, nil
}

func (s *MemStore) GetJob(ctx context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (s *MemStore) ListJobsForVM(ctx context.Context, vmID string) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Job{}
	for _, j := range s.jobs {
		if j.VMID == vmID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Progress = progress
	j.Status = JobRunning
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *MemStore) CompleteJob(ctx context.Context, id string, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = JobCompleted
	j.Progress = 100
	j.Result = &result
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *MemStore) FailJob(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = JobFailed
	j.Error = &errMsg
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *MemStore) CreateTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TransferPending
	}
	s.transfers[t.ID] = t
	return t, nil
}

func (s *MemStore) GetTransfer(ctx context.Context, id string) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return t, nil
}

// memTx is a MemStore wrapper that records every write it performs so
// WithTx can undo them on rollback. Reads pass straight through to the
// underlying MemStore (acceptable for an in-memory stand-in: there's no
// concurrent writer to isolate from within a single WithTx call, since
// MemStore already serializes all access behind one mutex).
type memTx struct {
	*MemStore
	undo []func()
}

func (s *MemStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{MemStore: s}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (tx *memTx) CreateVM(ctx context.Context, vm VM) (VM, error) {
	created, err := tx.MemStore.CreateVM(ctx, vm)
	if err == nil {
		id := created.ID
		tx.undo = append(tx.undo, func() { _ = tx.MemStore.DeleteVM(ctx, id) })
	}
	return created, err
}

func (tx *memTx) CreateNetworkInterface(ctx context.Context, nic NetworkInterface) (NetworkInterface, error) {
	created, err := tx.MemStore.CreateNetworkInterface(ctx, nic)
	if err == nil {
		vmID := created.VMID
		tx.undo = append(tx.undo, func() {
			tx.MemStore.mu.Lock()
			defer tx.MemStore.mu.Unlock()
			nics := tx.MemStore.nics[vmID]
			for i, n := range nics {
				if n.DeviceID == created.DeviceID {
					tx.MemStore.nics[vmID] = append(nics[:i], nics[i+1:]...)
					break
				}
			}
		})
	}
	return created, err
}
