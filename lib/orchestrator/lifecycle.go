package orchestrator

import (
	"context"

	"github.com/qarax-project/qarax/lib/rpc"
	"github.com/qarax-project/qarax/lib/store"
)

// hostFor looks up the VM's assigned host, failing with a deterministic
// error if none is set, per §4.3's lifecycle-routing rule.
func (o *Orchestrator) hostFor(ctx context.Context, vmID string) (store.VM, store.Host, error) {
	vm, err := o.store.GetVM(ctx, vmID)
	if err != nil {
		return store.VM{}, store.Host{}, wrap(KindNotFound, err)
	}
	if vm.HostID == nil {
		return vm, store.Host{}, wrap(KindHostUnassigned, ErrHostUnassigned)
	}
	host, err := o.store.GetHost(ctx, *vm.HostID)
	if err != nil {
		return vm, store.Host{}, wrap(KindNotFound, err)
	}
	return vm, host, nil
}

// StartVM rejects pause->start (guidance: use resume) and pending->start
// (job not finished); otherwise issues start-VM on the assigned host.
func (o *Orchestrator) StartVM(ctx context.Context, vmID string) error {
	vm, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return err
	}
	switch vm.Status {
	case store.VMPaused:
		return wrap(KindInvalidTransition, ErrUsePause)
	case store.VMPending:
		return wrap(KindInvalidTransition, ErrJobNotFinished)
	}

	client, err := o.clientFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.StartVM(ctx, vmID); err != nil {
		return err
	}
	return o.store.UpdateVMStatus(ctx, vmID, store.VMRunning)
}

func (o *Orchestrator) StopVM(ctx context.Context, vmID string) error {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.StopVM(ctx, vmID); err != nil {
		return err
	}
	return o.store.UpdateVMStatus(ctx, vmID, store.VMShutdown)
}

func (o *Orchestrator) PauseVM(ctx context.Context, vmID string) error {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.PauseVM(ctx, vmID); err != nil {
		return err
	}
	return o.store.UpdateVMStatus(ctx, vmID, store.VMPaused)
}

func (o *Orchestrator) ResumeVM(ctx context.Context, vmID string) error {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.ResumeVM(ctx, vmID); err != nil {
		return err
	}
	return o.store.UpdateVMStatus(ctx, vmID, store.VMRunning)
}

func (o *Orchestrator) DeleteVM(ctx context.Context, vmID string) error {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.DeleteVM(ctx, vmID); err != nil {
		return err
	}
	return o.store.DeleteVM(ctx, vmID)
}

// Metrics is GetMetrics's result: the per-device counter map plus the
// hypervisor-reported actual memory usage, per spec.md:192's
// {vm_id, status, memory_actual_size, counters} shape.
type Metrics struct {
	Counters         map[string]map[string]int64
	MemoryActualSize *int64
}

func (o *Orchestrator) GetMetrics(ctx context.Context, vmID string) (*Metrics, error) {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return nil, err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return nil, err
	}
	resp, err := client.GetCounters(ctx, vmID)
	if err != nil {
		return nil, err
	}
	return &Metrics{Counters: resp.Counters, MemoryActualSize: resp.MemoryActualSize}, nil
}

// Console opens the bidirectional attach-console stream to the VM's
// assigned node agent.
func (o *Orchestrator) Console(ctx context.Context, vmID string) (*rpc.ConsoleClientStream, error) {
	_, host, err := o.hostFor(ctx, vmID)
	if err != nil {
		return nil, err
	}
	client, err := o.clientFor(ctx, host)
	if err != nil {
		return nil, err
	}
	return client.AttachConsole(ctx, vmID)
}
