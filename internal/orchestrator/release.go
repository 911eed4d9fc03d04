package orchestrator

import (
	"context"
	"sync"
)

// Handle is a caller's claim on a resident worker. It keeps the worker from
// being evicted (unless forced) until Release.
type Handle struct {
	Alias      string
	InstanceID string
	Kind       WorkerKind
	BaseURL    string
	PID        int

	o    *Orchestrator
	inst *Instance
	once sync.Once
}

// Release drops the claim. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() { h.o.releaseInstance(h.inst) })
}

// Begin enters the worker's concurrency gate. The returned func leaves it.
// Once the worker has been found unhealthy Begin fails with WorkerUnhealthy,
// including for callers that were already queued at the gate.
func (h *Handle) Begin(ctx context.Context) (func(), error) {
	if err := h.o.failure(h.inst); err != nil {
		return nil, err
	}
	done, err := h.inst.gate.begin(ctx, h.Alias)
	if err != nil {
		return nil, err
	}
	if err := h.o.failure(h.inst); err != nil {
		done()
		return nil, err
	}
	return done, nil
}

func (o *Orchestrator) failure(inst *Instance) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return inst.failure
}

func (o *Orchestrator) newHandle(inst *Instance) *Handle {
	return &Handle{
		Alias:      inst.Alias,
		InstanceID: inst.ID,
		Kind:       inst.Spec.Kind,
		BaseURL:    inst.BaseURL,
		PID:        inst.PID,
		o:          o,
		inst:       inst,
	}
}

func (o *Orchestrator) claimLocked(inst *Instance) *Handle {
	inst.Inflight++
	inst.Requests++
	inst.State = StateServing
	o.touchLocked(inst)
	o.observeLocked()
	return o.newHandle(inst)
}

// touchLocked moves LastActivity forward, never back.
func (o *Orchestrator) touchLocked(inst *Instance) {
	if now := o.now(); now.After(inst.LastActivity) {
		inst.LastActivity = now
	}
}

// Release drops one in-flight claim on alias's current instance. Prefer
// Handle.Release, which cannot hit a newer instance of the same alias.
func (o *Orchestrator) Release(alias string) {
	o.mu.Lock()
	inst := o.instances[alias]
	o.mu.Unlock()
	if inst != nil {
		o.releaseInstance(inst)
	}
}

func (o *Orchestrator) releaseInstance(inst *Instance) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if inst.Inflight > 0 {
		inst.Inflight--
	}
	o.touchLocked(inst)
	if inst.Inflight > 0 {
		return
	}
	switch inst.State {
	case StateServing:
		inst.State = StateIdle
		o.observeLocked()
	case StateEvicting:
		o.finalizeLocked(inst)
	}
}

// ReportFailure tells the orchestrator that a request to h's worker failed at
// the transport level. That instance is force-evicted so the next Acquire
// spawns a fresh one; ReportFailure returns once its process is gone.
func (o *Orchestrator) ReportFailure(ctx context.Context, h *Handle, cause error) {
	o.mu.Lock()
	inst := o.instances[h.Alias]
	if inst == nil || inst.ID != h.InstanceID {
		o.mu.Unlock()
		return
	}
	if inst.State != StateEvicting {
		inst.failure = ErrWorkerUnhealthy(inst.Alias, cause)
		o.log.Warn().Err(cause).Str("alias", inst.Alias).Int("pid", inst.PID).Msg("orchestrator event=worker_unhealthy")
		o.publish("worker_unhealthy", inst.Alias, map[string]any{"instance": inst.ID, "error": errString(cause)})
		o.beginEvictLocked(inst, "unhealthy")
	}
	stopped := inst.stopped
	o.mu.Unlock()
	select {
	case <-stopped:
	case <-ctx.Done():
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
