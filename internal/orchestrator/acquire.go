package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Acquire returns a handle on a healthy worker for alias, spawning it first
// if needed. The caller must Release the handle exactly once.
//
// Concurrent callers for the same alias share one spawn. A caller whose ctx
// ends while waiting gets ctx.Err(); the spawn continues for the others.
func (o *Orchestrator) Acquire(ctx context.Context, alias string) (*Handle, error) {
	spec, ok := o.specs[alias]
	if !ok {
		return nil, ErrUnknownAlias(alias)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, ErrShuttingDown
		}
		inst := o.instances[alias]
		if inst == nil {
			inst, err := o.admitLocked(spec)
			o.mu.Unlock()
			if err != nil {
				o.log.Warn().Err(err).Str("alias", alias).Msg("orchestrator event=admission_refused")
				admissionRefusals.Inc()
				return nil, err
			}
			return o.awaitStart(ctx, inst)
		}

		switch {
		case inst.State.Resident():
			h := o.claimLocked(inst)
			o.mu.Unlock()
			return h, nil
		case inst.State == StateStarting:
			ready := inst.ready
			o.mu.Unlock()
			select {
			case <-ready:
				if err := inst.startErr; err != nil {
					return nil, err
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			// evicting: wait it out, then spawn a fresh instance
			gone := inst.gone
			o.mu.Unlock()
			select {
			case <-gone:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// admitLocked makes room for spec, reserves its memory and starts the spawn.
// The new instance carries one in-flight claim for the caller.
func (o *Orchestrator) admitLocked(spec WorkerSpec) (*Instance, error) {
	if spec.MemoryMB > o.acct.Capacity() {
		return nil, ErrResourceExhausted(spec.Alias, spec.MemoryMB, o.acct.Capacity())
	}
	if !o.acct.CanFit(spec) {
		need := spec.MemoryMB - o.acct.Free()
		victims, freed := selectVictims(o.evictableLocked(spec.Alias), need)
		if freed < need {
			return nil, ErrResourceExhausted(spec.Alias, spec.MemoryMB, o.acct.Free()+freed)
		}
		for _, v := range victims {
			o.log.Info().Str("alias", v.Alias).Str("for", spec.Alias).Int("reserved_mb", v.ReservedMB).
				Time("last_activity", v.LastActivity).Msg("orchestrator event=evict_lru")
			o.beginEvictLocked(v, "admission")
		}
	}

	// the new process must not start before memory being released is free
	var waitFor []*Instance
	for _, other := range o.instances {
		if other.State == StateEvicting && !other.procGone {
			waitFor = append(waitFor, other)
		}
	}
	if err := o.acct.Reserve(spec); err != nil {
		return nil, err
	}

	now := o.now()
	inst := newInstance(uuid.NewString(), spec, newGate(o.cfg.MaxConcurrent, o.cfg.MaxQueueDepth, o.cfg.MaxWait), now)
	inst.Inflight = 1
	inst.Requests = 1
	o.instances[spec.Alias] = inst
	o.spawnsTotal++

	ctx, cancel := context.WithCancel(o.baseCtx)
	inst.cancelStart = cancel
	o.wg.Add(1)
	go o.spawn(ctx, inst, waitFor)
	o.observeLocked()
	return inst, nil
}

// evictableLocked lists idle resident instances other than target, least
// recently active first, ties broken by alias.
func (o *Orchestrator) evictableLocked(target string) []*Instance {
	var out []*Instance
	for alias, inst := range o.instances {
		if alias == target || !inst.State.Resident() || inst.Inflight > 0 {
			continue
		}
		out = append(out, inst)
	}
	sortLRU(out)
	return out
}

func sortLRU(list []*Instance) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.Before(b.LastActivity)
		}
		return a.Alias < b.Alias
	})
}

// selectVictims takes candidates in order until needMB is covered. When the
// candidates cannot cover it, freed is less than needMB and nothing should
// be evicted.
func selectVictims(candidates []*Instance, needMB int) (victims []*Instance, freed int) {
	for _, c := range candidates {
		if freed >= needMB {
			break
		}
		victims = append(victims, c)
		freed += c.ReservedMB
	}
	return victims, freed
}

// awaitStart waits for the instance this caller admitted.
func (o *Orchestrator) awaitStart(ctx context.Context, inst *Instance) (*Handle, error) {
	select {
	case <-inst.ready:
	case <-ctx.Done():
		o.releaseInstance(inst)
		return nil, ctx.Err()
	}
	if inst.startErr != nil {
		return nil, inst.startErr
	}
	return o.newHandle(inst), nil
}

// spawn launches inst's process and waits for it to become healthy.
func (o *Orchestrator) spawn(ctx context.Context, inst *Instance, waitFor []*Instance) {
	defer o.wg.Done()
	start := time.Now()
	spec := inst.Spec
	o.log.Info().Str("alias", spec.Alias).Int("reserved_mb", spec.MemoryMB).Int("waiting_evictions", len(waitFor)).
		Msg("orchestrator event=spawn_start")
	o.publish("spawn_start", spec.Alias, map[string]any{"instance": inst.ID, "reserved_mb": spec.MemoryMB})

	for _, v := range waitFor {
		select {
		case <-v.stopped:
		case <-ctx.Done():
			o.failStart(inst, nil, ErrWorkerStartupFailed(spec.Alias, ReasonCanceled, ctx.Err()))
			return
		}
	}

	proc, err := o.launcher.Launch(ctx, spec)
	if err != nil {
		reason := ReasonLaunch
		if ctx.Err() != nil {
			reason = ReasonCanceled
		}
		o.failStart(inst, nil, ErrWorkerStartupFailed(spec.Alias, reason, err))
		return
	}
	o.mu.Lock()
	inst.proc = proc
	inst.PID = proc.PID()
	inst.BaseURL = proc.BaseURL()
	inst.Port = portOf(inst.BaseURL)
	o.mu.Unlock()
	o.pids.record(inst)
	o.log.Info().Str("alias", spec.Alias).Int("pid", inst.PID).Int("port", inst.Port).Msg("orchestrator event=spawn_launched")

	err = o.prober.WaitReady(ctx, ProbeTarget{
		Alias:    spec.Alias,
		URL:      inst.BaseURL + spec.HealthPath,
		Exited:   proc.Exited(),
		Interval: spec.HealthInterval,
	}, spec.StartupTimeout)
	if err != nil {
		if StartupFailureReason(err) == ReasonCrashed {
			<-proc.Exited()
			err = ErrWorkerStartupFailed(spec.Alias, ReasonCrashed,
				fmt.Errorf("exit: %v; output tail: %s", proc.ExitErr(), proc.OutputTail()))
		}
		o.failStart(inst, proc, err)
		return
	}

	o.mu.Lock()
	if o.closed || ctx.Err() != nil {
		o.mu.Unlock()
		o.failStart(inst, proc, ErrWorkerStartupFailed(spec.Alias, ReasonCanceled, context.Canceled))
		return
	}
	if inst.Inflight > 0 {
		inst.State = StateServing
	} else {
		inst.State = StateReady
	}
	inst.LastHealthAt = o.now()
	close(inst.ready)
	o.observeLocked()
	o.mu.Unlock()

	dur := time.Since(start)
	coldStartSeconds.WithLabelValues(spec.Alias).Observe(dur.Seconds())
	spawnResults.WithLabelValues(spec.Alias, "ready").Inc()
	o.log.Info().Str("alias", spec.Alias).Int("pid", inst.PID).Str("url", inst.BaseURL).Int64("dur_ms", dur.Milliseconds()).
		Msg("orchestrator event=spawn_ready")
	o.publish("spawn_ready", spec.Alias, map[string]any{"instance": inst.ID, "pid": inst.PID, "url": inst.BaseURL})

	o.wg.Add(1)
	go o.watchExit(inst, proc)
}

// failStart abandons a startup: the process (if any) is killed, the memory
// released and every waiter receives err.
func (o *Orchestrator) failStart(inst *Instance, proc Process, err error) {
	if proc != nil {
		_ = proc.Kill()
		<-proc.Exited()
	}
	o.pids.remove(inst.Alias)

	o.mu.Lock()
	o.acct.Release(inst.Alias)
	inst.startErr = err
	inst.procGone = true
	inst.State = StateAbsent
	if o.instances[inst.Alias] == inst {
		delete(o.instances, inst.Alias)
	}
	inst.removed = true
	o.startFailures++
	close(inst.ready)
	close(inst.stopped)
	close(inst.gone)
	o.observeLocked()
	o.mu.Unlock()

	spawnResults.WithLabelValues(inst.Alias, "failed").Inc()
	o.log.Warn().Err(err).Str("alias", inst.Alias).Str("reason", string(StartupFailureReason(err))).Msg("orchestrator event=spawn_failed")
	o.publish("spawn_failed", inst.Alias, map[string]any{"instance": inst.ID, "reason": string(StartupFailureReason(err)), "error": err.Error()})
}

// watchExit force-evicts a resident worker whose process dies on its own.
func (o *Orchestrator) watchExit(inst *Instance, proc Process) {
	defer o.wg.Done()
	<-proc.Exited()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.instances[inst.Alias] != inst || !inst.State.Resident() {
		return
	}
	o.log.Warn().Str("alias", inst.Alias).Int("pid", inst.PID).AnErr("exit", proc.ExitErr()).Msg("orchestrator event=worker_exited")
	o.publish("worker_exited", inst.Alias, map[string]any{"instance": inst.ID, "pid": inst.PID})
	o.beginEvictLocked(inst, "exited")
}

func portOf(baseURL string) int {
	u, err := url.Parse(baseURL)
	if err != nil {
		return 0
	}
	p, _ := strconv.Atoi(u.Port())
	return p
}
