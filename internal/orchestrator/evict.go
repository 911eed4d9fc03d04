package orchestrator

import (
	"context"
	"time"
)

// Evict stops alias's worker. It reports whether a worker was running.
//
// Without force, a worker with requests in flight or still starting is left
// alone and EvictionRefused is returned. With force, a starting worker's
// spawn is canceled and a busy worker is stopped under its requests. Evict
// returns once the instance has left the registry or ctx ends; in the latter
// case the eviction still completes in the background.
func (o *Orchestrator) Evict(ctx context.Context, alias string, force bool) (bool, error) {
	reason := "manual"
	if force {
		reason = "forced"
	}
	return o.evict(ctx, alias, force, reason, nil)
}

// evict is Evict with an optional predicate re-checked under the lock right
// before the eviction starts.
func (o *Orchestrator) evict(ctx context.Context, alias string, force bool, reason string, cond func(*Instance) bool) (bool, error) {
	if _, ok := o.specs[alias]; !ok {
		return false, ErrUnknownAlias(alias)
	}
	for {
		o.mu.Lock()
		inst := o.instances[alias]
		if inst == nil {
			o.mu.Unlock()
			return false, nil
		}
		if cond != nil && !cond(inst) {
			o.mu.Unlock()
			return false, nil
		}
		switch {
		case inst.State == StateStarting:
			if !force {
				o.mu.Unlock()
				return false, ErrEvictionRefused(alias, inst.State, inst.Inflight)
			}
			inst.cancelStart()
			ready := inst.ready
			o.mu.Unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			if inst.startErr != nil {
				return true, nil
			}
			continue
		case inst.State == StateEvicting:
			gone := inst.gone
			o.mu.Unlock()
			select {
			case <-gone:
				return true, nil
			case <-ctx.Done():
				return true, ctx.Err()
			}
		case inst.Inflight > 0 && !force:
			o.mu.Unlock()
			return false, ErrEvictionRefused(alias, inst.State, inst.Inflight)
		}
		o.beginEvictLocked(inst, reason)
		gone := inst.gone
		o.mu.Unlock()
		select {
		case <-gone:
			return true, nil
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// beginEvictLocked moves inst to evicting, excludes its memory from
// admission and starts terminating its process.
func (o *Orchestrator) beginEvictLocked(inst *Instance, reason string) {
	if inst.State == StateEvicting {
		return
	}
	inst.State = StateEvicting
	inst.evictReason = reason
	o.acct.MarkReleasing(inst.Alias)
	o.evictionsTotal++
	evictions.WithLabelValues(inst.Alias, reason).Inc()
	o.log.Info().Str("alias", inst.Alias).Str("reason", reason).Int("pid", inst.PID).Int("inflight", inst.Inflight).
		Msg("orchestrator event=evict_start")
	o.publish("evict_start", inst.Alias, map[string]any{"instance": inst.ID, "reason": reason, "inflight": inst.Inflight})
	o.observeLocked()
	o.wg.Add(1)
	go o.terminate(inst)
}

// terminate stops inst's process, then frees its memory.
func (o *Orchestrator) terminate(inst *Instance) {
	defer o.wg.Done()
	start := time.Now()
	killed := false
	if inst.proc != nil {
		killed = stopProcess(inst.proc, o.cfg.GracePeriod)
	}
	o.pids.remove(inst.Alias)

	o.mu.Lock()
	freed := o.acct.Release(inst.Alias)
	inst.procGone = true
	close(inst.stopped)
	o.finalizeLocked(inst)
	o.observeLocked()
	o.mu.Unlock()

	o.log.Info().Str("alias", inst.Alias).Str("reason", inst.evictReason).Int("freed_mb", freed).Bool("killed", killed).
		Int64("dur_ms", time.Since(start).Milliseconds()).Msg("orchestrator event=evict_done")
	o.publish("evict_done", inst.Alias, map[string]any{"instance": inst.ID, "freed_mb": freed, "killed": killed})
}

// finalizeLocked removes an evicting instance once its process is gone and no
// request holds it.
func (o *Orchestrator) finalizeLocked(inst *Instance) {
	if inst.removed || !inst.procGone || inst.Inflight > 0 {
		return
	}
	inst.removed = true
	if o.instances[inst.Alias] == inst {
		delete(o.instances, inst.Alias)
	}
	close(inst.gone)
}
