package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Reaper periodically evicts idle workers and checks resident workers'
// health. It acts only through the orchestrator.
type Reaper struct {
	o      *Orchestrator
	period time.Duration
	log    zerolog.Logger
}

// Reaper returns the orchestrator's reaper, ticking every ReaperPeriod.
func (o *Orchestrator) Reaper() *Reaper {
	return &Reaper{o: o, period: o.cfg.ReaperPeriod, log: o.log.With().Str("component", "reaper").Logger()}
}

// Run ticks until ctx ends. It always returns nil.
func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.period)
	defer t.Stop()
	r.log.Debug().Dur("period", r.period).Msg("reaper event=start")
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("reaper event=stop")
			return nil
		case <-t.C:
			r.o.ReapOnce(ctx)
			r.o.CheckHealth(ctx)
		}
	}
}

// ReapOnce evicts idle resident workers whose last activity is at least
// IdleTimeout old, and idle workers that reached MaxRequests. Busy workers
// are skipped. All evictions start together; ReapOnce then waits for them
// to finish or for ctx to end. It returns the evicted aliases.
func (o *Orchestrator) ReapOnce(ctx context.Context) []string {
	now := o.now()
	reason := func(inst *Instance) string {
		if !inst.State.Resident() || inst.Inflight > 0 {
			return ""
		}
		switch {
		case now.Sub(inst.LastActivity) >= o.cfg.IdleTimeout:
			return "idle"
		case o.cfg.MaxRequests > 0 && inst.Requests >= o.cfg.MaxRequests:
			return "recycle"
		}
		return ""
	}

	var evicted []string
	var gone []chan struct{}
	o.mu.Lock()
	for alias, inst := range o.instances {
		r := reason(inst)
		if r == "" {
			continue
		}
		o.beginEvictLocked(inst, r)
		evicted = append(evicted, alias)
		gone = append(gone, inst.gone)
	}
	o.mu.Unlock()
	sort.Strings(evicted)

	for _, g := range gone {
		select {
		case <-g:
		case <-ctx.Done():
			return evicted
		}
	}
	return evicted
}

// CheckHealth probes every idle resident worker once. A worker that fails
// UnhealthyThreshold consecutive probes is force-evicted and re-spawned on
// the next Acquire. Workers with requests in flight are not probed; a
// failing request reports them through ReportFailure instead.
func (o *Orchestrator) CheckHealth(ctx context.Context) []string {
	type target struct{ alias, id, url string }
	var targets []target
	o.mu.Lock()
	for alias, inst := range o.instances {
		if inst.State.Resident() && inst.Inflight == 0 {
			targets = append(targets, target{alias, inst.ID, inst.BaseURL + inst.Spec.HealthPath})
		}
	}
	o.mu.Unlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].alias < targets[j].alias })

	var evicted []string
	for _, t := range targets {
		if ctx.Err() != nil {
			return evicted
		}
		err := o.prober.Check(ctx, t.url)
		o.mu.Lock()
		inst := o.instances[t.alias]
		if inst == nil || inst.ID != t.id || !inst.State.Resident() {
			o.mu.Unlock()
			continue
		}
		inst.LastHealthAt = o.now()
		if err == nil {
			inst.HealthFailures = 0
			inst.LastHealthErr = ""
			o.mu.Unlock()
			continue
		}
		inst.HealthFailures++
		inst.LastHealthErr = err.Error()
		o.log.Warn().Err(err).Str("alias", t.alias).Int("failures", inst.HealthFailures).Msg("reaper event=health_failed")
		if inst.HealthFailures >= o.cfg.UnhealthyThreshold && inst.Inflight == 0 {
			inst.failure = ErrWorkerUnhealthy(t.alias, err)
			o.log.Warn().Err(inst.failure).Msg("orchestrator event=worker_unhealthy")
			o.publish("worker_unhealthy", t.alias, map[string]any{"instance": inst.ID, "error": err.Error()})
			o.beginEvictLocked(inst, "unhealthy")
			evicted = append(evicted, t.alias)
		}
		o.mu.Unlock()
	}
	return evicted
}
