package orchestrator

import (
	"sort"

	"visiond/pkg/types"
)

// Status builds the report served at /status.
func (o *Orchestrator) Status() types.StatusResponse {
	host, hostErr := o.cfg.HostMemory()
	if hostErr != nil {
		o.log.Debug().Err(hostErr).Msg("host memory unavailable")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	resp := types.StatusResponse{
		BudgetMB:    o.cfg.BudgetMB,
		MarginMB:    o.cfg.MarginMB,
		UsedMB:      o.acct.Used(),
		ReleasingMB: o.acct.Releasing(),
		FreeMB:      o.acct.Free(),
		Config: types.StatusConfig{
			IdleTimeoutSeconds:  int64(o.cfg.IdleTimeout.Seconds()),
			ReaperPeriodSeconds: int64(o.cfg.ReaperPeriod.Seconds()),
			MaxRequests:         o.cfg.MaxRequests,
			MaxConcurrent:       o.cfg.MaxConcurrent,
			SafetyMarginGB:      mbToGB(o.cfg.MarginMB),
		},
		UptimeSeconds:      int64(now.Sub(o.startedAt).Seconds()),
		ServerTimeUnix:     now.Unix(),
		SpawnsTotal:        o.spawnsTotal,
		EvictionsTotal:     o.evictionsTotal,
		StartFailuresTotal: o.startFailures,
	}
	if o.cfg.BudgetMB <= 0 {
		resp.FreeMB = 0
	}
	resp.BudgetGB = mbToGB(resp.BudgetMB)
	resp.UsedGB = mbToGB(resp.UsedMB)
	resp.FreeGB = mbToGB(resp.FreeMB)
	if hostErr == nil {
		resp.Host = &types.HostMemory{
			TotalGB:        mbToGB(host.TotalMB),
			UsedGB:         mbToGB(host.UsedMB()),
			AvailableGB:    mbToGB(host.AvailableMB),
			UsedPercent:    host.UsedPercent(),
			ModelsLoadedGB: mbToGB(resp.UsedMB + resp.ReleasingMB),
		}
	}

	resp.Workers = make([]types.WorkerStatus, 0, len(o.instances))
	for _, inst := range o.instances {
		switch inst.State {
		case StateStarting:
			resp.WarmupsInProgress++
		case StateEvicting:
			resp.EvictingCount++
		}
		resp.Workers = append(resp.Workers, types.WorkerStatus{
			Alias:            inst.Alias,
			InstanceID:       inst.ID,
			Kind:             string(inst.Spec.Kind),
			State:            string(inst.State),
			PID:              inst.PID,
			Port:             inst.Port,
			ModelPath:        inst.Spec.ModelPath,
			ReservedMB:       inst.ReservedMB,
			MemoryGB:         mbToGB(inst.ReservedMB),
			Inflight:         inst.Inflight,
			Queued:           inst.gate.queued(),
			RequestCount:     inst.Requests,
			UptimeSeconds:    int64(now.Sub(inst.CreatedAt).Seconds()),
			IdleSeconds:      int64(now.Sub(inst.LastActivity).Seconds()),
			LastActivityUnix: inst.LastActivity.Unix(),
			HealthFailures:   inst.HealthFailures,
			LastHealthErr:    inst.LastHealthErr,
		})
	}
	sort.Slice(resp.Workers, func(i, j int) bool { return resp.Workers[i].Alias < resp.Workers[j].Alias })
	return resp
}

// mbToGB converts to GB rounded to two decimals.
func mbToGB(mb int) float64 {
	return float64(mb*100/1024) / 100
}
