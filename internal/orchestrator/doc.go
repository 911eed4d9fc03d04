// Package orchestrator owns the worker processes behind the gateway: it keeps
// the registry of instances, accounts their memory against the host budget,
// spawns and health-checks workers on demand and evicts them when idle or
// when room is needed. It is structured into small files by concern:
//
//   - orchestrator.go: Orchestrator type, constructor, simple getters, Shutdown.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: State, WorkerKind, WorkerSpec, Instance.
//   - errors.go: error kinds and predicates (IsUnknownAlias, IsTooBusy, ...).
//   - memory.go: Accountant, the budget ledger.
//   - process.go: Launcher/Process and the exec-based launcher.
//   - prober.go: startup and liveness health probes.
//   - acquire.go: Acquire, admission, victim selection, spawn.
//   - release.go: Handle, Release, ReportFailure.
//   - evict.go: Evict and process termination.
//   - gate.go: per-worker concurrency gate with a bounded wait queue.
//   - reaper.go: idle eviction, request-count recycling, liveness pass.
//   - reconcile.go: pid files and boot-time cleanup of leftover workers.
//   - status.go: Status reporting.
//   - metrics.go: Prometheus collectors.
//   - events.go: lifecycle events for an optional EventPublisher.
//
// All registry and accountant state is guarded by one mutex. Launching a
// process and waiting for it to become healthy happen outside that mutex.
package orchestrator
