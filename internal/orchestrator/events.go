package orchestrator

import "time"

// Event is an orchestrator lifecycle event: spawn_start, spawn_ready,
// spawn_failed, evict_start, evict_done, worker_exited, worker_unhealthy,
// reconcile_kill.
type Event struct {
	Name   string
	Alias  string
	Time   time.Time
	Fields map[string]any
}

// EventPublisher receives events from the orchestrator. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (o *Orchestrator) publish(name, alias string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	o.publisher.Publish(Event{Name: name, Alias: alias, Time: o.now(), Fields: fields})
}
