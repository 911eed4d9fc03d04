package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a worker instance. An alias without an
// instance in the registry is absent.
type State string

const (
	StateAbsent   State = "absent"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateServing  State = "serving"
	StateIdle     State = "idle"
	StateEvicting State = "evicting"
)

// Resident reports whether the state has a healthy process that can take requests.
func (s State) Resident() bool {
	switch s {
	case StateReady, StateServing, StateIdle:
		return true
	}
	return false
}

// WorkerKind selects launch arguments and gateway routing. Lifecycle logic
// never branches on it.
type WorkerKind string

const (
	KindVLM       WorkerKind = "vlm"
	KindDiffusion WorkerKind = "diffusion"
)

// ParseKind accepts vlm and diffusion, case-insensitively.
func ParseKind(s string) (WorkerKind, error) {
	switch k := WorkerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindVLM, KindDiffusion:
		return k, nil
	}
	return "", fmt.Errorf("unknown worker type %q (want vlm or diffusion)", s)
}

// WorkerSpec is the static description of one worker alias.
type WorkerSpec struct {
	Alias string
	Kind  WorkerKind
	// Command overrides the default launch command. The orchestrator appends
	// --alias, --port and --model_path.
	Command   []string
	ModelPath string
	// Port is the fixed listen port; 0 picks a free one at launch.
	Port           int
	MemoryMB       int
	StartupTimeout time.Duration
	HealthPath     string
	HealthInterval time.Duration
	// Env entries (KEY=VALUE) added to the inherited environment.
	Env     []string
	WorkDir string
}

// Instance is the runtime record of one spawned worker. Exported fields are
// guarded by the orchestrator mutex; copies handed out by the orchestrator
// are snapshots.
type Instance struct {
	ID             string
	Alias          string
	Spec           WorkerSpec
	State          State
	PID            int
	Port           int
	BaseURL        string
	ReservedMB     int
	CreatedAt      time.Time
	LastActivity   time.Time
	Inflight       int
	Requests       int
	LastHealthAt   time.Time
	LastHealthErr  string
	HealthFailures int

	proc        Process
	gate        *gate
	cancelStart context.CancelFunc
	evictReason string
	startErr    error         // set before ready is closed
	failure     error         // set when evicted as unhealthy
	ready       chan struct{} // closed when startup resolves either way
	stopped     chan struct{} // closed once the process is gone and memory released
	gone        chan struct{} // closed once removed from the registry
	procGone    bool
	removed     bool
}

func newInstance(id string, spec WorkerSpec, g *gate, now time.Time) *Instance {
	return &Instance{
		ID:           id,
		Alias:        spec.Alias,
		Spec:         spec,
		State:        StateStarting,
		ReservedMB:   spec.MemoryMB,
		CreatedAt:    now,
		LastActivity: now,
		gate:         g,
		ready:        make(chan struct{}),
		stopped:      make(chan struct{}),
		gone:         make(chan struct{}),
	}
}
