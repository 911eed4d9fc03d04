package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Orchestrator is the single owner of the worker registry and the memory
// ledger. Every state transition happens through its methods.
type Orchestrator struct {
	cfg       Config
	log       zerolog.Logger
	launcher  Launcher
	prober    *Prober
	publisher EventPublisher
	now       func() time.Time
	pids      *pidStore
	startedAt time.Time

	// spawn and terminate goroutines are bound to baseCtx
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	specs   map[string]WorkerSpec
	aliases []string // sorted

	mu             sync.Mutex
	instances      map[string]*Instance
	acct           *Accountant
	closed         bool
	spawnsTotal    uint64
	evictionsTotal uint64
	startFailures  uint64
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// New validates cfg, applies defaults and returns an Orchestrator with an
// empty registry.
func New(cfg Config) (*Orchestrator, error) {
	cfg.applyDefaults()
	o := &Orchestrator{
		cfg:       cfg,
		log:       zerolog.Nop(),
		prober:    cfg.Prober,
		publisher: cfg.Publisher,
		now:       cfg.Now,
		pids:      newPIDStore(cfg.StateDir),
		specs:     make(map[string]WorkerSpec, len(cfg.Specs)),
		instances: make(map[string]*Instance),
		acct:      NewAccountant(cfg.BudgetMB, cfg.MarginMB),
	}
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "orchestrator").Logger()
	}
	for _, s := range cfg.Specs {
		if !aliasPattern.MatchString(s.Alias) {
			return nil, fmt.Errorf("invalid worker alias %q", s.Alias)
		}
		if _, dup := o.specs[s.Alias]; dup {
			return nil, fmt.Errorf("duplicate worker alias %q", s.Alias)
		}
		if s.MemoryMB < 0 {
			return nil, fmt.Errorf("worker %s: negative memory", s.Alias)
		}
		if _, err := ParseKind(string(s.Kind)); err != nil {
			return nil, fmt.Errorf("worker %s: %w", s.Alias, err)
		}
		o.specs[s.Alias] = s
		o.aliases = append(o.aliases, s.Alias)
	}
	sort.Strings(o.aliases)
	o.launcher = cfg.Launcher
	if o.launcher == nil {
		o.launcher = NewExecLauncher("", "", "", cfg.Logger)
	}
	if o.prober == nil {
		o.prober = NewProber(nil, 0)
	}
	o.baseCtx, o.cancel = context.WithCancel(context.Background())
	o.startedAt = o.now()
	budgetGauge.Set(float64(cfg.BudgetMB))
	capacityGauge.Set(float64(o.acct.Capacity()))
	return o, nil
}

// Spec returns the spec for alias.
func (o *Orchestrator) Spec(alias string) (WorkerSpec, bool) {
	s, ok := o.specs[alias]
	return s, ok
}

// Specs returns every configured spec sorted by alias.
func (o *Orchestrator) Specs() []WorkerSpec {
	out := make([]WorkerSpec, 0, len(o.aliases))
	for _, a := range o.aliases {
		out = append(out, o.specs[a])
	}
	return out
}

// State returns the current lifecycle state of alias.
func (o *Orchestrator) State(alias string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if inst := o.instances[alias]; inst != nil {
		return inst.State
	}
	return StateAbsent
}

// Ready reports whether the orchestrator accepts work.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

// Shutdown stops accepting work, cancels startups in progress and stops every
// worker. In-flight requests are not waited for; their workers are killed
// after the grace period.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()
	o.log.Info().Msg("orchestrator event=shutdown_start")
	// cancels spawn goroutines; their instances clean themselves up
	o.cancel()

	o.mu.Lock()
	var stopping []*Instance
	for _, inst := range o.instances {
		if inst.State.Resident() {
			o.beginEvictLocked(inst, "shutdown")
		}
		stopping = append(stopping, inst)
	}
	o.mu.Unlock()

	for _, inst := range stopping {
		select {
		case <-inst.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	go func() { o.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	o.log.Info().Msg("orchestrator event=shutdown_done")
	return nil
}
