package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"visiond/pkg/types"
)

// behavior scripts one alias's fake worker.
type behavior struct {
	loadDelay    time.Duration
	neverHealthy bool
	crash        bool
	launchErr    error
	ignoreTerm   bool
	handler      http.HandlerFunc
}

// fakeLauncher starts httptest servers instead of processes and tracks the
// memory of workers that are physically alive.
type fakeLauncher struct {
	mu         sync.Mutex
	behaviors  map[string]behavior
	launches   map[string]int
	workers    []*fakeWorker
	nextPID    int
	liveMB     int
	capacityMB int
	violations []string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{behaviors: map[string]behavior{}, launches: map[string]int{}, nextPID: 1000}
}

func (fl *fakeLauncher) set(alias string, b behavior) {
	fl.mu.Lock()
	fl.behaviors[alias] = b
	fl.mu.Unlock()
}

func (fl *fakeLauncher) Launch(ctx context.Context, spec WorkerSpec) (Process, error) {
	fl.mu.Lock()
	b := fl.behaviors[spec.Alias]
	fl.launches[spec.Alias]++
	if b.launchErr != nil {
		fl.mu.Unlock()
		return nil, b.launchErr
	}
	if fl.capacityMB > 0 && fl.liveMB+spec.MemoryMB > fl.capacityMB {
		fl.violations = append(fl.violations, fmt.Sprintf("launch %s with %d MB live of %d", spec.Alias, fl.liveMB, fl.capacityMB))
	}
	fl.liveMB += spec.MemoryMB
	fl.nextPID++
	w := &fakeWorker{alias: spec.Alias, pid: fl.nextPID, memMB: spec.MemoryMB, ignoreTerm: b.ignoreTerm, fl: fl, exited: make(chan struct{})}
	fl.workers = append(fl.workers, w)
	fl.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		if !w.healthy.Load() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})
	h := b.handler
	if h == nil {
		h = func(rw http.ResponseWriter, r *http.Request) {
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"alias": w.alias, "pid": w.pid, "path": r.URL.Path})
		}
	}
	mux.HandleFunc("/", h)
	w.srv = httptest.NewServer(mux)

	switch {
	case b.crash:
		go w.exit(errors.New("exit status 1"))
	case b.neverHealthy:
	case b.loadDelay > 0:
		time.AfterFunc(b.loadDelay, func() { w.healthy.Store(true) })
	default:
		w.healthy.Store(true)
	}
	return w, nil
}

func (fl *fakeLauncher) launchCount(alias string) int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.launches[alias]
}

func (fl *fakeLauncher) last(alias string) *fakeWorker {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	for i := len(fl.workers) - 1; i >= 0; i-- {
		if fl.workers[i].alias == alias {
			return fl.workers[i]
		}
	}
	return nil
}

func (fl *fakeLauncher) live() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.liveMB
}

type fakeWorker struct {
	alias      string
	pid        int
	memMB      int
	ignoreTerm bool
	fl         *fakeLauncher
	srv        *httptest.Server
	healthy    atomic.Bool
	exited     chan struct{}
	once       sync.Once
	exitErr    error
	terms      atomic.Int32
}

func (w *fakeWorker) PID() int                { return w.pid }
func (w *fakeWorker) BaseURL() string         { return w.srv.URL }
func (w *fakeWorker) Exited() <-chan struct{} { return w.exited }
func (w *fakeWorker) ExitErr() error          { return w.exitErr }
func (w *fakeWorker) OutputTail() string      { return "fake worker " + w.alias }

func (w *fakeWorker) Terminate() error {
	w.terms.Add(1)
	if !w.ignoreTerm {
		w.exit(nil)
	}
	return nil
}

func (w *fakeWorker) Kill() error {
	w.exit(errors.New("signal: killed"))
	return nil
}

func (w *fakeWorker) exit(err error) {
	w.once.Do(func() {
		w.exitErr = err
		w.healthy.Store(false)
		w.srv.CloseClientConnections()
		go w.srv.Close()
		w.fl.mu.Lock()
		w.fl.liveMB -= w.memMB
		w.fl.mu.Unlock()
		close(w.exited)
	})
}

func (w *fakeWorker) isExited() bool {
	select {
	case <-w.exited:
		return true
	default:
		return false
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func vlm(alias string, mb int) WorkerSpec {
	return WorkerSpec{
		Alias:          alias,
		Kind:           KindVLM,
		MemoryMB:       mb,
		StartupTimeout: 2 * time.Second,
		HealthInterval: 10 * time.Millisecond,
	}
}

// newTestOrchestrator wires fl into cfg and shuts the orchestrator down at
// test end.
func newTestOrchestrator(t *testing.T, cfg Config, fl *fakeLauncher) *Orchestrator {
	t.Helper()
	cfg.Launcher = fl
	if cfg.Prober == nil {
		cfg.Prober = NewProber(nil, 500*time.Millisecond)
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 50 * time.Millisecond
	}
	if cfg.BudgetMB > 0 {
		fl.capacityMB = cfg.BudgetMB - cfg.MarginMB
	}
	o, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func acquireT(t *testing.T, o *Orchestrator, alias string) *Handle {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := o.Acquire(ctx, alias)
	require.NoError(t, err, "acquire %s", alias)
	return h
}

func workerStatus(o *Orchestrator, alias string) (types.WorkerStatus, bool) {
	for _, w := range o.Status().Workers {
		if w.Alias == alias {
			return w, true
		}
	}
	return types.WorkerStatus{}, false
}
