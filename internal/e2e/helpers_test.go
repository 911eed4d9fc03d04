package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"visiond/internal/config"
	"visiond/internal/httpapi"
	"visiond/internal/orchestrator"
	"visiond/internal/registry"
	"visiond/internal/router"
)

// memLauncher runs every worker as an in-process httptest server that echoes
// the request it got. When hold is set, inference calls block until it closes.
type memLauncher struct {
	mu       sync.Mutex
	launches map[string]int
	hold     chan struct{}
	pid      int
}

func newMemLauncher() *memLauncher { return &memLauncher{launches: map[string]int{}} }

func (l *memLauncher) Launch(ctx context.Context, spec orchestrator.WorkerSpec) (orchestrator.Process, error) {
	l.mu.Lock()
	l.launches[spec.Alias]++
	l.pid++
	pid := 7000 + l.pid
	hold := l.hold
	l.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"alias": spec.Alias, "path": r.URL.Path, "request": body})
	})
	return &memProcess{pid: pid, srv: httptest.NewServer(mux), exited: make(chan struct{})}, nil
}

func (l *memLauncher) count(alias string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches[alias]
}

type memProcess struct {
	pid    int
	srv    *httptest.Server
	exited chan struct{}
	once   sync.Once
}

func (p *memProcess) PID() int                { return p.pid }
func (p *memProcess) BaseURL() string         { return p.srv.URL }
func (p *memProcess) Exited() <-chan struct{} { return p.exited }
func (p *memProcess) ExitErr() error          { return nil }
func (p *memProcess) OutputTail() string      { return "" }
func (p *memProcess) Kill() error             { return p.Terminate() }

func (p *memProcess) Terminate() error {
	p.once.Do(func() {
		p.srv.CloseClientConnections()
		go p.srv.Close()
		close(p.exited)
	})
	return nil
}

// testConfig registers the three stock aliases with fixed sizes:
// vlm-fast 1.5 GB, vlm-best 4.5 GB and image-gen 6 GB.
func testConfig(budgetGB, marginGB float64) config.Config {
	cfg := config.Default()
	cfg.Memory.BudgetGB = budgetGB
	cfg.Memory.SafetyMarginGB = marginGB
	for alias, m := range cfg.Models {
		m.Port = 0
		cfg.Models[alias] = m
	}
	cfg.Workers.StateDir = ""
	return cfg
}

type stack struct {
	srv      *httptest.Server
	orch     *orchestrator.Orchestrator
	launcher *memLauncher
}

func newStack(t *testing.T, cfg config.Config, launcher *memLauncher) *stack {
	t.Helper()
	specs, err := registry.Build(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	orch, err := orchestrator.New(orchestrator.Config{
		Specs:         specs,
		BudgetMB:      cfg.BudgetMB(),
		MarginMB:      cfg.MarginMB(),
		IdleTimeout:   time.Hour,
		GracePeriod:   100 * time.Millisecond,
		MaxConcurrent: cfg.Workers.MaxConcurrent,
		MaxQueueDepth: cfg.Workers.MaxQueueDepth,
		MaxWait:       config.Seconds(cfg.Workers.MaxWaitSeconds),
		Launcher:      launcher,
		Prober:        orchestrator.NewProber(nil, time.Second),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	httpapi.SetAPIKey("")
	httpapi.SetMaxBodyBytes(int64(cfg.Gateway.MaxBodyMB) << 20)
	httpapi.SetBaseContext(context.Background())
	httpapi.SetGatewayRoutes(httpapi.GatewayRoutes{})
	rt := router.New(orch, router.WithTimeout(10*time.Second))
	srv := httptest.NewServer(httpapi.NewMux(httpapi.Backend{Orchestrator: orch, Router: rt}))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, orch: orch, launcher: launcher}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// echoed decodes the worker echo and returns the alias and path it served.
func echoed(t *testing.T, body []byte) (alias, path string, req map[string]any) {
	t.Helper()
	var out struct {
		Alias   string         `json:"alias"`
		Path    string         `json:"path"`
		Request map[string]any `json:"request"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode worker echo: %v body=%s", err, body)
	}
	return out.Alias, out.Path, out.Request
}
