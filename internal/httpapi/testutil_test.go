package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"visiond/internal/orchestrator"
	"visiond/internal/router"
	"visiond/pkg/types"
)

type evictCall struct {
	alias string
	force bool
}

type mockService struct {
	specs      []orchestrator.WorkerSpec
	status     types.StatusResponse
	ready      bool
	forwardErr error
	block      bool
	evicted    bool
	evictErr   error

	mu     sync.Mutex
	calls  []router.Call
	evicts []evictCall
}

func newMockService() *mockService {
	return &mockService{
		ready: true,
		specs: []orchestrator.WorkerSpec{
			{Alias: "image-gen", Kind: orchestrator.KindDiffusion, MemoryMB: 6144},
			{Alias: "vlm-best", Kind: orchestrator.KindVLM, MemoryMB: 4608},
			{Alias: "vlm-fast", Kind: orchestrator.KindVLM, MemoryMB: 1536},
		},
	}
}

func (m *mockService) Specs() []orchestrator.WorkerSpec {
	return append([]orchestrator.WorkerSpec(nil), m.specs...)
}
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) Evict(ctx context.Context, alias string, force bool) (bool, error) {
	m.mu.Lock()
	m.evicts = append(m.evicts, evictCall{alias, force})
	m.mu.Unlock()
	return m.evicted, m.evictErr
}

func (m *mockService) Forward(ctx context.Context, call router.Call, w http.ResponseWriter) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.forwardErr != nil {
		return m.forwardErr
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{"alias": call.Alias, "path": call.Path})
}

func (m *mockService) lastCall() (router.Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return router.Call{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// lastBody decodes the worker payload of the most recent forward.
func (m *mockService) lastBody() map[string]any {
	c, ok := m.lastCall()
	if !ok {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(c.Body, &out)
	return out
}
