//go:build integration

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFakeWorker(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_worker")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_worker.go")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build fake worker: %s", out)
	return bin
}

func TestIntegration_SpawnServeEvict(t *testing.T) {
	bin := buildFakeWorker(t)
	spec := WorkerSpec{
		Alias:          "vlm-fast",
		Kind:           KindVLM,
		Command:        []string{bin},
		ModelPath:      "vikhyatk/moondream2",
		MemoryMB:       1536,
		StartupTimeout: 10 * time.Second,
		HealthInterval: 50 * time.Millisecond,
		Env:            []string{"FAKE_WORKER_LOAD_MS=300"},
	}
	logDir := t.TempDir()
	o, err := New(Config{
		Specs:    []WorkerSpec{spec},
		BudgetMB: 8192,
		StateDir: t.TempDir(),
		Launcher: NewExecLauncher("127.0.0.1", "", logDir, nil),
	})
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	h, err := o.Acquire(ctx, "vlm-fast")
	require.NoError(t, err)

	resp, err := http.Post(h.BaseURL+"/chat", "application/json", bytes.NewBufferString(`{"messages":[]}`))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "vlm-fast", body["alias"])
	h.Release()

	evicted, err := o.Evict(ctx, "vlm-fast", false)
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, StateAbsent, o.State("vlm-fast"))
	assert.FileExists(t, filepath.Join(logDir, "vlm-fast.log"))
}

func TestIntegration_EarlyExitReportsOutput(t *testing.T) {
	bin := buildFakeWorker(t)
	spec := WorkerSpec{
		Alias:          "image-gen",
		Kind:           KindDiffusion,
		Command:        []string{bin},
		MemoryMB:       6144,
		StartupTimeout: 10 * time.Second,
		HealthInterval: 50 * time.Millisecond,
		Env:            []string{"FAKE_WORKER_EXIT=2"},
	}
	o, err := New(Config{Specs: []WorkerSpec{spec}, BudgetMB: 16384})
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	_, err = o.Acquire(context.Background(), "image-gen")
	require.Equal(t, ReasonCrashed, StartupFailureReason(err), "got %v", err)
	assert.Contains(t, err.Error(), "exiting with 2")
	assert.Equal(t, 0, o.Status().UsedMB)
}

func TestIntegration_GraceThenKill(t *testing.T) {
	bin := buildFakeWorker(t)
	spec := WorkerSpec{
		Alias:          "vlm-best",
		Kind:           KindVLM,
		Command:        []string{bin},
		MemoryMB:       4608,
		StartupTimeout: 10 * time.Second,
		HealthInterval: 50 * time.Millisecond,
		Env:            []string{"FAKE_WORKER_IGNORE_TERM=1"},
	}
	pub := NewMemoryPublisher()
	o, err := New(Config{Specs: []WorkerSpec{spec}, BudgetMB: 16384, GracePeriod: 200 * time.Millisecond, Publisher: pub})
	require.NoError(t, err)
	defer o.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	h, err := o.Acquire(ctx, "vlm-best")
	require.NoError(t, err)
	h.Release()

	ok, err := o.Evict(ctx, "vlm-best", false)
	require.NoError(t, err)
	require.True(t, ok)
	var killed any
	for _, e := range pub.Events() {
		if e.Name == "evict_done" {
			killed = e.Fields["killed"]
		}
	}
	assert.Equal(t, true, killed)
}
