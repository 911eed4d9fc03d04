package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"visiond/internal/common/fsutil"
)

const pidSuffix = ".pid.json"

type pidRecord struct {
	Alias       string `json:"alias"`
	InstanceID  string `json:"instance_id"`
	PID         int    `json:"pid"`
	Port        int    `json:"port"`
	StartedUnix int64  `json:"started_unix"`
}

// pidStore keeps one file per running worker so that a restarted daemon can
// find processes its predecessor left behind. A nil store is a no-op.
type pidStore struct {
	dir string
}

func newPIDStore(dir string) *pidStore {
	if dir == "" {
		return nil
	}
	return &pidStore{dir: dir}
}

func (s *pidStore) path(alias string) string { return filepath.Join(s.dir, alias+pidSuffix) }

func (s *pidStore) record(inst *Instance) {
	if s == nil {
		return
	}
	if err := fsutil.EnsureDir(s.dir); err != nil {
		return
	}
	b, err := json.Marshal(pidRecord{
		Alias:       inst.Alias,
		InstanceID:  inst.ID,
		PID:         inst.PID,
		Port:        inst.Port,
		StartedUnix: inst.CreatedAt.Unix(),
	})
	if err != nil {
		return
	}
	tmp := s.path(inst.Alias) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, s.path(inst.Alias))
}

func (s *pidStore) remove(alias string) {
	if s == nil {
		return
	}
	_ = os.Remove(s.path(alias))
}

func (s *pidStore) load() ([]pidRecord, error) {
	if s == nil {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []pidRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), pidSuffix) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var rec pidRecord
		if err := json.Unmarshal(b, &rec); err != nil || rec.PID <= 0 {
			_ = os.Remove(filepath.Join(s.dir, e.Name()))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Reconcile stops worker processes recorded by a previous run that are still
// alive and clears their pid files. Call it once at boot, before serving.
// It returns the number of processes stopped.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	recs, err := o.pids.load()
	if err != nil {
		return 0, err
	}
	stopped := 0
	for _, rec := range recs {
		if processAlive(rec.PID) {
			o.log.Warn().Str("alias", rec.Alias).Int("pid", rec.PID).Int("port", rec.Port).Msg("orchestrator event=reconcile_kill")
			o.publish("reconcile_kill", rec.Alias, map[string]any{"pid": rec.PID})
			_ = signalGroup(rec.PID, syscall.SIGTERM)
			if !waitDead(ctx, rec.PID, o.cfg.GracePeriod) {
				_ = signalGroup(rec.PID, syscall.SIGKILL)
				waitDead(ctx, rec.PID, o.cfg.GracePeriod)
			}
			stopped++
		}
		o.pids.remove(rec.Alias)
	}
	return stopped, nil
}

// processAlive reports whether pid exists and can be signaled by us.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// waitDead polls until pid is gone or d elapses.
func waitDead(ctx context.Context, pid int, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
	return !processAlive(pid)
}
