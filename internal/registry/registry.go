package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"visiond/internal/common/fsutil"
	"visiond/internal/config"
	"visiond/internal/orchestrator"
)

// knownModels maps model ids to their approximate resident memory in GB.
var knownModels = map[string]float64{
	"mlx-community/moondream2":                   1.5,
	"mlx-community/Qwen2.5-VL-3B-Instruct-4bit":  2.5,
	"mlx-community/Qwen2.5-VL-7B-Instruct-4bit":  4.5,
	"mlx-community/Qwen2.5-VL-14B-Instruct-4bit": 8.0,
	"mlx-community/FLUX.1-schnell-4bit-mlx":      6.0,
	"mlx-community/FLUX.1-dev-4bit-mlx":          12.0,
	"Qwen/Qwen-Image-2512":                       20.0,

	// Upstream checkpoints of the same models.
	"vikhyatk/moondream2":              1.5,
	"Qwen/Qwen2.5-VL-3B-Instruct":      2.5,
	"Qwen/Qwen2.5-VL-7B-Instruct":      4.5,
	"Qwen/Qwen2.5-VL-14B-Instruct":     8.0,
	"black-forest-labs/FLUX.1-schnell": 6.0,
	"black-forest-labs/FLUX.1-dev":     12.0,
}

// sizeHints are checked in order against the lowercased model path.
var sizeHints = []struct {
	marker string
	gb     float64
}{
	{"14b", 8.0},
	{"7b", 4.5},
	{"3b", 2.5},
	{"2b", 1.5},
	{"1b", 1.5},
}

// EstimateMemoryGB guesses the footprint of modelPath when the config does not
// state one. Known ids win, then parameter-count markers, then a per-kind default.
func EstimateMemoryGB(modelPath string, kind orchestrator.WorkerKind) float64 {
	if gb, ok := knownModels[modelPath]; ok {
		return gb
	}
	for id, gb := range knownModels {
		if strings.EqualFold(id, modelPath) {
			return gb
		}
	}
	lower := strings.ToLower(modelPath)
	for _, h := range sizeHints {
		if strings.Contains(lower, h.marker) {
			return h.gb
		}
	}
	if kind == orchestrator.KindDiffusion {
		return 8.0
	}
	return 3.0
}

// Build turns the models section of cfg into worker specs, sorted by alias.
func Build(cfg config.Config) ([]orchestrator.WorkerSpec, error) {
	aliases := make([]string, 0, len(cfg.Models))
	for a := range cfg.Models {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	specs := make([]orchestrator.WorkerSpec, 0, len(aliases))
	for _, alias := range aliases {
		m := cfg.Models[alias]
		kind, err := orchestrator.ParseKind(m.Type)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", alias, err)
		}
		path := m.Path
		if fsutil.IsLocalPath(path) {
			if path, err = fsutil.ExpandHome(path); err != nil {
				return nil, fmt.Errorf("model %s: %w", alias, err)
			}
		}
		gb := m.MemoryGB
		if gb <= 0 {
			gb = EstimateMemoryGB(m.Path, kind)
		}
		startup := m.StartupTimeoutSeconds
		if startup <= 0 {
			startup = cfg.Workers.StartupTimeoutSeconds
		}
		workDir := m.WorkDir
		if workDir == "" {
			workDir = cfg.Workers.WorkDir
		}
		if workDir != "" {
			if workDir, err = fsutil.ExpandHome(workDir); err != nil {
				return nil, fmt.Errorf("model %s: %w", alias, err)
			}
		}
		specs = append(specs, orchestrator.WorkerSpec{
			Alias:          alias,
			Kind:           kind,
			Command:        append([]string(nil), m.Command...),
			ModelPath:      path,
			Port:           m.Port,
			MemoryMB:       config.GBToMB(gb),
			StartupTimeout: config.Seconds(startup),
			HealthPath:     m.HealthPath,
			HealthInterval: time.Duration(cfg.Workers.HealthIntervalMS) * time.Millisecond,
			Env:            envList(m.Env),
			WorkDir:        workDir,
		})
	}
	return specs, nil
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
