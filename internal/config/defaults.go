package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAddr      = ":8000"
	DefaultAdminAddr = "127.0.0.1:8100"

	DefaultBudgetGB       = 24.0
	DefaultSafetyMarginGB = 4.0

	DefaultChatFallbackAlias = "vlm-fast"
	DefaultImageAlias        = "image-gen"
	DefaultVisionFastAlias   = "vlm-fast"
	DefaultVisionBestAlias   = "vlm-best"
	DefaultMaxBodyMB         = 50
)

// Default returns a configuration with every default applied and the three
// stock aliases registered.
func Default() Config {
	cfg := Config{
		Models: map[string]ModelConfig{
			"vlm-fast":  {Type: "vlm", Path: "vikhyatk/moondream2", Port: 8001},
			"vlm-best":  {Type: "vlm", Path: "Qwen/Qwen2.5-VL-7B-Instruct", Port: 8002},
			"image-gen": {Type: "diffusion", Path: "black-forest-labs/FLUX.1-schnell", Port: 8003},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unspecified values.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.AdminAddr == "" {
		c.AdminAddr = DefaultAdminAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Memory.BudgetGB == 0 {
		c.Memory.BudgetGB = DefaultBudgetGB
	}
	if c.Memory.SafetyMarginGB == 0 {
		c.Memory.SafetyMarginGB = DefaultSafetyMarginGB
	}

	w := &c.Workers
	setInt(&w.IdleTimeoutSeconds, 300)
	setInt(&w.ReaperPeriodSeconds, 30)
	setInt(&w.StartupTimeoutSeconds, 120)
	setInt(&w.HealthIntervalMS, 1000)
	setInt(&w.HealthTimeoutSeconds, 5)
	setInt(&w.GracePeriodSeconds, 5)
	setInt(&w.RequestTimeoutSeconds, 300)
	setInt(&w.MaxConcurrent, 1)
	setInt(&w.MaxQueueDepth, 32)
	setInt(&w.MaxWaitSeconds, 30)
	setInt(&w.UnhealthyThreshold, 3)
	if w.Python == "" {
		w.Python = "python3"
	}
	if w.Host == "" {
		w.Host = "127.0.0.1"
	}
	if w.LogDir == "" {
		w.LogDir = "~/.visiond/logs"
	}
	if w.StateDir == "" {
		w.StateDir = "~/.visiond/run"
	}

	g := &c.Gateway
	if g.ChatFallbackAlias == "" {
		g.ChatFallbackAlias = DefaultChatFallbackAlias
	}
	if g.ImageAlias == "" {
		g.ImageAlias = DefaultImageAlias
	}
	if g.VisionFastAlias == "" {
		g.VisionFastAlias = DefaultVisionFastAlias
	}
	if g.VisionBestAlias == "" {
		g.VisionBestAlias = DefaultVisionBestAlias
	}
	setInt(&g.MaxBodyMB, DefaultMaxBodyMB)
	setInt(&g.ChatTimeoutSeconds, 60)
	setInt(&g.VisionTimeoutSeconds, 120)
	setInt(&g.ImageTimeoutSeconds, 300)
}

func setInt(p *int, v int) {
	if *p == 0 {
		*p = v
	}
}

// Validate reports every problem in the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.Memory.BudgetGB < 0 {
		errs = append(errs, fmt.Errorf("memory.budget_gb must be >= 0"))
	}
	if c.Memory.SafetyMarginGB < 0 {
		errs = append(errs, fmt.Errorf("memory.safety_margin_gb must be >= 0"))
	}
	if c.Memory.BudgetGB > 0 && c.Memory.SafetyMarginGB >= c.Memory.BudgetGB {
		errs = append(errs, fmt.Errorf("memory.safety_margin_gb (%.1f) must be below memory.budget_gb (%.1f)", c.Memory.SafetyMarginGB, c.Memory.BudgetGB))
	}
	if c.Workers.MaxConcurrent < 0 || c.Workers.MaxQueueDepth < 0 || c.Workers.MaxRequests < 0 {
		errs = append(errs, fmt.Errorf("workers limits must be >= 0"))
	}
	if len(c.Models) == 0 {
		errs = append(errs, fmt.Errorf("no models configured"))
	}
	ports := map[int]string{}
	for _, alias := range c.Aliases() {
		m := c.Models[alias]
		switch strings.ToLower(m.Type) {
		case "vlm", "diffusion":
		default:
			errs = append(errs, fmt.Errorf("models.%s.type %q must be vlm or diffusion", alias, m.Type))
		}
		if m.Path == "" && len(m.Command) == 0 {
			errs = append(errs, fmt.Errorf("models.%s needs a path or a command", alias))
		}
		if m.MemoryGB < 0 {
			errs = append(errs, fmt.Errorf("models.%s.memory_gb must be >= 0", alias))
		}
		if m.Port < 0 || m.Port > 65535 {
			errs = append(errs, fmt.Errorf("models.%s.port %d out of range", alias, m.Port))
		}
		if m.Port != 0 {
			if other, dup := ports[m.Port]; dup {
				errs = append(errs, fmt.Errorf("models.%s.port %d already used by %s", alias, m.Port, other))
			}
			ports[m.Port] = alias
		}
	}
	return errors.Join(errs...)
}

// Aliases returns configured model aliases in sorted order.
func (c Config) Aliases() []string {
	out := make([]string, 0, len(c.Models))
	for a := range c.Models {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// BudgetMB is the memory budget in MB.
func (c Config) BudgetMB() int { return GBToMB(c.Memory.BudgetGB) }

// MarginMB is the safety margin in MB.
func (c Config) MarginMB() int { return GBToMB(c.Memory.SafetyMarginGB) }

// GBToMB converts decimal gigabytes to whole megabytes, rounding up.
func GBToMB(gb float64) int {
	if gb <= 0 {
		return 0
	}
	mb := gb * 1024
	n := int(mb)
	if float64(n) < mb {
		n++
	}
	return n
}

// Seconds converts a seconds setting to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ApplyEnv overrides values from VISIOND_* environment variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	str("VISIOND_ADDR", &c.Addr)
	str("VISIOND_ADMIN_ADDR", &c.AdminAddr)
	str("VISIOND_API_KEY", &c.APIKey)
	str("VISIOND_LOG_LEVEL", &c.LogLevel)
	str("VISIOND_LOG_FORMAT", &c.LogFormat)
	flt("VISIOND_MEMORY_BUDGET_GB", &c.Memory.BudgetGB)
	flt("VISIOND_SAFETY_MARGIN_GB", &c.Memory.SafetyMarginGB)
	num("VISIOND_IDLE_TIMEOUT_SECONDS", &c.Workers.IdleTimeoutSeconds)
	num("VISIOND_REAPER_PERIOD_SECONDS", &c.Workers.ReaperPeriodSeconds)
	num("VISIOND_STARTUP_TIMEOUT_SECONDS", &c.Workers.StartupTimeoutSeconds)
	num("VISIOND_MAX_CONCURRENT", &c.Workers.MaxConcurrent)
	num("VISIOND_MAX_REQUESTS", &c.Workers.MaxRequests)
	str("VISIOND_PYTHON", &c.Workers.Python)
	str("VISIOND_LOG_DIR", &c.Workers.LogDir)
	str("VISIOND_STATE_DIR", &c.Workers.StateDir)
	return errors.Join(errs...)
}
