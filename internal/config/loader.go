package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	AdminAddr string `json:"admin_addr" yaml:"admin_addr" toml:"admin_addr"`
	APIKey    string `json:"api_key" yaml:"api_key" toml:"api_key"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	Memory  MemoryConfig           `json:"memory" yaml:"memory" toml:"memory"`
	Workers WorkersConfig          `json:"workers" yaml:"workers" toml:"workers"`
	Models  map[string]ModelConfig `json:"models" yaml:"models" toml:"models"`
	Gateway GatewayConfig          `json:"gateway" yaml:"gateway" toml:"gateway"`
}

// MemoryConfig sets the memory budget shared by all workers.
type MemoryConfig struct {
	BudgetGB       float64 `json:"budget_gb" yaml:"budget_gb" toml:"budget_gb"`
	SafetyMarginGB float64 `json:"safety_margin_gb" yaml:"safety_margin_gb" toml:"safety_margin_gb"`
}

// WorkersConfig holds lifecycle tunables common to every worker.
type WorkersConfig struct {
	IdleTimeoutSeconds    int    `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds"`
	ReaperPeriodSeconds   int    `json:"reaper_period_seconds" yaml:"reaper_period_seconds" toml:"reaper_period_seconds"`
	StartupTimeoutSeconds int    `json:"startup_timeout_seconds" yaml:"startup_timeout_seconds" toml:"startup_timeout_seconds"`
	HealthIntervalMS      int    `json:"health_interval_ms" yaml:"health_interval_ms" toml:"health_interval_ms"`
	HealthTimeoutSeconds  int    `json:"health_timeout_seconds" yaml:"health_timeout_seconds" toml:"health_timeout_seconds"`
	GracePeriodSeconds    int    `json:"grace_period_seconds" yaml:"grace_period_seconds" toml:"grace_period_seconds"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	MaxConcurrent         int    `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	MaxQueueDepth         int    `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds        int    `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	MaxRequests           int    `json:"max_requests" yaml:"max_requests" toml:"max_requests"`
	UnhealthyThreshold    int    `json:"unhealthy_threshold" yaml:"unhealthy_threshold" toml:"unhealthy_threshold"`
	Python                string `json:"python" yaml:"python" toml:"python"`
	Host                  string `json:"host" yaml:"host" toml:"host"`
	WorkDir               string `json:"work_dir" yaml:"work_dir" toml:"work_dir"`
	LogDir                string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	StateDir              string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
}

// ModelConfig describes one worker alias.
type ModelConfig struct {
	// Type is vlm or diffusion.
	Type string `json:"type" yaml:"type" toml:"type"`
	// Path is a local path or a Hugging Face model id.
	Path string `json:"path" yaml:"path" toml:"path"`
	// Port 0 picks a free port.
	Port int `json:"port" yaml:"port" toml:"port"`
	// MemoryGB 0 estimates from Path.
	MemoryGB              float64           `json:"memory_gb" yaml:"memory_gb" toml:"memory_gb"`
	StartupTimeoutSeconds int               `json:"startup_timeout_seconds" yaml:"startup_timeout_seconds" toml:"startup_timeout_seconds"`
	HealthPath            string            `json:"health_path" yaml:"health_path" toml:"health_path"`
	Command               []string          `json:"command" yaml:"command" toml:"command"`
	Env                   map[string]string `json:"env" yaml:"env" toml:"env"`
	WorkDir               string            `json:"work_dir" yaml:"work_dir" toml:"work_dir"`
}

// GatewayConfig configures the OpenAI-compatible surface.
type GatewayConfig struct {
	ChatFallbackAlias    string     `json:"chat_fallback_alias" yaml:"chat_fallback_alias" toml:"chat_fallback_alias"`
	ImageAlias           string     `json:"image_alias" yaml:"image_alias" toml:"image_alias"`
	VisionFastAlias      string     `json:"vision_fast_alias" yaml:"vision_fast_alias" toml:"vision_fast_alias"`
	VisionBestAlias      string     `json:"vision_best_alias" yaml:"vision_best_alias" toml:"vision_best_alias"`
	MaxBodyMB            int        `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb"`
	ChatTimeoutSeconds   int        `json:"chat_timeout_seconds" yaml:"chat_timeout_seconds" toml:"chat_timeout_seconds"`
	VisionTimeoutSeconds int        `json:"vision_timeout_seconds" yaml:"vision_timeout_seconds" toml:"vision_timeout_seconds"`
	ImageTimeoutSeconds  int        `json:"image_timeout_seconds" yaml:"image_timeout_seconds" toml:"image_timeout_seconds"`
	CORS                 CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
}

// CORSConfig enables CORS on the gateway.
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" toml:"allow_credentials"`
	MaxAgeSeconds    int      `json:"max_age_seconds" yaml:"max_age_seconds" toml:"max_age_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
