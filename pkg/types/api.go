package types

import "encoding/json"

// ChatMessage is one message of a chat conversation. Content is forwarded
// untouched so both plain strings and multimodal part arrays pass through.
type ChatMessage struct {
	// example: user
	Role string `json:"role" example:"user"`
	// String or array of content parts (text, image_url).
	Content json.RawMessage `json:"content" swaggertype:"string" example:"Describe this image."`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Worker alias. Names containing "gpt" or "claude" fall back to the
	// configured chat alias.
	// example: vlm-fast
	Model string `json:"model" example:"vlm-fast"`
	// Conversation so far. Required.
	Messages []ChatMessage `json:"messages"`
	// Stream the worker response as server-sent events.
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
	// Maximum number of new tokens.
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
	// Sampling temperature.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
}

// WorkerChatRequest is the body sent to a vlm worker's /chat endpoint.
type WorkerChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// ImageGenerationRequest is the body of POST /v1/images/generations.
type ImageGenerationRequest struct {
	// Text prompt. Required.
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
	// Diffusion model variant understood by the worker.
	// example: schnell
	Model string `json:"model,omitempty" example:"schnell"`
	// Number of images.
	// example: 1
	N int `json:"n,omitempty" example:"1"`
	// Image size as WIDTHxHEIGHT.
	// example: 1024x1024
	Size string `json:"size,omitempty" example:"1024x1024"`
	// Optional number of denoising steps.
	// example: 4
	Steps *int `json:"steps,omitempty" example:"4"`
}

// WorkerGenerateRequest is the body sent to a diffusion worker's /generate endpoint.
type WorkerGenerateRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
	Model  string `json:"model"`
	Steps  *int   `json:"steps,omitempty"`
}

// ImageEditRequest is the body of POST /v1/images/edits.
type ImageEditRequest struct {
	// Edit instruction. Required.
	// example: make it snowy
	Prompt string `json:"prompt" example:"make it snowy"`
	// Source image as base64 or data URL. Required.
	Image string `json:"image"`
	// How far to move away from the source image, in [0,1].
	// example: 0.7
	Strength *float64 `json:"strength,omitempty" example:"0.7"`
	// example: 1024x1024
	Size string `json:"size,omitempty" example:"1024x1024"`
	// example: schnell
	Model string `json:"model,omitempty" example:"schnell"`
	Steps *int   `json:"steps,omitempty"`
}

// WorkerEditRequest is the body sent to a diffusion worker's /edit endpoint.
type WorkerEditRequest struct {
	Prompt   string  `json:"prompt"`
	Image    string  `json:"image"`
	Strength float64 `json:"strength"`
	Size     string  `json:"size,omitempty"`
	Model    string  `json:"model"`
	Steps    *int    `json:"steps,omitempty"`
}

// VisionAnalyzeRequest is the body of POST /v1/vision/analyze.
type VisionAnalyzeRequest struct {
	// Image as base64, data URL or http(s) URL. Required.
	Image string `json:"image"`
	// One of caption, ocr, describe, analyze, objects, custom.
	// example: caption
	Task string `json:"task,omitempty" example:"caption"`
	// Prompt for the custom task.
	Prompt string `json:"prompt,omitempty"`
	// example: 512
	MaxTokens int `json:"max_tokens,omitempty" example:"512"`
}

// WorkerAnalyzeRequest is the body sent to a vlm worker's /analyze endpoint.
type WorkerAnalyzeRequest struct {
	Image     string `json:"image"`
	Task      string `json:"task"`
	Prompt    string `json:"prompt,omitempty"`
	MaxTokens int    `json:"max_tokens"`
}

// ErrorResponse is the error payload of the admin surface.
type ErrorResponse struct {
	// Error message.
	// example: unknown model alias: vlm-huge
	Error string `json:"error" example:"unknown model alias: vlm-huge"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// APIError is the OpenAI-style error object returned under /v1.
type APIError struct {
	// example: no room for image-gen: need 6144 MB, 2048 MB free after evicting idle workers
	Message string `json:"message"`
	// invalid_request_error for 4xx, server_error for 5xx.
	// example: server_error
	Type string `json:"type" example:"server_error"`
	// Machine-readable code.
	// example: resource_exhausted
	Code string `json:"code" example:"resource_exhausted"`
}

// APIErrorResponse wraps APIError.
type APIErrorResponse struct {
	Error APIError `json:"error"`
}

// EvictResponse is returned by POST /evict/{alias} and /v1/system/evict/{alias}.
type EvictResponse struct {
	// example: vlm-best
	Alias string `json:"alias" example:"vlm-best"`
	// True when a running worker was stopped.
	// example: true
	Evicted bool `json:"evicted" example:"true"`
	// evicted or not_running.
	// example: evicted
	Status string `json:"status" example:"evicted"`
}

// HealthResponse is returned by GET /health on the admin surface.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// Number of worker instances in the registry.
	// example: 2
	Workers int `json:"workers" example:"2"`
}

// WorkerStatus summarizes one worker instance for /status.
type WorkerStatus struct {
	// example: vlm-fast
	Alias string `json:"alias" example:"vlm-fast"`
	// Unique per spawn.
	InstanceID string `json:"instance_id"`
	// example: vlm
	Kind string `json:"kind" example:"vlm"`
	// starting, ready, serving, idle or evicting.
	// example: idle
	State string `json:"state" example:"idle"`
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// example: 8001
	Port int `json:"port,omitempty" example:"8001"`
	// example: Qwen/Qwen2.5-VL-3B-Instruct
	ModelPath string `json:"model_path,omitempty" example:"Qwen/Qwen2.5-VL-3B-Instruct"`
	// Memory reserved for this worker in MB.
	// example: 2560
	ReservedMB int `json:"reserved_mb" example:"2560"`
	// Same reservation in GB.
	// example: 2.5
	MemoryGB float64 `json:"memory_gb" example:"2.5"`
	// Requests currently holding this worker.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Requests admitted to or waiting at the concurrency gate.
	// example: 0
	Queued int `json:"queued" example:"0"`
	// Requests served since spawn.
	// example: 17
	RequestCount int `json:"request_count" example:"17"`
	// example: 600
	UptimeSeconds int64 `json:"uptime_seconds" example:"600"`
	// Seconds since the last request started or finished.
	// example: 42
	IdleSeconds int64 `json:"idle_seconds" example:"42"`
	// example: 1700000000
	LastActivityUnix int64 `json:"last_activity_unix" example:"1700000000"`
	// Consecutive failed liveness checks.
	// example: 0
	HealthFailures int    `json:"health_failures" example:"0"`
	LastHealthErr  string `json:"last_health_error,omitempty"`
}

// StatusConfig echoes the lifecycle tunables in effect.
type StatusConfig struct {
	// example: 300
	IdleTimeoutSeconds int64 `json:"idle_timeout_seconds" example:"300"`
	// example: 30
	ReaperPeriodSeconds int64 `json:"reaper_period_seconds" example:"30"`
	// 0 disables request-count recycling.
	// example: 50
	MaxRequests int `json:"max_requests" example:"50"`
	// example: 1
	MaxConcurrent int `json:"max_concurrent" example:"1"`
	// example: 4
	SafetyMarginGB float64 `json:"safety_margin_gb" example:"4"`
}

// StatusResponse is returned by GET /status and GET /v1/system/status.
type StatusResponse struct {
	// Registry entries sorted by alias.
	Workers []WorkerStatus `json:"workers"`
	// Total memory budget in MB.
	// example: 32768
	BudgetMB int `json:"budget_mb" example:"32768"`
	// Memory kept free in MB.
	// example: 4096
	MarginMB int `json:"margin_mb" example:"4096"`
	// Memory reserved by starting and resident workers in MB.
	// example: 8704
	UsedMB int `json:"used_mb" example:"8704"`
	// Memory held by workers being evicted in MB.
	// example: 0
	ReleasingMB int `json:"releasing_mb" example:"0"`
	// Memory available for new workers in MB.
	// example: 19968
	FreeMB int `json:"free_mb" example:"19968"`
	// example: 32
	BudgetGB float64 `json:"budget_gb" example:"32"`
	// example: 8.5
	UsedGB float64 `json:"used_gb" example:"8.5"`
	// example: 19.5
	FreeGB float64 `json:"free_gb" example:"19.5"`
	Config StatusConfig `json:"config"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// example: 12
	SpawnsTotal uint64 `json:"spawns_total" example:"12"`
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// example: 1
	StartFailuresTotal uint64 `json:"start_failures_total" example:"1"`
	// Workers in the starting state.
	// example: 1
	WarmupsInProgress int `json:"warmups_in_progress" example:"1"`
	// Workers in the evicting state.
	// example: 0
	EvictingCount int `json:"evicting_count" example:"0"`
	// Host memory; omitted where procfs is unavailable.
	Host *HostMemory `json:"host,omitempty"`
}

// HostMemory is the machine's physical memory next to what workers hold.
type HostMemory struct {
	// example: 64
	TotalGB float64 `json:"total_gb" example:"64"`
	// example: 21.3
	UsedGB float64 `json:"used_gb" example:"21.3"`
	// example: 42.7
	AvailableGB float64 `json:"available_gb" example:"42.7"`
	// example: 33.3
	UsedPercent float64 `json:"used_percent" example:"33.3"`
	// Memory reserved by workers, including starting and evicting ones.
	// example: 8.5
	ModelsLoadedGB float64 `json:"models_loaded_gb" example:"8.5"`
}
