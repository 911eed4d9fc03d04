package types

// ModelEntry is one configured worker alias as listed by GET /v1/models.
type ModelEntry struct {
	// Worker alias used as the model name in requests.
	// example: vlm-fast
	ID string `json:"id" example:"vlm-fast"`
	// Always "model".
	Object string `json:"object" example:"model"`
	// Listing time (unix seconds).
	// example: 1700000000
	Created int64 `json:"created" example:"1700000000"`
	// Always "local".
	OwnedBy string `json:"owned_by" example:"local"`
	// Worker kind: vlm or diffusion.
	// example: vlm
	Kind string `json:"kind" example:"vlm"`
	// Memory reserved while the worker is resident, in MB.
	// example: 2560
	MemoryMB int `json:"memory_mb" example:"2560"`
	// Current lifecycle state, "absent" when not running.
	// example: idle
	State string `json:"state" example:"idle"`
}

// ModelList wraps the entries returned by GET /v1/models.
type ModelList struct {
	Object string       `json:"object" example:"list"`
	Data   []ModelEntry `json:"data"`
}

// VisionTask describes one task accepted by POST /v1/vision/analyze.
type VisionTask struct {
	// example: caption
	ID string `json:"id" example:"caption"`
	// example: Generate a short caption for the image
	Description string `json:"description" example:"Generate a short caption for the image"`
}

// VisionTasksResponse is returned by GET /v1/vision/tasks.
type VisionTasksResponse struct {
	Tasks []VisionTask `json:"tasks"`
}
