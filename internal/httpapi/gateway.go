package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"visiond/internal/orchestrator"
	"visiond/internal/router"
	"visiond/pkg/types"
)

const (
	defaultImageSize  = "1024x1024"
	defaultImageModel = "schnell"
	defaultStrength   = 0.7
	defaultMaxTokens  = 512
	defaultTask       = "caption"
)

var visionTasks = []types.VisionTask{
	{ID: "caption", Description: "Brief one-sentence caption"},
	{ID: "ocr", Description: "Extract text from image (OCR)"},
	{ID: "describe", Description: "Detailed image description"},
	{ID: "analyze", Description: "Comprehensive analysis"},
	{ID: "objects", Description: "List detected objects"},
	{ID: "custom", Description: "Custom prompt (provide 'prompt' field)"},
}

type gateway struct {
	svc Service
}

// healthz godoc
// @Summary      Gateway liveness
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /healthz [get]
func (g *gateway) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": unixNow()})
}

// listModels godoc
// @Summary      List configured worker aliases
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  types.ModelList
// @Router       /v1/models [get]
func (g *gateway) listModels(w http.ResponseWriter, r *http.Request) {
	states := map[string]string{}
	for _, ws := range g.svc.Status().Workers {
		states[ws.Alias] = ws.State
	}
	now := unixNow()
	list := types.ModelList{Object: "list", Data: []types.ModelEntry{}}
	for _, s := range g.svc.Specs() {
		state := states[s.Alias]
		if state == "" {
			state = string(orchestrator.StateAbsent)
		}
		list.Data = append(list.Data, types.ModelEntry{
			ID:       s.Alias,
			Object:   "model",
			Created:  now,
			OwnedBy:  "local",
			Kind:     string(s.Kind),
			MemoryMB: s.MemoryMB,
			State:    state,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// chatCompletions godoc
// @Summary      Chat completion on a vision-language worker
// @Description  Models named like gpt or claude are served by the fallback alias.
// @Tags         gateway
// @Accept       json
// @Produce      json
// @Param        request  body  types.ChatCompletionRequest  true  "chat request"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  types.APIErrorResponse
// @Failure      404  {object}  types.APIErrorResponse
// @Failure      429  {object}  types.APIErrorResponse
// @Failure      503  {object}  types.APIErrorResponse
// @Router       /v1/chat/completions [post]
func (g *gateway) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatCompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeAPIErr(w, badRequest("messages is required"))
		return
	}
	alias, err := g.chatAlias(req.Model)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	g.forward(w, r, alias, "/chat", types.WorkerChatRequest{
		Messages:    req.Messages,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, chatTimeout)
}

// imageGenerations godoc
// @Summary      Text-to-image generation
// @Tags         gateway
// @Accept       json
// @Produce      json
// @Param        request  body  types.ImageGenerationRequest  true  "generation request"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  types.APIErrorResponse
// @Failure      404  {object}  types.APIErrorResponse
// @Failure      503  {object}  types.APIErrorResponse
// @Router       /v1/images/generations [post]
func (g *gateway) imageGenerations(w http.ResponseWriter, r *http.Request) {
	var req types.ImageGenerationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeAPIErr(w, badRequest("prompt is required"))
		return
	}
	if req.N < 0 {
		writeAPIErr(w, badRequest("n must be positive"))
		return
	}
	if req.N == 0 {
		req.N = 1
	}
	if req.Size == "" {
		req.Size = defaultImageSize
	}
	if req.Model == "" {
		req.Model = defaultImageModel
	}
	if err := validateImageOptions(req.Size, req.Steps); err != nil {
		writeAPIErr(w, err)
		return
	}
	alias, err := g.kindAlias(gatewayRoutes.Image, orchestrator.KindDiffusion)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	g.forward(w, r, alias, "/generate", types.WorkerGenerateRequest{
		Prompt: req.Prompt,
		N:      req.N,
		Size:   req.Size,
		Model:  req.Model,
		Steps:  req.Steps,
	}, imageTimeout)
}

// imageEdits godoc
// @Summary      Image-to-image editing
// @Description  strength 0 keeps the source image, 1 regenerates it fully.
// @Tags         gateway
// @Accept       json
// @Produce      json
// @Param        request  body  types.ImageEditRequest  true  "edit request"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  types.APIErrorResponse
// @Failure      404  {object}  types.APIErrorResponse
// @Failure      503  {object}  types.APIErrorResponse
// @Router       /v1/images/edits [post]
func (g *gateway) imageEdits(w http.ResponseWriter, r *http.Request) {
	var req types.ImageEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case strings.TrimSpace(req.Prompt) == "":
		writeAPIErr(w, badRequest("prompt is required"))
		return
	case req.Image == "":
		writeAPIErr(w, badRequest("image is required"))
		return
	}
	strength := defaultStrength
	if req.Strength != nil {
		strength = *req.Strength
	}
	if strength < 0 || strength > 1 {
		writeAPIErr(w, badRequest("strength must be between 0 and 1"))
		return
	}
	if req.Model == "" {
		req.Model = defaultImageModel
	}
	// An empty size lets the worker keep the source dimensions.
	size := req.Size
	if size == "" {
		size = defaultImageSize
	}
	if err := validateImageOptions(size, req.Steps); err != nil {
		writeAPIErr(w, err)
		return
	}
	alias, err := g.kindAlias(gatewayRoutes.Image, orchestrator.KindDiffusion)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	g.forward(w, r, alias, "/edit", types.WorkerEditRequest{
		Prompt:   req.Prompt,
		Image:    req.Image,
		Strength: strength,
		Size:     req.Size,
		Model:    req.Model,
		Steps:    req.Steps,
	}, imageTimeout)
}

// visionAnalyze godoc
// @Summary      Structured image analysis
// @Description  analyze and describe run on the best vision worker, other tasks on the fast one.
// @Tags         gateway
// @Accept       json
// @Produce      json
// @Param        request  body  types.VisionAnalyzeRequest  true  "analysis request"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  types.APIErrorResponse
// @Failure      503  {object}  types.APIErrorResponse
// @Router       /v1/vision/analyze [post]
func (g *gateway) visionAnalyze(w http.ResponseWriter, r *http.Request) {
	var req types.VisionAnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Image == "" {
		writeAPIErr(w, badRequest("image is required"))
		return
	}
	if req.Task == "" {
		req.Task = defaultTask
	}
	if !knownTask(req.Task) {
		writeAPIErr(w, badRequest(fmt.Sprintf("unknown task %q", req.Task)))
		return
	}
	if req.Task == "custom" && strings.TrimSpace(req.Prompt) == "" {
		writeAPIErr(w, badRequest("prompt is required for the custom task"))
		return
	}
	if req.MaxTokens < 0 {
		writeAPIErr(w, badRequest("max_tokens must be positive"))
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	alias, err := g.visionAlias(req.Task)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	g.forward(w, r, alias, "/analyze", types.WorkerAnalyzeRequest{
		Image:     req.Image,
		Task:      req.Task,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	}, visionTimeout)
}

// visionTasks godoc
// @Summary      List vision analysis tasks
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  types.VisionTasksResponse
// @Router       /v1/vision/tasks [get]
func (g *gateway) visionTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.VisionTasksResponse{Tasks: visionTasks})
}

// systemStatus godoc
// @Summary      Workers and memory accounting
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /v1/system/status [get]
func (g *gateway) systemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.svc.Status())
}

// systemEvict godoc
// @Summary      Evict a worker to free memory
// @Tags         gateway
// @Produce      json
// @Param        alias  path   string  true   "worker alias"
// @Param        force  query  bool    false  "stop even with requests in flight"
// @Success      200  {object}  types.EvictResponse
// @Failure      404  {object}  types.APIErrorResponse
// @Failure      409  {object}  types.APIErrorResponse
// @Router       /v1/system/evict/{alias} [post]
func (g *gateway) systemEvict(w http.ResponseWriter, r *http.Request) {
	resp, err := doEvict(r, g.svc)
	if err != nil {
		writeAPIErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// forward hands payload to the router and maps failures that happen before
// the worker response starts.
func (g *gateway) forward(w http.ResponseWriter, r *http.Request, alias, path string, payload any, timeout time.Duration) {
	body, err := json.Marshal(payload)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "internal_error", "failed to encode worker request")
		return
	}
	lvl := requestLogLevel(r)
	start := time.Now()
	logForwardStart(r, lvl, alias)

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	err = g.svc.Forward(ctx, router.Call{
		Alias:       alias,
		Path:        path,
		Body:        body,
		ContentType: "application/json",
		Timeout:     timeout,
	}, w)
	if err == nil {
		logForwardEnd(r, lvl, alias, http.StatusOK, start, nil)
		return
	}
	// Client went away; nobody to answer.
	if r.Context().Err() != nil {
		return
	}
	if serverBaseCtx.Err() != nil {
		writeAPIError(w, http.StatusServiceUnavailable, "shutting_down", "server is shutting down")
		return
	}
	status := statusOf(err)
	code := codeOf(err, status)
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		IncrementBackpressure(code)
	}
	writeAPIError(w, status, code, err.Error())
	logForwardEnd(r, lvl, alias, status, start, err)
}

// decodeJSON reads a JSON body into dst, answering the request itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeAPIError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return false
		}
		writeAPIError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (g *gateway) specFor(alias string) (orchestrator.WorkerSpec, bool) {
	for _, s := range g.svc.Specs() {
		if s.Alias == alias {
			return s, true
		}
	}
	return orchestrator.WorkerSpec{}, false
}

// chatAlias resolves the requested chat model to a vlm alias.
func (g *gateway) chatAlias(model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", badRequest("model is required")
	}
	if s, ok := g.specFor(model); ok {
		if s.Kind != orchestrator.KindVLM {
			return "", badRequest(fmt.Sprintf("model %s does not serve chat completions", model))
		}
		return model, nil
	}
	lower := strings.ToLower(model)
	if strings.Contains(lower, "gpt") || strings.Contains(lower, "claude") {
		return g.kindAlias(gatewayRoutes.ChatFallback, orchestrator.KindVLM)
	}
	return "", orchestrator.ErrUnknownAlias(model)
}

// kindAlias checks that alias is configured with the given kind.
func (g *gateway) kindAlias(alias string, kind orchestrator.WorkerKind) (string, error) {
	s, ok := g.specFor(alias)
	if !ok {
		return "", orchestrator.ErrUnknownAlias(alias)
	}
	if s.Kind != kind {
		return "", fmt.Errorf("alias %s is a %s worker, want %s: %w", alias, s.Kind, kind, orchestrator.ErrUnknownAlias(alias))
	}
	return alias, nil
}

// visionAlias picks the worker for a vision task: the best alias for
// analyze/describe, the fast one otherwise, then the first vlm configured.
func (g *gateway) visionAlias(task string) (string, error) {
	want := gatewayRoutes.VisionFast
	if task == "analyze" || task == "describe" {
		want = gatewayRoutes.VisionBest
	}
	for _, a := range []string{want, gatewayRoutes.VisionFast} {
		if s, ok := g.specFor(a); ok && s.Kind == orchestrator.KindVLM {
			return a, nil
		}
	}
	for _, s := range g.svc.Specs() {
		if s.Kind == orchestrator.KindVLM {
			return s.Alias, nil
		}
	}
	return "", orchestrator.ErrUnknownAlias(want)
}

func knownTask(task string) bool {
	for _, t := range visionTasks {
		if t.ID == task {
			return true
		}
	}
	return false
}

func validateImageOptions(size string, steps *int) error {
	wStr, hStr, ok := strings.Cut(size, "x")
	wv, werr := strconv.Atoi(wStr)
	hv, herr := strconv.Atoi(hStr)
	if !ok || werr != nil || herr != nil || wv <= 0 || hv <= 0 {
		return badRequest(fmt.Sprintf("size %q must be WIDTHxHEIGHT", size))
	}
	if steps != nil && *steps <= 0 {
		return badRequest("steps must be positive")
	}
	return nil
}
