package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visiond/internal/orchestrator"
	"visiond/internal/router"
)

const chatBody = `{"model":"%s","messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}],"max_tokens":64}`

func chatReq(model string) string { return strings.Replace(chatBody, "%s", model, 1) }

func TestChat_ForwardsToAlias(t *testing.T) {
	svc := newMockService()
	w := do(NewGatewayMux(svc), http.MethodPost, "/v1/chat/completions", chatReq("vlm-best"))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	c, _ := svc.lastCall()
	if c.Alias != "vlm-best" || c.Path != "/chat" || c.Timeout != chatTimeout {
		t.Fatalf("unexpected call: %+v", c)
	}
	body := svc.lastBody()
	if body["max_tokens"].(float64) != 64 || body["stream"] != false {
		t.Fatalf("unexpected worker body: %v", body)
	}
	msgs := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages not forwarded: %v", body)
	}
}

func TestChat_FallbackForForeignModelNames(t *testing.T) {
	for _, model := range []string{"gpt-4o", "claude-3-opus", "GPT-4"} {
		svc := newMockService()
		w := do(NewGatewayMux(svc), http.MethodPost, "/v1/chat/completions", chatReq(model))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", model, w.Code)
		}
		if c, _ := svc.lastCall(); c.Alias != "vlm-fast" {
			t.Fatalf("%s routed to %s", model, c.Alias)
		}
	}
}

func TestChat_FallbackFollowsRoutes(t *testing.T) {
	SetGatewayRoutes(GatewayRoutes{ChatFallback: "vlm-best"})
	defer SetGatewayRoutes(GatewayRoutes{})
	svc := newMockService()
	do(NewGatewayMux(svc), http.MethodPost, "/v1/chat/completions", chatReq("gpt-4o"))
	if c, _ := svc.lastCall(); c.Alias != "vlm-best" {
		t.Fatalf("routed to %s", c.Alias)
	}
}

func TestChat_UnknownModel404(t *testing.T) {
	svc := newMockService()
	w := do(NewGatewayMux(svc), http.MethodPost, "/v1/chat/completions", chatReq("llama-70b"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if e := decodeAPIError(t, w); e.Code != "unknown_alias" || e.Type != "invalid_request_error" {
		t.Fatalf("unexpected error: %+v", e)
	}
	if _, called := svc.lastCall(); called {
		t.Fatalf("nothing should be forwarded")
	}
}

func TestChat_DiffusionModelRejected(t *testing.T) {
	w := do(NewGatewayMux(newMockService()), http.MethodPost, "/v1/chat/completions", chatReq("image-gen"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChat_Validation(t *testing.T) {
	h := NewGatewayMux(newMockService())
	cases := map[string]string{
		"no messages": `{"model":"vlm-fast","messages":[]}`,
		"no model":    `{"messages":[{"role":"user","content":"hi"}]}`,
		"bad json":    `not-json`,
	}
	for name, body := range cases {
		w := do(h, http.MethodPost, "/v1/chat/completions", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
		if e := decodeAPIError(t, w); e.Code != "invalid_request" {
			t.Fatalf("%s: unexpected error: %+v", name, e)
		}
	}
}

func TestUnsupportedMediaType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(chatReq("vlm-fast")))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	NewGatewayMux(newMockService()).ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(chatReq("vlm-fast")))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	w := httptest.NewRecorder()
	NewGatewayMux(newMockService()).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", w.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(1 << 10)
	defer SetMaxBodyBytes(0)
	big := `{"prompt":"x","image":"` + strings.Repeat("a", 2<<10) + `"}`
	w := do(NewGatewayMux(newMockService()), http.MethodPost, "/v1/images/edits", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestImageGeneration_Defaults(t *testing.T) {
	svc := newMockService()
	w := do(NewGatewayMux(svc), http.MethodPost, "/v1/images/generations", `{"prompt":"a cat in space"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	c, _ := svc.lastCall()
	if c.Alias != "image-gen" || c.Path != "/generate" || c.Timeout != imageTimeout {
		t.Fatalf("unexpected call: %+v", c)
	}
	body := svc.lastBody()
	if body["n"].(float64) != 1 || body["size"] != "1024x1024" || body["model"] != "schnell" {
		t.Fatalf("unexpected worker body: %v", body)
	}
	if _, ok := body["steps"]; ok {
		t.Fatalf("steps should be omitted: %v", body)
	}
}

func TestImageGeneration_Validation(t *testing.T) {
	h := NewGatewayMux(newMockService())
	for name, body := range map[string]string{
		"no prompt":  `{"prompt":" "}`,
		"bad size":   `{"prompt":"x","size":"big"}`,
		"zero width": `{"prompt":"x","size":"0x512"}`,
		"neg n":      `{"prompt":"x","n":-2}`,
		"bad steps":  `{"prompt":"x","steps":0}`,
	} {
		if w := do(h, http.MethodPost, "/v1/images/generations", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestImageGeneration_NotConfigured(t *testing.T) {
	svc := newMockService()
	svc.specs = svc.specs[1:]
	w := do(NewGatewayMux(svc), http.MethodPost, "/v1/images/generations", `{"prompt":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestImageEdit(t *testing.T) {
	svc := newMockService()
	h := NewGatewayMux(svc)

	w := do(h, http.MethodPost, "/v1/images/edits", `{"prompt":"make it sunset","image":"aGVsbG8="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	c, _ := svc.lastCall()
	if c.Path != "/edit" || c.Alias != "image-gen" {
		t.Fatalf("unexpected call: %+v", c)
	}
	body := svc.lastBody()
	if body["strength"].(float64) != 0.7 || body["model"] != "schnell" {
		t.Fatalf("unexpected worker body: %v", body)
	}
	if _, ok := body["size"]; ok {
		t.Fatalf("size should be omitted when not given: %v", body)
	}

	do(h, http.MethodPost, "/v1/images/edits", `{"prompt":"p","image":"x","strength":0}`)
	if s := svc.lastBody()["strength"].(float64); s != 0 {
		t.Fatalf("explicit zero strength lost: %v", s)
	}

	for name, body := range map[string]string{
		"no image":      `{"prompt":"p"}`,
		"strength high": `{"prompt":"p","image":"x","strength":1.5}`,
		"strength neg":  `{"prompt":"p","image":"x","strength":-0.1}`,
	} {
		if w := do(h, http.MethodPost, "/v1/images/edits", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestVisionAnalyze_Routing(t *testing.T) {
	cases := []struct {
		task, want string
	}{
		{"caption", "vlm-fast"},
		{"ocr", "vlm-fast"},
		{"objects", "vlm-fast"},
		{"describe", "vlm-best"},
		{"analyze", "vlm-best"},
		{"", "vlm-fast"},
	}
	for _, c := range cases {
		svc := newMockService()
		w := do(NewGatewayMux(svc), http.MethodPost, "/v1/vision/analyze", `{"image":"x","task":"`+c.task+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status=%d", c.task, w.Code)
		}
		call, _ := svc.lastCall()
		if call.Alias != c.want || call.Path != "/analyze" {
			t.Fatalf("%q routed to %+v, want %s", c.task, call, c.want)
		}
		body := svc.lastBody()
		if body["max_tokens"].(float64) != 512 {
			t.Fatalf("max_tokens default missing: %v", body)
		}
		if c.task == "" && body["task"] != "caption" {
			t.Fatalf("task default missing: %v", body)
		}
	}
}

func TestVisionAnalyze_FallsBack(t *testing.T) {
	svc := newMockService()
	svc.specs = []orchestrator.WorkerSpec{
		{Alias: "image-gen", Kind: orchestrator.KindDiffusion},
		{Alias: "vlm-fast", Kind: orchestrator.KindVLM},
	}
	do(NewGatewayMux(svc), http.MethodPost, "/v1/vision/analyze", `{"image":"x","task":"analyze"}`)
	if c, _ := svc.lastCall(); c.Alias != "vlm-fast" {
		t.Fatalf("expected fast fallback, got %s", c.Alias)
	}

	svc = newMockService()
	svc.specs = []orchestrator.WorkerSpec{
		{Alias: "image-gen", Kind: orchestrator.KindDiffusion},
		{Alias: "qwen", Kind: orchestrator.KindVLM},
	}
	do(NewGatewayMux(svc), http.MethodPost, "/v1/vision/analyze", `{"image":"x"}`)
	if c, _ := svc.lastCall(); c.Alias != "qwen" {
		t.Fatalf("expected first vlm, got %s", c.Alias)
	}
}

func TestVisionAnalyze_Validation(t *testing.T) {
	h := NewGatewayMux(newMockService())
	for name, body := range map[string]string{
		"no image":         `{"task":"caption"}`,
		"unknown task":     `{"image":"x","task":"poem"}`,
		"custom no prompt": `{"image":"x","task":"custom"}`,
	} {
		if w := do(h, http.MethodPost, "/v1/vision/analyze", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
	if w := do(h, http.MethodPost, "/v1/vision/analyze", `{"image":"x","task":"custom","prompt":"count the dogs"}`); w.Code != http.StatusOK {
		t.Fatalf("custom with prompt: status=%d", w.Code)
	}
}

func TestVisionTasks(t *testing.T) {
	w := do(NewGatewayMux(newMockService()), http.MethodGet, "/v1/vision/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	for _, id := range []string{"caption", "ocr", "describe", "analyze", "objects", "custom"} {
		if !strings.Contains(w.Body.String(), `"id":"`+id+`"`) {
			t.Fatalf("task %s missing: %s", id, w.Body.String())
		}
	}
}

func TestForwardErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		typ    string
	}{
		{orchestrator.ErrResourceExhausted("vlm-best", 4608, 1024), http.StatusServiceUnavailable, "resource_exhausted", "server_error"},
		{orchestrator.ErrTooBusy("vlm-best"), http.StatusTooManyRequests, "too_busy", "invalid_request_error"},
		{orchestrator.ErrWorkerStartupFailed("vlm-best", orchestrator.ReasonTimeout, errors.New("slow")), http.StatusBadGateway, "worker_startup_failed", "server_error"},
		{orchestrator.ErrWorkerUnhealthy("vlm-best", errors.New("gone")), http.StatusBadGateway, "worker_unhealthy", "server_error"},
		{router.ErrUpstreamFailed("vlm-best", io.ErrUnexpectedEOF), http.StatusBadGateway, "upstream_failed", "server_error"},
		{router.ErrUpstreamTimeout("vlm-best", errors.New("deadline")), http.StatusGatewayTimeout, "upstream_timeout", "server_error"},
		{io.EOF, http.StatusInternalServerError, "internal_error", "server_error"},
	}
	for _, c := range cases {
		svc := newMockService()
		svc.forwardErr = c.err
		w := do(NewGatewayMux(svc), http.MethodPost, "/v1/chat/completions", chatReq("vlm-best"))
		if w.Code != c.status {
			t.Fatalf("%v: expected %d, got %d", c.err, c.status, w.Code)
		}
		e := decodeAPIError(t, w)
		if e.Code != c.code || e.Type != c.typ || e.Message == "" {
			t.Fatalf("%v: unexpected error: %+v", c.err, e)
		}
	}
}
