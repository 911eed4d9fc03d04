// Package httpapi serves the OpenAI-compatible gateway and the orchestrator
// admin surface.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visiond/internal/orchestrator"
	"visiond/internal/router"
	"visiond/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Specs() []orchestrator.WorkerSpec
	Status() types.StatusResponse
	Evict(ctx context.Context, alias string, force bool) (bool, error)
	Ready() bool
	Forward(ctx context.Context, call router.Call, w http.ResponseWriter) error
}

// Backend joins the orchestrator and the router into a Service.
type Backend struct {
	*orchestrator.Orchestrator
	*router.Router
}

var _ Service = Backend{}

func baseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints; event streams are left alone
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	return r
}

// NewGatewayMux returns the public, OpenAI-compatible surface.
func NewGatewayMux(svc Service) http.Handler {
	return gatewayRouter(svc)
}

// NewAdminMux returns the orchestrator admin surface.
func NewAdminMux(svc Service) http.Handler {
	r := baseRouter()
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(false))
		mountAdmin(r, svc)
	})
	return r
}

// NewMux serves both surfaces from one listener.
func NewMux(svc Service) http.Handler {
	r := gatewayRouter(svc)
	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(false))
		mountAdmin(r, svc)
	})
	return r
}

func gatewayRouter(svc Service) *chi.Mux {
	r := baseRouter()
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   corsAllowedMethods,
			AllowedHeaders:   corsAllowedHeaders,
			AllowCredentials: corsAllowCredentials,
			MaxAge:           corsMaxAge,
		}))
	}
	g := &gateway{svc: svc}

	r.Get("/healthz", g.healthz)
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireAPIKey(true))
		r.Get("/models", g.listModels)
		r.Post("/chat/completions", g.chatCompletions)
		r.Post("/images/generations", g.imageGenerations)
		r.Post("/images/edits", g.imageEdits)
		r.Post("/vision/analyze", g.visionAnalyze)
		r.Get("/vision/tasks", g.visionTasks)
		r.Get("/system/status", g.systemStatus)
		r.Post("/system/evict/{alias}", g.systemEvict)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path)
		})
	})
	return r
}

func unixNow() int64 { return time.Now().Unix() }
