package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"visiond/pkg/types"
)

func mountAdmin(r chi.Router, svc Service) {
	a := &admin{svc: svc}
	r.Get("/health", a.health)
	r.Get("/status", a.status)
	r.Post("/evict/{alias}", a.evict)
}

type admin struct {
	svc Service
}

// health godoc
// @Summary      Orchestrator liveness
// @Tags         admin
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func (a *admin) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Workers: len(a.svc.Status().Workers)})
}

// status godoc
// @Summary      Workers and memory accounting
// @Tags         admin
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (a *admin) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status())
}

// evict godoc
// @Summary      Stop a worker and free its memory
// @Tags         admin
// @Produce      json
// @Param        alias  path   string  true   "worker alias"
// @Param        force  query  bool    false  "stop even with requests in flight"
// @Success      200  {object}  types.EvictResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /evict/{alias} [post]
func (a *admin) evict(w http.ResponseWriter, r *http.Request) {
	resp, err := doEvict(r, a.svc)
	if err != nil {
		writeJSONError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func doEvict(r *http.Request, svc Service) (types.EvictResponse, error) {
	alias := chi.URLParam(r, "alias")
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return types.EvictResponse{}, badRequest("force must be a boolean")
		}
		force = b
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	evicted, err := svc.Evict(ctx, alias, force)
	if err != nil {
		return types.EvictResponse{}, err
	}
	status := "not_running"
	if evicted {
		status = "evicted"
	}
	zlog.Info().Str("alias", alias).Bool("force", force).Bool("evicted", evicted).Msg("manual eviction")
	return types.EvictResponse{Alias: alias, Evicted: evicted, Status: status}, nil
}

// requestError is a client-side validation failure.
type requestError struct {
	status int
	msg    string
}

func (e requestError) Error() string   { return e.msg }
func (e requestError) StatusCode() int { return e.status }
func (e requestError) Code() string    { return codeOf(nil, e.status) }

func badRequest(msg string) error { return requestError{status: http.StatusBadRequest, msg: msg} }
