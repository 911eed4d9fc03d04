// Package router forwards gateway requests to orchestrated workers.
package router

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"visiond/internal/orchestrator"
)

const (
	defaultTimeout = 300 * time.Second
	copyBufSize    = 32 << 10
)

var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Orchestrator is the subset of *orchestrator.Orchestrator the router uses.
type Orchestrator interface {
	Acquire(ctx context.Context, alias string) (*orchestrator.Handle, error)
	ReportFailure(ctx context.Context, h *orchestrator.Handle, cause error)
}

// Call is one request to forward.
type Call struct {
	Alias string
	// Path on the worker, e.g. /chat.
	Path        string
	Body        []byte
	ContentType string
	// Timeout bounds the worker request; 0 selects the router default.
	Timeout time.Duration
}

// Router acquires a worker per call, sends the request through the worker's
// concurrency gate and streams the response back.
type Router struct {
	orch    Orchestrator
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClient sets the HTTP client used to reach workers.
func WithClient(c *http.Client) Option { return func(r *Router) { r.client = c } }

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the router's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.log = l.With().Str("component", "router").Logger() }
}

func New(orch Orchestrator, opts ...Option) *Router {
	r := &Router{
		orch:    orch,
		client:  &http.Client{},
		timeout: defaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Forward sends c to a worker for c.Alias and copies the response to w.
//
// A transport failure before the response starts reports the worker as
// failed and retries once against a fresh instance; a second failure yields
// UpstreamFailed. A worker already evicted as unhealthy is retried the same
// way. Timeouts are not retried. Once the response status has been written,
// copy errors are logged and Forward returns nil.
func (r *Router) Forward(ctx context.Context, c Call, w http.ResponseWriter) error {
	for attempt := 0; ; attempt++ {
		h, err := r.orch.Acquire(ctx, c.Alias)
		if err != nil {
			forwardTotal.WithLabelValues(c.Alias, "acquire_error").Inc()
			return err
		}
		err = r.forwardOnce(ctx, h, c, w)

		if orchestrator.IsWorkerUnhealthy(err) && attempt == 0 && ctx.Err() == nil {
			// another request already reported this instance; start over on a fresh one
			h.Release()
			r.log.Debug().Str("alias", c.Alias).Str("instance", h.InstanceID).Msg("router event=retry_unhealthy")
			retriesTotal.WithLabelValues(c.Alias).Inc()
			continue
		}
		var te *transportError
		if !errors.As(err, &te) {
			h.Release()
			if err != nil {
				forwardTotal.WithLabelValues(c.Alias, "error").Inc()
			} else {
				forwardTotal.WithLabelValues(c.Alias, "ok").Inc()
			}
			return err
		}
		r.log.Warn().Err(te.err).Str("alias", c.Alias).Str("instance", h.InstanceID).Int("attempt", attempt+1).Msg("router event=upstream_failed")
		// Held until the failure is reported so no other caller can acquire
		// the dead instance in between.
		r.orch.ReportFailure(ctx, h, te.err)
		h.Release()
		if attempt > 0 || ctx.Err() != nil {
			forwardTotal.WithLabelValues(c.Alias, "upstream_failed").Inc()
			return ErrUpstreamFailed(c.Alias, te.err)
		}
		retriesTotal.WithLabelValues(c.Alias).Inc()
	}
}

func (r *Router) forwardOnce(ctx context.Context, h *orchestrator.Handle, c Call, w http.ResponseWriter) error {
	done, err := h.Begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(tctx, http.MethodPost, strings.TrimRight(h.BaseURL, "/")+c.Path, bytes.NewReader(c.Body))
	if err != nil {
		return err
	}
	ct := c.ContentType
	if ct == "" {
		ct = "application/json"
	}
	req.Header.Set("Content-Type", ct)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return ErrUpstreamTimeout(c.Alias, err)
		}
		return &transportError{err: err}
	}
	defer resp.Body.Close()
	upstreamDuration.WithLabelValues(c.Alias).Observe(time.Since(start).Seconds())

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if n, err := streamBody(w, resp.Body); err != nil {
		r.log.Warn().Err(err).Str("alias", c.Alias).Int64("bytes", n).Msg("router event=copy_failed")
	}
	return nil
}

func copyHeaders(dst, src http.Header) {
	drop := map[string]bool{}
	for _, h := range hopByHopHeaders {
		drop[h] = true
	}
	for _, f := range strings.Split(src.Get("Connection"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			drop[http.CanonicalHeaderKey(f)] = true
		}
	}
	for k, vv := range src {
		if drop[k] || k == "Content-Length" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// streamBody copies src to w, flushing after every chunk so streamed chat
// completions reach the client as they are produced.
func streamBody(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			total += int64(m)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}
