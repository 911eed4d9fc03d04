package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultProbeTimeout = 2 * time.Second

// Prober issues HTTP health checks against workers.
type Prober struct {
	client       *http.Client
	probeTimeout time.Duration
}

// NewProber returns a Prober using client (nil selects a fresh client) and a
// per-request timeout (0 selects 2s).
func NewProber(client *http.Client, probeTimeout time.Duration) *Prober {
	if client == nil {
		// Timeout stays 0: every probe carries a context deadline.
		client = &http.Client{}
	}
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Prober{client: client, probeTimeout: probeTimeout}
}

// ProbeTarget is a worker being brought up.
type ProbeTarget struct {
	Alias string
	// URL is the full health endpoint.
	URL string
	// Exited is closed when the process dies.
	Exited   <-chan struct{}
	Interval time.Duration
}

// Check performs a single probe. Any 2xx is healthy.
func (p *Prober) Check(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// WaitReady polls t.URL every t.Interval until it answers 2xx. It fails with
// a *StartupError whose reason is crashed when the process exits first,
// timeout when timeout elapses, and canceled when ctx ends.
func (p *Prober) WaitReady(ctx context.Context, t ProbeTarget, timeout time.Duration) error {
	interval := t.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		select {
		case <-t.Exited:
			return ErrWorkerStartupFailed(t.Alias, ReasonCrashed, errors.New("process exited before becoming healthy"))
		default:
		}
		err := p.Check(wctx, t.URL)
		if err == nil {
			return nil
		}
		if lastErr == nil || wctx.Err() == nil {
			lastErr = err
		}

		tick := time.NewTimer(interval)
		select {
		case <-t.Exited:
			tick.Stop()
			return ErrWorkerStartupFailed(t.Alias, ReasonCrashed, errors.New("process exited before becoming healthy"))
		case <-wctx.Done():
			tick.Stop()
			if ctx.Err() != nil {
				return ErrWorkerStartupFailed(t.Alias, ReasonCanceled, ctx.Err())
			}
			return ErrWorkerStartupFailed(t.Alias, ReasonTimeout, fmt.Errorf("not healthy after %s: %w", timeout, lastErr))
		case <-tick.C:
		}
	}
}
