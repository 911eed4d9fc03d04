package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
)

// unknownAliasError: the alias is not in the configured spec set.
type unknownAliasError struct{ alias string }

func (e unknownAliasError) Error() string   { return "unknown model alias: " + e.alias }
func (e unknownAliasError) StatusCode() int { return http.StatusNotFound }
func (e unknownAliasError) Code() string    { return "unknown_alias" }

func ErrUnknownAlias(alias string) error { return unknownAliasError{alias: alias} }

// IsUnknownAlias reports whether err names an alias with no spec.
func IsUnknownAlias(err error) bool {
	var e unknownAliasError
	return errors.As(err, &e)
}

// resourceExhaustedError: the worker cannot fit even after evicting every
// idle worker. Retryable once busy workers finish.
type resourceExhaustedError struct {
	alias  string
	needMB int
	freeMB int
}

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("no room for %s: need %d MB, %d MB free after evicting idle workers", e.alias, e.needMB, e.freeMB)
}
func (e resourceExhaustedError) StatusCode() int { return http.StatusServiceUnavailable }
func (e resourceExhaustedError) Code() string    { return "resource_exhausted" }

func ErrResourceExhausted(alias string, needMB, freeMB int) error {
	return resourceExhaustedError{alias: alias, needMB: needMB, freeMB: freeMB}
}

// IsResourceExhausted reports whether err is a memory admission failure.
func IsResourceExhausted(err error) bool {
	var e resourceExhaustedError
	return errors.As(err, &e)
}

// StartupReason classifies a failed worker startup.
type StartupReason string

const (
	ReasonLaunch   StartupReason = "launch"
	ReasonCrashed  StartupReason = "crashed"
	ReasonTimeout  StartupReason = "timeout"
	ReasonCanceled StartupReason = "canceled"
)

// StartupError is returned to every caller waiting on a worker that failed
// to become healthy.
type StartupError struct {
	Alias  string
	Reason StartupReason
	Err    error
}

func (e *StartupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("worker %s failed to start (%s)", e.Alias, e.Reason)
	}
	return fmt.Sprintf("worker %s failed to start (%s): %v", e.Alias, e.Reason, e.Err)
}
func (e *StartupError) Unwrap() error    { return e.Err }
func (e *StartupError) StatusCode() int { return http.StatusBadGateway }
func (e *StartupError) Code() string    { return "worker_startup_failed" }

func ErrWorkerStartupFailed(alias string, reason StartupReason, err error) error {
	return &StartupError{Alias: alias, Reason: reason, Err: err}
}

// IsWorkerStartupFailed reports whether err is a startup failure.
func IsWorkerStartupFailed(err error) bool {
	var e *StartupError
	return errors.As(err, &e)
}

// StartupFailureReason returns the reason of a startup failure, or "".
func StartupFailureReason(err error) StartupReason {
	var e *StartupError
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// workerUnhealthyError: a resident worker stopped answering.
type workerUnhealthyError struct {
	alias string
	cause error
}

func (e workerUnhealthyError) Error() string {
	return fmt.Sprintf("worker %s unhealthy: %v", e.alias, e.cause)
}
func (e workerUnhealthyError) Unwrap() error    { return e.cause }
func (e workerUnhealthyError) StatusCode() int { return http.StatusBadGateway }
func (e workerUnhealthyError) Code() string    { return "worker_unhealthy" }

func ErrWorkerUnhealthy(alias string, cause error) error {
	return workerUnhealthyError{alias: alias, cause: cause}
}

// IsWorkerUnhealthy reports whether err comes from a worker that was
// evicted for failing health checks or requests.
func IsWorkerUnhealthy(err error) bool {
	var e workerUnhealthyError
	return errors.As(err, &e)
}

// evictionRefusedError: non-forced eviction of a busy or starting worker.
type evictionRefusedError struct {
	alias    string
	state    State
	inflight int
}

func (e evictionRefusedError) Error() string {
	if e.state == StateStarting {
		return fmt.Sprintf("eviction of %s refused: worker is starting", e.alias)
	}
	return fmt.Sprintf("eviction of %s refused: %d request(s) in flight", e.alias, e.inflight)
}
func (e evictionRefusedError) StatusCode() int { return http.StatusConflict }
func (e evictionRefusedError) Code() string    { return "eviction_refused" }

func ErrEvictionRefused(alias string, state State, inflight int) error {
	return evictionRefusedError{alias: alias, state: state, inflight: inflight}
}

func IsEvictionRefused(err error) bool {
	var e evictionRefusedError
	return errors.As(err, &e)
}

// tooBusyError signals gate queue timeout/overflow for 429 mapping.
type tooBusyError struct{ alias string }

func (e tooBusyError) Error() string     { return "too busy: " + e.alias }
func (e tooBusyError) StatusCode() int { return http.StatusTooManyRequests }
func (e tooBusyError) Code() string    { return "too_busy" }

func ErrTooBusy(alias string) error { return tooBusyError{alias: alias} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// shuttingDownError is returned by Acquire once Shutdown has begun.
type shuttingDownError struct{}

func (shuttingDownError) Error() string   { return "orchestrator is shutting down" }
func (shuttingDownError) StatusCode() int { return http.StatusServiceUnavailable }
func (shuttingDownError) Code() string    { return "shutting_down" }

// ErrShuttingDown is returned once Shutdown has been called.
var ErrShuttingDown error = shuttingDownError{}
