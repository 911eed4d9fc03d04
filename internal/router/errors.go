package router

import (
	"errors"
	"fmt"
	"net/http"
)

// upstreamError: the worker could not be reached, or did not answer in time.
type upstreamError struct {
	alias   string
	timeout bool
	err     error
}

func (e upstreamError) Error() string {
	if e.timeout {
		return fmt.Sprintf("worker %s timed out: %v", e.alias, e.err)
	}
	return fmt.Sprintf("worker %s unreachable: %v", e.alias, e.err)
}

func (e upstreamError) Unwrap() error { return e.err }

func (e upstreamError) StatusCode() int {
	if e.timeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (e upstreamError) Code() string {
	if e.timeout {
		return "upstream_timeout"
	}
	return "upstream_failed"
}

func ErrUpstreamFailed(alias string, err error) error {
	return upstreamError{alias: alias, err: err}
}

func ErrUpstreamTimeout(alias string, err error) error {
	return upstreamError{alias: alias, timeout: true, err: err}
}

// IsUpstreamFailed reports whether err is a worker transport failure or timeout.
func IsUpstreamFailed(err error) bool {
	var e upstreamError
	return errors.As(err, &e)
}

// IsUpstreamTimeout reports whether err is a request timeout against a worker.
func IsUpstreamTimeout(err error) bool {
	var e upstreamError
	return errors.As(err, &e) && e.timeout
}

// transportError marks a failure before any response byte arrived, which is
// the only case that gets retried.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
