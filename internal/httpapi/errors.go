package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"visiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// codedError carries a machine-readable error code.
type codedError interface {
	Code() string
}

// statusOf maps err to an HTTP status, unwrapping as needed.
func statusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// codeOf returns err's own code, or a generic one derived from status.
func codeOf(err error, status int) string {
	var ce codedError
	if err != nil && errors.As(err, &ce) {
		return ce.Code()
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeAPIError writes an OpenAI-style error object, used under /v1.
func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	typ := "invalid_request_error"
	if status >= 500 {
		typ = "server_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIErrorResponse{Error: types.APIError{Message: msg, Type: typ, Code: code}})
}

func writeAPIErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	writeAPIError(w, status, codeOf(err, status), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
