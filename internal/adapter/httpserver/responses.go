// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the interview session API: starting a session from uploaded
// documents, answering by audio or text, generating the evaluation report
// and podcast, and serving synthesized audio. Handlers translate HTTP into
// usecase calls and map domain errors to status codes.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	intobs "github.com/fairyhunter13/ai-interview-coach/internal/observability"
)

var (
	errUnsupportedMedia = fmt.Errorf("%w: unsupported media type", domain.ErrInvalidArgument)
	errNotAcceptable    = fmt.Errorf("%w: not acceptable", domain.ErrInvalidArgument)
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy to an HTTP status and code.
// ErrNotFound is checked before ErrPrecondition so "no report yet" is a 404.
func statusFor(err error) (int, string) {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, errNotAcceptable):
		return http.StatusNotAcceptable, "NOT_ACCEPTABLE"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusUnprocessableEntity, "PRECONDITION_FAILED"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusServiceUnavailable, "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return http.StatusServiceUnavailable, "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, domain.ErrMalformedOutput):
		return http.StatusBadGateway, "MALFORMED_OUTPUT"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "UPSTREAM"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code, codeStr := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		intobs.LoggerFromContext(r.Context()).Error("request failed",
			slog.Int("status", code), slog.Any("error", err))
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
