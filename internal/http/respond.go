package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps error kinds to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, core.ErrWriteConflict):
		return http.StatusConflict, "write_conflict"
	case errors.Is(err, core.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, "precondition_failed"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrAdviceUnavailable), errors.Is(err, ErrCheckoutDisabled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="carteira"`)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
