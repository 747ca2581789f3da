package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	Retryable bool     `json:"retryable"`
	ValidNext []string `json:"validNext,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// WriteError maps a typed core error to its HTTP status. Anything untyped is a 500.
func WriteError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, "request failed", err)
		return
	}

	body := errorBody{Error: err.Error(), Kind: kind, Retryable: apperr.Retryable(err)}
	var transitionErr *apperr.StateTransitionError
	if errors.As(err, &transitionErr) {
		body.ValidNext = transitionErr.ValidNext
	}

	log.Warn().Err(err).Str("kind", kind).Int("status", status).Msg("request rejected")
	WriteJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrTenantMismatch):
		return http.StatusForbidden, "tenant_mismatch"
	case errors.Is(err, apperr.ErrStateTransition):
		return http.StatusConflict, "state_transition"
	case errors.Is(err, apperr.ErrGuardViolation):
		return http.StatusUnprocessableEntity, "guard_violation"
	case errors.Is(err, apperr.ErrResourceConflict):
		return http.StatusConflict, "resource_conflict"
	case errors.Is(err, apperr.ErrOptimisticLock):
		return http.StatusConflict, "optimistic_lock"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	log.Error().Err(err).Msg(msg)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Kind: "internal"})
}
