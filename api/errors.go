/*
errors.go - Response envelope and HTTP status mapping

SUCCESS:
  { "data": ..., "warnings": [...] }

FAILURE:
  { "error": msg, "details": ..., "errors": [...], "warnings": [...] }

STATUS MAPPING:
  422  validation failure (errors and warnings from the validator)
  400  invalid data, malformed body
  404  not found
  403  immutable (lifecycle forbids the change)
  409  dependents block a delete, duplicate ear tag
  503  per-sow lock not acquired in time
  500  everything else (details withheld)
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// Envelope wraps every successful response.
type Envelope struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse is the body of every failed response.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  any      `json:"details,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any, warnings ...string) {
	writeJSON(w, status, Envelope{Data: data, Warnings: warnings})
}

// writeBadRequest reports a body or parameter that could not be parsed.
func writeBadRequest(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeError maps a domain error to its status and body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var (
		verr *breeding.ValidationError
		ierr *breeding.InvalidDataError
		derr *breeding.DependentsError
	)
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Operation + " rejected"
		resp.Errors = verr.Result.Errors
		resp.Warnings = verr.Result.Warnings
	case errors.As(err, &ierr):
		resp.Details = map[string]string{"field": ierr.Field, "reason": ierr.Reason}
	case errors.As(err, &derr):
		resp.Details = map[string]any{"dependent": derr.Dependent, "count": derr.Count}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		resp = ErrorResponse{Error: "internal error"}
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, breeding.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, breeding.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, breeding.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, breeding.ErrImmutable):
		return http.StatusForbidden
	case errors.Is(err, breeding.ErrHasDependents), errors.Is(err, breeding.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, breeding.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// decode reads a JSON body into v, rejecting unknown fields and trailing data.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
