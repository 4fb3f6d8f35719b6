package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/warp/kirana-ledger/core"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError renders a service error with its status, code and details.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var (
		rej      *core.RejectionError
		conflict *core.ConflictError
		invalid  *core.ValidationError
	)
	switch {
	case errors.As(err, &rej):
		resp.Code = rej.Code
		if rej.Available != nil {
			resp.Details = map[string]int{"available": *rej.Available}
		}
	case errors.As(err, &conflict):
		resp.Code = conflict.Code
		if core.IsRetryable(err) {
			resp.Details = map[string]bool{"retryable": true}
		}
	case errors.As(err, &invalid):
		resp.Code = "validation"
		if invalid.Field != "" {
			resp.Details = map[string]string{"field": invalid.Field}
		}
	}

	if !core.IsClientError(err) && !core.IsNotFound(err) {
		log.Printf("[API] internal error: %v", err)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
