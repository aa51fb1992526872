package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/pkg/vault"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a vault error to the HTTP status reported for it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrStorageNotFound), errors.Is(err, vault.ErrGrantNotFound):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrQuotaExhausted):
		return http.StatusConflict
	case errors.Is(err, vault.ErrInvalidGrant), errors.Is(err, vault.ErrInvalidEnvelope):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, slog.Any("error", err))
	} else {
		slog.Debug(msg, slog.Any("error", err))
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("could not encode response", slog.Any("error", err))
	}
}
