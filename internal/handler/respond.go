package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"carprice/internal/api"
	"carprice/internal/observability"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func writeFieldErrors(w http.ResponseWriter, fe api.FieldErrors) {
	writeJSON(w, http.StatusBadRequest, fe)
}

// writeInternalError logs err with the request context and answers with a
// generic message.
func writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	observability.FromContext(r.Context()).Error(msg,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
		Error:     "Internal server error",
		RequestID: observability.RequestIDFromContext(r.Context()),
	})
}

// readBody reads at most maxBodyBytes of the request body.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		return nil, errInvalidBody
	}
	return body, nil
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errInvalidBody
	}
	return nil
}
