package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// errorResponse is the envelope for all non-2xx JSON responses.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func apiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON parses the request body into dst. Unknown fields and oversized
// bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("Anfrage zu groß (max. %d Bytes)", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return errors.New("Leerer Anfrage-Body")
		default:
			return fmt.Errorf("Ungültiges JSON: %v", err)
		}
	}

	// A second document after the first one is a malformed request.
	if dec.More() {
		return errors.New("Anfrage-Body enthält mehr als ein JSON-Dokument")
	}

	return nil
}
