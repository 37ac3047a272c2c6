package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Messages clients match on. The sync client treats msgCoordinatesRequired
// as a permanent rejection of a queued payload.
const (
	msgCoordinatesRequired = "Coordinates are required"
	msgNotFound            = "Location not found"
	msgInvalidBody         = "Invalid request body"
	msgInternal            = "Internal server error"
	msgRateLimited         = "Rate limit exceeded"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeError writes a failure envelope with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

// writeData writes a success envelope carrying data.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}
