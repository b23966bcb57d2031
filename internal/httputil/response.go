package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
)

// errorEnvelope is the uniform error body every daemon endpoint returns.
type errorEnvelope struct {
	Error string `json:"error"`
}

// WriteJSON encodes data as the response body with the given status. Encode
// failures are logged rather than surfaced: the status line has already been
// written, so there is nothing better to tell the client.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes data with a 200 status.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes an error envelope with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorEnvelope{Error: msg})
}

// BadRequest rejects a malformed request with a 400 envelope.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound reports a missing resource with a 404 envelope.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// MethodNotAllowed rejects an unsupported verb with a 405 envelope.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// InternalServerError reports a handler failure with a 500 envelope.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}
