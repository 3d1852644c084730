package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// MaxJSONBody caps JSON request bodies at 4096 bytes.
const MaxJSONBody int64 = 4096

// RespondJSON writes payload as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response JSON", "error", err)
	}
}

// DecodeJSON parses the request body into dst, enforcing the body cap.
// On failure it writes a 400 response of the form {"error": "<reason>"}
// and returns false; the handler should return immediately.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		slog.Warn("failed to parse JSON", "error", err)
		RespondJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return false
	}
	return true
}
