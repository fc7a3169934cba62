// Package handlers implements the HTTP adapters: request decoding and
// validation, outcome-to-status mapping, and per-IP rate limiting.
package handlers

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a machine-checkable error plus a human-readable detail.
func writeError(w http.ResponseWriter, status int, errCode, detail string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errCode,
		"detail":  detail,
	})
}
