// Package api defines the JSON response envelope shared by all Distro services.
package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON serialises v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
