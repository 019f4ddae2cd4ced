// Package jsonutil writes the few JSON responses the site serves: health
// probes and auth failures for non-browser clients.
package jsonutil

import (
	"encoding/json"
	"net/http"
	"strings"
)

// JSON writes v with status. Responses are never cached so probes and
// auth errors always reflect the current state.
func JSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// OK writes v with 200.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// ErrorBody is the shape of every JSON error.
type ErrorBody struct {
	Error string `json:"error"`
}

// Error writes {"error": msg} with status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Wants reports whether the client prefers JSON to HTML: the first of the
// two media types listed in Accept wins.
func Wants(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "application/json"):
			return true
		case strings.HasPrefix(part, "text/html"):
			return false
		}
	}
	return false
}
