package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// FloatParam parses the named query parameter as a float64. A missing
// parameter returns def; a malformed one returns an error naming the
// parameter so the handler can echo it back to the client.
func FloatParam(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %q is not a number", name, s)
	}
	return v, nil
}

// RequiredFloatParam is FloatParam for parameters with no default.
func RequiredFloatParam(r *http.Request, name string) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("parameter %q is required", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %q is not a number", name, s)
	}
	return v, nil
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
