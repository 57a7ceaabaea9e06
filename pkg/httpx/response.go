package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the stable error envelope every failed request gets.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`

	// RetryAfter is only populated on rate-limit rejections (seconds).
	RetryAfter int `json:"retryAfter,omitempty"`
}

// WriteJSON writes a JSON response with the given status code. It sets
// Content-Type and no-store cache headers; most of what this service returns
// is tokens or account data that must never be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the {success: true, data: ...} envelope.
func WriteData(w http.ResponseWriter, code int, v any) {
	WriteJSON(w, code, map[string]any{"success": true, "data": v})
}

// WriteMessage writes a {success: true, message: ...} body.
func WriteMessage(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]any{"success": true, "message": msg})
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}

// NoCache sets Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
