package http

import (
	"encoding/json"
	"net/http"

	"github.com/campusware/campus/pkg/httpx"
)

// maxBodyBytes caps request bodies; nothing this service accepts is large.
const maxBodyBytes = 64 << 10

// decodeJSON decodes the request body into dst, writing a VALIDATION_ERROR
// response and returning false on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body")
		return false
	}
	return true
}
