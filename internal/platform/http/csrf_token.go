package http

import (
	"net/http"

	"github.com/campusware/campus/pkg/httpx"
)

// CsrfTokenHandler echoes the token the guard has already issued for this
// request (the guard runs on every safe method and leaves the fresh token in
// the response header and cookie before the handler executes).
func CsrfTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := w.Header().Get(httpx.CsrfHeaderName)
		if token == "" {
			httpx.WriteError(w, http.StatusInternalServerError, "", "internal server error")
			return
		}
		httpx.WriteData(w, http.StatusOK, map[string]string{"csrfToken": token})
	}
}
