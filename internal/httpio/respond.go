/*
Package httpio holds the tiny JSON response helpers every service's api
package uses, so the wire shape (and its "code" field, read back by
internal/transport) stays identical across all four services instead of
drifting copy to copy.

Grounded on the teacher's api/handlers.go writeJSON/writeError pair.
*/
package httpio

import (
	"encoding/json"
	"net/http"

	"github.com/warp/checkout-saga/internal/apierr"
)

// ErrorResponse is the JSON body written on any non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a status/message pair with no machine-readable code.
func WriteError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	WriteJSON(w, status, resp)
}

// WriteAPIError inspects err against the apierr taxonomy, picks the status
// code and machine-readable code together, and writes both.
func WriteAPIError(w http.ResponseWriter, err error) {
	status := apierr.StatusCode(err)
	code := ""
	switch {
	case apierr.IsNotFound(err):
		code = "not_found"
	case err != nil && status == 400:
		code = "underflow"
	case status == 409:
		code = "conflict"
	}
	WriteJSON(w, status, ErrorResponse{Code: code, Error: err.Error()})
}
