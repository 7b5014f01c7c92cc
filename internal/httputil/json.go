// Package httputil holds the JSON response helpers shared by the admin
// API handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marketbet/referral-bot/internal/apperr"
)

// ErrorResponse is the uniform error envelope of the admin API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error envelope.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}

// WriteAppError maps an application error onto an HTTP status: malformed
// input is 400, missing entities 404, conflicting state transitions 409,
// and everything else 500 with a generic message.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	msg := "internal server error"

	switch appErr.Code {
	case "E100":
		status, msg = http.StatusBadRequest, appErr.Message
	case "E110":
		status, msg = http.StatusNotFound, appErr.Message
	case "E120":
		status, msg = http.StatusConflict, appErr.Message
	}

	WriteJSON(w, status, ErrorResponse{Error: msg, Code: appErr.Code})
}
