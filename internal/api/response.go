package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

// ErrorEnvelope is the wire format of every error response.
type ErrorEnvelope struct {
	Error *command.Error `json:"error"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, `{"error":{"type":"internal","reason":"encode","description":%q}}`, err.Error())
	}
}

// WriteCommandError writes a structured error envelope with the HTTP
// status derived from the error type.
func WriteCommandError(w http.ResponseWriter, cerr *command.Error) {
	WriteJSON(w, statusFor(cerr), ErrorEnvelope{Error: cerr})
}
