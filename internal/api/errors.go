package api

import (
	"errors"
	"net/http"

	"github.com/martinslabber/tape-library-robot-control/internal/command"
)

// statusMisdirected is returned when a request names a cell this library
// does not serve.
const statusMisdirected = 421

// statusFor maps a structured error to its HTTP status code.
func statusFor(cerr *command.Error) int {
	switch cerr.Type {
	case command.ErrTypeParameter, command.ErrTypeMethod:
		return http.StatusUnprocessableEntity
	case command.ErrTypeResource:
		return statusMisdirected
	case command.ErrTypeLock:
		return http.StatusForbidden
	case command.ErrTypeTaskQueue:
		return http.StatusTooManyRequests
	case command.ErrTypeConflict:
		return http.StatusConflict
	case command.ErrTypeCommand:
		if cerr.Reason == "unknown" {
			return http.StatusNotFound
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts any error into the envelope format. Errors that are
// not *command.Error become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var cerr *command.Error
	if errors.As(err, &cerr) {
		WriteCommandError(w, cerr)
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorEnvelope{Error: &command.Error{
		Type:        "internal",
		Reason:      "error",
		Description: err.Error(),
	}})
}
