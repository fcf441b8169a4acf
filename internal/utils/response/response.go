// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every JSON handler in this application answers through WriteJSON, and
// every error answer has the same envelope, so API consumers always know
// what a failure looks like.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/aanand-mishra/student-records/internal/validation"
)

// Response is the standard envelope returned for error cases.
//
// Success responses may return any JSON shape (a student, a list, an id…).
// Error responses always look like:
//
//	{ "status": "error", "error": "fullName: name must have at least 4 characters",
//	  "fields": { "fullName": "name must have at least 4 characters" } }
//
// Fields is only present for validation failures.
type Response struct {
	Status string            `json:"status"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Status string constants — use these instead of raw string literals so
// a typo is caught by the compiler.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// Order matters: Header() → WriteHeader() → body. Once WriteHeader is
// called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into our standard Response shape.
// Use this for unexpected errors (DB failures, decode errors, etc.)
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError converts field errors into a Response that carries both
// a single readable sentence and the per-field messages.
func ValidationError(errs validation.Errors) Response {
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[k] = v
	}
	return Response{
		Status: StatusError,
		Error:  errs.Error(),
		Fields: fields,
	}
}
