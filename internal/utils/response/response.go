// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler answers with one of three shapes:
//
//	Envelope       — success, or a failed validation with its field errors
//	ErrorResponse  — any other failure, carrying the status and request path
//	{"status":"ok"} — the health check
//
// Only the Envelope carries a "success" key.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dlvi/student-management/internal/service/student"
)

// ─────────────────────────────────────────────────────────────────────────────
// Envelope wraps every successful payload.
//
//	{ "timestamp": "...", "success": true, "message": "student data", "data": {...} }
//
// Meta is only set on list responses and is omitted otherwise.
// ─────────────────────────────────────────────────────────────────────────────
type Envelope struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Meta      *Meta     `json:"meta,omitempty"`
}

// Meta describes a list payload.
type Meta struct {
	Total int `json:"total"`
}

// ErrorResponse is the body of every non-validation failure.
//
//	{ "timestamp": "...", "status": 404, "error": "Not Found",
//	  "message": "student not found: id 3", "path": "/api/students/3" }
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// Response messages.
const (
	MsgRegistered       = "successful registration"
	MsgStudentData      = "student data"
	MsgUpdated          = "student successfully updated"
	MsgRemoved          = "student successfully removed"
	MsgValidationFailed = "validation failed"
	MsgInternal         = "internal server error"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// OK builds a success envelope.
func OK(message string, data any) Envelope {
	return Envelope{
		Timestamp: now(),
		Success:   true,
		Message:   message,
		Data:      data,
	}
}

// List builds a success envelope for a slice and records its length in
// meta.total.
func List[T any](message string, items []T) Envelope {
	env := OK(message, items)
	env.Meta = &Meta{Total: len(items)}
	return env
}

// WriteStatus writes an ErrorResponse for status with the given message.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, message string) error {
	return WriteJSON(w, status, ErrorResponse{
		Timestamp: now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
	})
}

// StatusFor maps a service error to its HTTP status.
//
//	ErrNotFound        → 404 (ErrRecordVanished included)
//	ErrDuplicateEmail  → 409
//	request deadline   → 504
//	anything else      → 500
func StatusFor(err error) int {
	switch {
	case errors.Is(err, student.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, student.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WriteError writes the ErrorResponse matching a service error.
//
// Client errors carry the error text as message. Server errors get a
// generic message: storage details stay in the logs.
// ─────────────────────────────────────────────────────────────────────────────
func WriteError(w http.ResponseWriter, r *http.Request, err error) error {
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = MsgInternal
	}
	return WriteStatus(w, r, status, message)
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError converts validator errors into a failed Envelope whose
// data maps each offending field to a message:
//
//	{ "success": false, "message": "validation failed",
//	  "data": { "name": "the name cannot be empty", "email": "..." } }
//
// Field names are whatever FieldError.Field reports, so register a tag
// name func on the validator to get JSON names.
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Envelope {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		// First failing rule per field wins.
		if _, seen := fields[e.Field()]; seen {
			continue
		}
		fields[e.Field()] = fieldMessage(e)
	}

	return Envelope{
		Timestamp: now(),
		Success:   false,
		Message:   MsgValidationFailed,
		Data:      fields,
	}
}

func fieldMessage(e validator.FieldError) string {
	switch e.ActualTag() {
	case "required", "notblank":
		return fmt.Sprintf("the %s cannot be empty", e.Field())
	case "email":
		return fmt.Sprintf("the %s must be a valid email address", e.Field())
	case "datetime":
		return fmt.Sprintf("the %s must be a date formatted as %s", e.Field(), "YYYY-MM-DD")
	default:
		return fmt.Sprintf("the %s is invalid", e.Field())
	}
}
