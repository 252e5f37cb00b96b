// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE (CLOSURE / FACTORY):
// ────────────────────────────────────────────────────────────
// The router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// To inject dependencies each exported function is a factory: it takes
// Deps once at startup and returns the handler that runs on every request.
//
//	r.Post("/", student.New(deps))
//
// Handlers only translate between HTTP and the service. They decode and
// validate the body, parse the id, call one service method and write the
// envelope or the mapped error.
package student

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/dlvi/student-management/internal/types"
	"github.com/dlvi/student-management/internal/utils/response"
)

// Service is the subset of the student service the handlers call.
type Service interface {
	Register(ctx context.Context, in types.RegistrationInput) (types.StudentSummary, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]types.StudentSummary, error)
	Get(ctx context.Context, id int64) (types.StudentSummary, error)
	Patch(ctx context.Context, id int64, patch types.PatchInput) (types.StudentSummary, error)
}

// Deps are shared by every handler in this package.
type Deps struct {
	Service Service
	Logger  *slog.Logger
	// MaxBodyBytes caps request bodies. Zero means no cap.
	MaxBodyBytes int64
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	// Report fields by their JSON name: "birthDate", not "BirthDate".
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
// Registers a new student from the JSON request body.
//
// Request body (JSON):
//
//	{ "name": "Maximo", "email": "maximo@gmail.com", "birthDate": "2000-01-01", "sex": "Man" }
//
// Success response (201 Created):
//
//	{ "success": true, "message": "successful registration",
//	  "data": { "id": 1, "name": "Maximo", "email": "maximo@gmail.com" }, ... }
//
// Error responses:
//
//	400 Bad Request  — empty body, malformed JSON, or failed validation
//	409 Conflict     — email already registered
//	500 Internal     — storage failure
//
// ─────────────────────────────────────────────────────────────────────────────
func New(deps Deps) http.HandlerFunc {
	log := deps.logger()

	return func(w http.ResponseWriter, r *http.Request) {
		log.InfoContext(r.Context(), "registering a student")

		var req types.RegisterStudentRequest
		if !decodeAndValidate(w, r, deps.MaxBodyBytes, &req) {
			return
		}

		in, err := req.ToInput()
		if err != nil {
			response.WriteStatus(w, r, http.StatusBadRequest, "invalid birthDate: "+err.Error())
			return
		}

		summary, err := deps.Service.Register(r.Context(), in)
		if err != nil {
			response.WriteError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, response.OK(response.MsgRegistered, summary))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students
// Returns every student. data is [] (not null) when there are none and
// meta.total carries the count.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(deps Deps) http.HandlerFunc {
	log := deps.logger()

	return func(w http.ResponseWriter, r *http.Request) {
		log.InfoContext(r.Context(), "getting all students")

		students, err := deps.Service.List(r.Context())
		if err != nil {
			response.WriteError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.List(response.MsgStudentData, students))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/students/{id}
//
// Error responses:
//
//	400 Bad Request  — id is not a positive integer
//	404 Not Found    — no student with that id
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(deps Deps) http.HandlerFunc {
	log := deps.logger()

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		log.InfoContext(r.Context(), "getting a student", slog.Int64("id", id))

		summary, err := deps.Service.Get(r.Context(), id)
		if err != nil {
			response.WriteError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.OK(response.MsgStudentData, summary))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Patch handles PATCH /api/students/{id}
// Overwrites name and email. Both are required; birthDate and sex are
// never changed by this endpoint.
//
//	{ "name": "Kaka", "email": "kaka@gmail.com" }
//
// Error responses:
//
//	400 Bad Request  — invalid id, empty body, or validation failure
//	404 Not Found    — no student with that id
//	409 Conflict     — email used by another student
//
// ─────────────────────────────────────────────────────────────────────────────
func Patch(deps Deps) http.HandlerFunc {
	log := deps.logger()

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		log.InfoContext(r.Context(), "patching a student", slog.Int64("id", id))

		var req types.PatchStudentRequest
		if !decodeAndValidate(w, r, deps.MaxBodyBytes, &req) {
			return
		}

		summary, err := deps.Service.Patch(r.Context(), id, req.ToInput())
		if err != nil {
			response.WriteError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.OK(response.MsgUpdated, summary))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /api/students/{id}
// Permanently removes a student record. data is an empty object.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(deps Deps) http.HandlerFunc {
	log := deps.logger()

	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		log.InfoContext(r.Context(), "deleting a student", slog.Int64("id", id))

		if err := deps.Service.Delete(r.Context(), id); err != nil {
			response.WriteError(w, r, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.OK(response.MsgRemoved, struct{}{}))
	}
}

// pathID parses the {id} URL parameter. Anything that is not an integer
// of at least 1 gets a 400 and ok == false.
func pathID(w http.ResponseWriter, r *http.Request) (id int64, ok bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		response.WriteStatus(w, r, http.StatusBadRequest,
			fmt.Sprintf("invalid id %q: must be a positive integer", raw))
		return 0, false
	}
	return id, true
}

// decodeAndValidate reads exactly one JSON object into dst and runs the
// validate:"..." rules on it. On failure it has already written the
// response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.WriteStatus(w, r, http.StatusBadRequest, "request body is empty")
		case errors.As(err, &tooLarge):
			response.WriteStatus(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit))
		default:
			response.WriteStatus(w, r, http.StatusBadRequest, "malformed request body: "+err.Error())
		}
		return false
	}
	if dec.More() {
		response.WriteStatus(w, r, http.StatusBadRequest, "request body must contain a single JSON object")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			response.WriteStatus(w, r, http.StatusInternalServerError, response.MsgInternal)
			return false
		}
		response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(verrs))
		return false
	}
	return true
}
