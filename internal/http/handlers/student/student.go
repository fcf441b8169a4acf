// Package student contains the JSON API handlers for the Student resource.
//
// Handlers are built with the closure / factory pattern: the router wants
// func(http.ResponseWriter, *http.Request), which has no room for a store,
// so each exported function takes its dependencies once at startup and
// returns the handler that runs on every request.
//
//	router.HandleFunc("POST /api/students", student.New(store, v))
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/utils/response"
	"github.com/aanand-mishra/student-records/internal/validation"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
//
// Request body (JSON):
//
//	{ "registrationNumber": "A123", "fullName": "Jane Doe", "email": "jane@x.com" }
//
// Success response (201 Created):
//
//	{ "id": "3f1c…" }
//
// Error responses:
//
//	400 Bad Request  — empty body or malformed JSON
//	422 Unprocessable — failed validation (per-field messages in "fields")
//	409 Conflict     — registration number already in use
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}

		if errs := v.Validate(fields); errs != nil {
			response.WriteJSON(w, http.StatusUnprocessableEntity, response.ValidationError(errs))
			return
		}

		id, err := store.CreateStudent(r.Context(), fields)
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		slog.Info("student created", slog.String("id", id))
		response.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/students/{id}
//
// Success response (200 OK):
//
//	{ "id": "3f1c…", "registrationNumber": "A123", "fullName": "Jane Doe", "email": "jane@x.com" }
//
// Error responses:
//
//	404 Not Found    — no student with that id
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("getting a student", slog.String("id", id))

		student, err := store.GetStudentByID(r.Context(), id)
		if err != nil {
			slog.Error("error getting student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// GetList handles GET /api/students and returns a JSON array of every
// student ([] when there are none).
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := store.GetStudents(r.Context())
		if err != nil {
			slog.Error("error getting students", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/students/{id}
// Replaces all three editable fields; the id in the path is the only
// identity used, whatever the body says.
//
// Success response (200 OK) — the stored student after the update.
//
// Error responses:
//
//	400 Bad Request  — empty body or malformed JSON
//	422 Unprocessable — failed validation
//	404 Not Found    — no student with that id
//	409 Conflict     — registration number already in use
//	500 Internal     — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(store storage.Storage, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a student", slog.String("id", id))

		fields, ok := decodeFields(w, r)
		if !ok {
			return
		}

		if errs := v.Validate(fields); errs != nil {
			response.WriteJSON(w, http.StatusUnprocessableEntity, response.ValidationError(errs))
			return
		}

		if err := store.UpdateStudentByID(r.Context(), id, fields); err != nil {
			slog.Error("error updating student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		updated, err := store.GetStudentByID(r.Context(), id)
		if err != nil {
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// snapshotEvent is the JSON payload of one Server-Sent Event.
type snapshotEvent struct {
	Status  string         `json:"status"`
	Student *types.Student `json:"student,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Watch handles GET /api/students/{id}/watch
// Streams the reactive read as Server-Sent Events until the client goes
// away:
//
//	event: snapshot
//	data: {"status":"pending"}
//
//	event: snapshot
//	data: {"status":"found","student":{"id":"…", …}}
//
// ─────────────────────────────────────────────────────────────────────────────
func Watch(store storage.Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("watching a student", slog.String("id", id))

		rc := http.NewResponseController(w)
		// The server's WriteTimeout would cut the stream; this connection
		// stays open for as long as the client listens.
		if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		for snap := range store.WatchStudent(r.Context(), id) {
			ev := snapshotEvent{Status: snap.Status.String()}
			if snap.Status == storage.StatusFound {
				student := snap.Student
				ev.Student = &student
			}
			if snap.Err != nil {
				ev.Error = snap.Err.Error()
			}

			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("error encoding snapshot", slog.String("error", err.Error()))
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}

		slog.Info("watch closed", slog.String("id", id))
	}
}

// decodeFields reads the JSON body. On failure it has already written the
// 400 answer and returns false.
func decodeFields(w http.ResponseWriter, r *http.Request) (types.StudentFields, bool) {
	var fields types.StudentFields

	err := json.NewDecoder(r.Body).Decode(&fields)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return fields, false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return fields, false
	}

	return fields, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
