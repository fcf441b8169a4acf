// Package studentform serves the HTML screens: the student list, the create
// form and the edit form.
//
// Each request builds a fresh form.Create or form.Edit, feeds it the posted
// values, and turns its navigation signals into HTTP redirects. The page
// itself is only a rendering of the form's state; the rules live in package
// form and package validation.
package studentform

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aanand-mishra/student-records/internal/form"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/utils/response"
	"github.com/aanand-mishra/student-records/internal/validation"
)

// ListPath is where a successful create or update lands.
const ListPath = "/students"

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var fieldNames = []string{
	types.FieldRegistrationNumber,
	types.FieldFullName,
	types.FieldEmail,
}

// formView is what the "form" template renders.
type formView struct {
	Title    string
	Action   string
	Submit   string
	Values   types.StudentFields
	Errors   validation.Errors
	Err      string
	ReturnTo string
}

// redirect is the HTTP Navigator: it records where the form wants to go
// and the handler answers with a 303 to that place.
type redirect struct {
	back   string
	target string
}

func (n *redirect) ToList() { n.target = ListPath }
func (n *redirect) Back()   { n.target = n.back }

// List handles GET /students — the list view both forms navigate to.
func List(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := store.GetStudents(r.Context())
		if err != nil {
			slog.Error("error listing students", slog.String("error", err.Error()))
			http.Error(w, "could not load students", http.StatusInternalServerError)
			return
		}
		render(w, http.StatusOK, "list", struct{ Students []types.Student }{students})
	}
}

// CreatePage handles GET /students/new.
func CreatePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, http.StatusOK, "form", createView(types.StudentFields{}, nil, nil, backFromReferer(r)))
	}
}

// CreateSubmit handles POST /students/new: either the cancel button or a
// submission.
func CreateSubmit(store form.Creator, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		nav := &redirect{back: safeReturn(r.PostForm.Get("return_to"))}
		f := form.NewCreate(store, nav, v, slog.Default())

		if r.PostForm.Get("action") == "cancel" {
			f.Cancel()
			http.Redirect(w, r, nav.target, http.StatusSeeOther)
			return
		}

		for _, name := range fieldNames {
			if err := f.Set(name, r.PostForm.Get(name)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		_, err := f.Submit(r.Context())
		if err == nil {
			http.Redirect(w, r, nav.target, http.StatusSeeOther)
			return
		}

		render(w, statusFor(err), "form", createView(f.Values(), f.Errors(), f.Err(), nav.back))
	}
}

// EditPage handles GET /students/{id}/edit. It waits up to loadTimeout for
// the store to resolve the student; past that it renders a loading page
// that refreshes itself.
func EditPage(store form.Editor, v *validation.Validator, loadTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		back := backFromReferer(r)

		f := form.NewEdit(store, &redirect{back: back}, v, slog.Default())
		defer f.Close()

		if !load(w, r, f, id, back, loadTimeout) {
			return
		}

		render(w, http.StatusOK, "form", editView(f, id, back))
	}
}

// EditSubmit handles POST /students/{id}/edit.
func EditSubmit(store form.Editor, v *validation.Validator, loadTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}

		nav := &redirect{back: safeReturn(r.PostForm.Get("return_to"))}
		f := form.NewEdit(store, nav, v, slog.Default())
		defer f.Close()

		// Cancel is available before the student has even loaded and
		// never touches the store.
		if r.PostForm.Get("action") == "cancel" {
			f.Cancel()
			http.Redirect(w, r, nav.target, http.StatusSeeOther)
			return
		}

		if !load(w, r, f, id, nav.back, loadTimeout) {
			return
		}

		for _, name := range fieldNames {
			if err := f.Set(name, r.PostForm.Get(name)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		err := f.Submit(r.Context())
		if err == nil {
			http.Redirect(w, r, nav.target, http.StatusSeeOther)
			return
		}

		render(w, statusFor(err), "form", editView(f, id, nav.back))
	}
}

// Validate handles POST /students/validate, the live-validation endpoint
// a page calls on every field change. It checks each posted student field
// on its own and answers with the messages of the failing ones:
//
//	{ "fullName": "name must have at least 4 characters" }
func Validate(v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		errs := map[string]string{}
		for _, name := range fieldNames {
			if _, posted := r.PostForm[name]; !posted {
				continue
			}
			if msg, _ := v.Field(name, r.PostForm.Get(name)); msg != "" {
				errs[name] = msg
			}
		}

		response.WriteJSON(w, http.StatusOK, errs)
	}
}

// load starts the edit form and waits for it to resolve. When it returns
// false the answer (loading or not found) has been written already.
func load(w http.ResponseWriter, r *http.Request, f *form.Edit, id, back string, timeout time.Duration) bool {
	if err := f.Load(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := f.Ready(ctx); err != nil {
		if r.Context().Err() != nil {
			return false
		}
		slog.Info("student still loading", slog.String("id", id))
		render(w, http.StatusOK, "loading", struct{ ReturnTo string }{back})
		return false
	}

	if f.State() == form.StateNotFound {
		if err := f.Err(); err != nil {
			slog.Error("error loading student",
				slog.String("id", id),
				slog.String("error", err.Error()))
		}
		render(w, http.StatusNotFound, "notfound", struct{ ReturnTo string }{back})
		return false
	}

	return true
}

func createView(values types.StudentFields, errs validation.Errors, err error, back string) formView {
	return formView{
		Title:    "New student",
		Action:   "/students/new",
		Submit:   "Create student",
		Values:   values,
		Errors:   errs,
		Err:      errText(err),
		ReturnTo: back,
	}
}

func editView(f *form.Edit, id, back string) formView {
	title := "Edit student"
	if remote, ok := f.Remote(); ok {
		title = "Edit " + remote.FullName
	}
	return formView{
		Title:    title,
		Action:   "/students/" + url.PathEscape(id) + "/edit",
		Submit:   "Save changes",
		Values:   f.Values(),
		Errors:   f.Errors(),
		Err:      errText(f.Err()),
		ReturnTo: back,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	var submitErr *form.SubmitError
	if errors.As(err, &submitErr) {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return "A student with this registration number already exists."
		case errors.Is(err, storage.ErrNotFound):
			return "This student no longer exists."
		}
		return "Could not save the student. Please try again."
	}
	return err.Error()
}

func statusFor(err error) int {
	var errs validation.Errors
	switch {
	case errors.As(err, &errs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// backFromReferer picks the "go back" target for a freshly rendered page:
// the referring page when it is on this site, the list otherwise.
func backFromReferer(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host {
		return ListPath
	}
	return safeReturn(ref.RequestURI())
}

// safeReturn only lets local absolute paths through, so a posted return_to
// cannot redirect off-site.
func safeReturn(s string) string {
	if s == "" || !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return ListPath
	}
	u, err := url.Parse(s)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ListPath
	}
	return s
}

// render executes into a buffer first so a template error can still turn
// into a clean 500.
func render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("error rendering page",
			slog.String("page", name),
			slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
