// Package form implements the two student screens as state machines that
// know nothing about HTML: Create collects three fields and calls the store's
// create; Edit loads a student reactively, pre-fills the fields once, and
// calls update.
//
// A view drives a form with Set, Submit and Cancel and reads it back with
// State, Values, Errors and Err. Navigation leaves through a Navigator.
package form

import (
	"errors"
	"fmt"

	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/validation"
)

// State is where a form is in its lifecycle.
type State int

const (
	StateEditing State = iota
	StateSubmitting
	StateLoading
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateLoading:
		return "loading"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Navigator carries the only two signals a form sends to the application
// shell.
type Navigator interface {
	// ToList goes to the student list view.
	ToList()
	// Back returns to the previous view.
	Back()
}

var (
	// ErrSubmitInProgress is returned by Submit while an earlier
	// submission from the same form is still waiting on the store.
	ErrSubmitInProgress = errors.New("form: submission already in progress")

	// ErrNotEditable is returned by Edit.Submit before the student has
	// loaded, or after the store reported it missing.
	ErrNotEditable = errors.New("form: student is not loaded")

	// ErrClosed is returned once the form was closed or cancelled.
	ErrClosed = errors.New("form: closed")

	// ErrUnknownField is returned by Set for a name that is not one of the
	// student fields.
	ErrUnknownField = errors.New("form: unknown field")
)

// SubmitError wraps a store failure from create or update.
type SubmitError struct {
	Op  string
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s student: %v", e.Op, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// fieldSet is the editable state shared by both forms: current values and
// which fields the user has touched. Callers hold the owning form's mutex.
type fieldSet struct {
	values  types.StudentFields
	touched map[string]bool
	errs    validation.Errors
}

func (fs *fieldSet) set(name, value string) error {
	switch name {
	case types.FieldRegistrationNumber:
		fs.values.RegistrationNumber = value
	case types.FieldFullName:
		fs.values.FullName = value
	case types.FieldEmail:
		fs.values.Email = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if fs.touched == nil {
		fs.touched = make(map[string]bool, 3)
	}
	fs.touched[name] = true
	return nil
}

// revalidate runs the validator for live display. Untouched fields stay
// quiet so an empty form does not open covered in errors.
func (fs *fieldSet) revalidate(v *validation.Validator) {
	fs.errs = v.Validate(fs.values).Only(fs.touched)
}

// check is the authoritative pre-submit validation: every field counts as
// touched and every error is shown.
func (fs *fieldSet) check(v *validation.Validator) validation.Errors {
	fs.touched = map[string]bool{
		types.FieldRegistrationNumber: true,
		types.FieldFullName:           true,
		types.FieldEmail:              true,
	}
	errs := v.Validate(fs.values)
	fs.errs = errs
	return errs
}

func (fs *fieldSet) reset(values types.StudentFields) {
	fs.values = values
	fs.touched = nil
	fs.errs = nil
}

func (fs *fieldSet) errors() validation.Errors {
	if len(fs.errs) == 0 {
		return nil
	}
	out := make(validation.Errors, len(fs.errs))
	for k, v := range fs.errs {
		out[k] = v
	}
	return out
}
