package form

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/validation"
)

// Creator is the part of the store the create form uses.
type Creator interface {
	CreateStudent(ctx context.Context, fields types.StudentFields) (string, error)
}

// Create is the create-student form. States: Editing and Submitting.
type Create struct {
	store     Creator
	nav       Navigator
	validator *validation.Validator
	log       *slog.Logger

	mu        sync.Mutex
	state     State
	fields    fieldSet
	submitErr error
	closed    bool
}

// NewCreate returns an empty form in the Editing state. A nil log falls
// back to slog.Default().
func NewCreate(store Creator, nav Navigator, v *validation.Validator, log *slog.Logger) *Create {
	if log == nil {
		log = slog.Default()
	}
	return &Create{
		store:     store,
		nav:       nav,
		validator: v,
		log:       log,
		state:     StateEditing,
	}
}

// Set changes one field and refreshes the live errors.
func (f *Create) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if err := f.fields.set(name, value); err != nil {
		return err
	}
	f.fields.revalidate(f.validator)
	return nil
}

// Submit validates every field and, if they all pass, calls CreateStudent
// once. On success the form is cleared and the navigator is sent to the
// list. Returned errors are validation.Errors, *SubmitError,
// ErrSubmitInProgress or ErrClosed.
func (f *Create) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return "", ErrClosed
	}
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return "", ErrSubmitInProgress
	}
	if errs := f.fields.check(f.validator); errs != nil {
		f.mu.Unlock()
		return "", errs
	}
	fields := f.fields.values
	f.state = StateSubmitting
	f.submitErr = nil
	f.mu.Unlock()

	id, err := f.store.CreateStudent(ctx, fields)

	f.mu.Lock()
	defer f.mu.Unlock()

	// Closed while the store was busy: the view is gone, so neither the
	// result nor the navigation applies.
	if f.closed {
		if err != nil {
			return "", &SubmitError{Op: "create", Err: err}
		}
		return id, ErrClosed
	}

	f.state = StateEditing
	if err != nil {
		f.submitErr = &SubmitError{Op: "create", Err: err}
		f.log.Error("create student failed", slog.String("error", err.Error()))
		return "", f.submitErr
	}

	f.log.Info("student created", slog.String("id", id))
	f.fields.reset(types.StudentFields{})
	f.nav.ToList()
	return id, nil
}

// Cancel leaves the form without touching the store.
func (f *Create) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	f.fields.reset(types.StudentFields{})
	f.nav.Back()
}

// Close discards the form, for example when the view goes away. A
// submission still in flight completes in the store but is not applied.
func (f *Create) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *Create) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Create) Values() types.StudentFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.values
}

// Errors returns the field errors currently on display.
func (f *Create) Errors() validation.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.errors()
}

// Err returns the last store failure, cleared by the next Submit.
func (f *Create) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitErr
}
