package form

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
	"github.com/aanand-mishra/student-records/internal/validation"
)

// Editor is the part of the store the edit form uses.
type Editor interface {
	storage.Watcher
	UpdateStudentByID(ctx context.Context, id string, fields types.StudentFields) error
}

// Edit is the edit-student form. States: Loading, NotFound, Editing and
// Submitting.
//
// Every Load starts a new generation. Snapshots are tagged with the
// generation they were requested in and dropped if a newer Load, a Cancel
// or a Close happened since, so a slow answer for an old id never lands in
// the fields.
type Edit struct {
	store     Editor
	nav       Navigator
	validator *validation.Validator
	log       *slog.Logger

	mu     sync.Mutex
	state  State
	target string // id requested by the latest Load

	// loadedID is the identity the fields were initialized from. Update
	// always targets it, whatever the user typed.
	loadedID string
	remote   types.Student
	gone     bool // store reported the loaded student missing after it loaded
	loadErr  error

	fields    fieldSet
	submitErr error

	gen         uint64
	stop        context.CancelFunc
	ready       chan struct{}
	readyClosed bool
	closed      bool
}

// NewEdit returns a form in the Loading state. Call Load to start fetching.
func NewEdit(store Editor, nav Navigator, v *validation.Validator, log *slog.Logger) *Edit {
	if log == nil {
		log = slog.Default()
	}
	return &Edit{
		store:     store,
		nav:       nav,
		validator: v,
		log:       log,
		state:     StateLoading,
		ready:     make(chan struct{}),
	}
}

// Load subscribes to the student with the given id. The subscription
// lives until ctx is done, the form is closed, or Load is called again.
//
// Loading the id the fields already came from keeps the unsaved edits.
func (f *Edit) Load(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.state == StateSubmitting {
		return ErrSubmitInProgress
	}

	if f.stop != nil {
		f.stop()
	}
	f.gen++
	gen := f.gen

	wctx, stop := context.WithCancel(ctx)
	f.stop = stop
	f.target = id
	f.state = StateLoading
	f.loadErr = nil
	f.gone = false
	if f.readyClosed {
		f.ready = make(chan struct{})
		f.readyClosed = false
	}

	f.log.Debug("loading student", slog.String("id", id))

	ch := f.store.WatchStudent(wctx, id)
	go func() {
		for snap := range ch {
			f.apply(gen, snap)
		}
	}()

	return nil
}

func (f *Edit) apply(gen uint64, snap storage.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || gen != f.gen {
		return
	}

	switch {
	case snap.Status == storage.StatusPending:
		return

	case f.state == StateNotFound:
		// Terminal for this generation.
		return

	case snap.Status == storage.StatusNotFound:
		if f.state == StateLoading {
			f.state = StateNotFound
			f.loadErr = snap.Err
			f.log.Info("student not found", slog.String("id", f.target))
		} else {
			// Keep the user's edits; the next update will fail and say so.
			f.gone = true
		}

	case snap.Status == storage.StatusFound:
		f.remote = snap.Student
		f.gone = false
		if snap.Student.ID != f.loadedID {
			f.loadedID = snap.Student.ID
			f.fields.reset(snap.Student.Fields())
		}
		if f.state == StateLoading {
			f.state = StateEditing
		}
	}

	f.markReady()
}

// markReady releases Ready waiters. Callers hold f.mu.
func (f *Edit) markReady() {
	if !f.readyClosed {
		close(f.ready)
		f.readyClosed = true
	}
}

// Ready blocks until the current Load has resolved (found or not found),
// the form is closed, or ctx is done.
func (f *Edit) Ready(ctx context.Context) error {
	f.mu.Lock()
	ready := f.ready
	f.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	return nil
}

// Set changes one field and refreshes the live errors. Only allowed while
// Editing.
func (f *Edit) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.state != StateEditing {
		return ErrNotEditable
	}
	if err := f.fields.set(name, value); err != nil {
		return err
	}
	f.fields.revalidate(f.validator)
	return nil
}

// Submit validates every field and, if they all pass, calls
// UpdateStudentByID with the loaded id. On success the navigator goes to
// the list and the subscription is released. Returned errors are
// validation.Errors, *SubmitError, ErrNotEditable, ErrSubmitInProgress or
// ErrClosed.
func (f *Edit) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return ErrSubmitInProgress
	case StateLoading, StateNotFound:
		f.mu.Unlock()
		return ErrNotEditable
	}
	if errs := f.fields.check(f.validator); errs != nil {
		f.mu.Unlock()
		return errs
	}
	id := f.loadedID
	fields := f.fields.values
	f.state = StateSubmitting
	f.submitErr = nil
	f.mu.Unlock()

	err := f.store.UpdateStudentByID(ctx, id, fields)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		if err != nil {
			return &SubmitError{Op: "update", Err: err}
		}
		return ErrClosed
	}

	f.state = StateEditing
	if err != nil {
		f.submitErr = &SubmitError{Op: "update", Err: err}
		f.log.Error("update student failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		return f.submitErr
	}

	f.log.Info("student updated", slog.String("id", id))
	f.shutdown()
	f.nav.ToList()
	return nil
}

// Cancel leaves the form without touching the store. Available from every
// state; a pending fetch or submission is not applied afterwards.
func (f *Edit) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.shutdown()
	f.fields.reset(types.StudentFields{})
	f.nav.Back()
}

// Close discards the form without navigating.
func (f *Edit) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.shutdown()
	}
}

// shutdown stops the subscription and invalidates the current generation.
// Callers hold f.mu.
func (f *Edit) shutdown() {
	f.closed = true
	f.gen++
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
	f.markReady()
}

func (f *Edit) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// ID returns the identity the fields were loaded from, or "" before the
// first successful load.
func (f *Edit) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadedID
}

func (f *Edit) Values() types.StudentFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.values
}

// Remote returns the latest copy pushed by the store and whether the
// student is currently known to exist.
func (f *Edit) Remote() (types.Student, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote, f.loadedID != "" && !f.gone
}

// Errors returns the field errors currently on display.
func (f *Edit) Errors() validation.Errors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields.errors()
}

// Err returns the last store failure: the update error while Editing, or
// the read error that led to NotFound.
func (f *Edit) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	return f.loadErr
}
