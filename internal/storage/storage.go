// Package storage defines the contracts the rest of the application uses to
// talk to the Entity Store — the service that owns every persisted student.
//
// Forms and handlers depend only on these interfaces. The concrete SQLite
// backend lives in storage/sqlite, and storage/watch adds push-on-change
// reads on top of any Storage. Tests pass small fakes instead.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-records/internal/types"
)

// Sentinel errors. Implementations wrap them so callers can use errors.Is.
var (
	// ErrNotFound means the id does not resolve to any student.
	ErrNotFound = errors.New("student not found")

	// ErrDuplicate means a student with the same registration number
	// already exists.
	ErrDuplicate = errors.New("registration number already in use")
)

// Storage is the Entity Store contract.
type Storage interface {
	// CreateStudent inserts a new student and returns the id the store
	// assigned to it.
	CreateStudent(ctx context.Context, fields types.StudentFields) (string, error)

	// GetStudentByID fetches one student. Returns an error wrapping
	// ErrNotFound if no student has that id.
	GetStudentByID(ctx context.Context, id string) (types.Student, error)

	// GetStudents returns every student. Returns an empty slice (not nil)
	// if there are none.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// UpdateStudentByID replaces all three editable fields of an existing
	// student. Returns an error wrapping ErrNotFound if the id no longer
	// resolves.
	UpdateStudentByID(ctx context.Context, id string, fields types.StudentFields) error
}

// Status is the resolution state of a reactive read.
type Status int

const (
	// StatusPending: the store has not answered yet.
	StatusPending Status = iota
	// StatusFound: Snapshot.Student holds the current record.
	StatusFound
	// StatusNotFound: the id resolves to nothing, or the read failed
	// (Snapshot.Err is set in that case).
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Snapshot is one value pushed by a reactive read.
type Snapshot struct {
	Status  Status
	Student types.Student
	Err     error
}

// Watcher is a reactive read: WatchStudent pushes a Pending snapshot first,
// then the resolved value, then a fresh value every time the student
// changes. The channel is closed once ctx is done.
type Watcher interface {
	WatchStudent(ctx context.Context, id string) <-chan Snapshot
}

// Reactive is a Storage that also supports reactive reads. It is what the
// edit form needs.
type Reactive interface {
	Storage
	Watcher
}
