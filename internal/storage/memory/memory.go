// Package memory provides an in-memory storage.Storage for tests and
// throwaway environments. It enforces the same constraints as the SQLite
// backend: unique registration numbers and ErrNotFound for unknown ids.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

var _ storage.Storage = (*Store)(nil)

// Store keeps students in a map guarded by a mutex.
type Store struct {
	mu       sync.RWMutex
	students map[string]types.Student

	// NewID generates ids for CreateStudent. Defaults to uuid.NewString;
	// tests replace it to get predictable ids.
	NewID func() string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		students: make(map[string]types.Student),
		NewID:    uuid.NewString,
	}
}

// Seed inserts a student with a caller-chosen id, bypassing the uniqueness
// check. It is meant for test fixtures.
func (s *Store) Seed(student types.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
}

func (s *Store) CreateStudent(ctx context.Context, fields types.StudentFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taken(fields.RegistrationNumber, "") {
		return "", fmt.Errorf("CreateStudent: %w", storage.ErrDuplicate)
	}

	id := s.NewID()
	s.students[id] = types.Student{ID: id, StudentFields: fields}
	return id, nil
}

func (s *Store) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	if err := ctx.Err(); err != nil {
		return types.Student{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	student, ok := s.students[id]
	if !ok {
		return types.Student{}, fmt.Errorf("no student found with id %q: %w", id, storage.ErrNotFound)
	}
	return student, nil
}

func (s *Store) GetStudents(ctx context.Context) ([]types.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	students := make([]types.Student, 0, len(s.students))
	for _, st := range s.students {
		students = append(students, st)
	}
	sort.Slice(students, func(i, j int) bool {
		return students[i].RegistrationNumber < students[j].RegistrationNumber
	})
	return students, nil
}

func (s *Store) UpdateStudentByID(ctx context.Context, id string, fields types.StudentFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return fmt.Errorf("UpdateStudentByID: id %q: %w", id, storage.ErrNotFound)
	}
	if s.taken(fields.RegistrationNumber, id) {
		return fmt.Errorf("UpdateStudentByID: %w", storage.ErrDuplicate)
	}

	s.students[id] = types.Student{ID: id, StudentFields: fields}
	return nil
}

// taken reports whether another student (not except) already uses regNo.
// Callers hold s.mu.
func (s *Store) taken(regNo, except string) bool {
	for id, st := range s.students {
		if id != except && st.RegistrationNumber == regNo {
			return true
		}
	}
	return false
}
