// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite keeps everything in a single file on disk: no network, no separate
// server process, nothing to install beyond the driver.
//
// Importing github.com/mattn/go-sqlite3 registers the "sqlite3" driver with
// database/sql; its Error type also tells unique-constraint failures apart.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the database at cfg.StoragePath and makes sure the students
// table exists.
func New(cfg *config.Config) (*SQLite, error) {
	return Open(cfg.StoragePath)
}

// Open opens (or creates) the SQLite file at path. Tests call it with a
// path under t.TempDir().
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every
	// startup.
	//
	// Schema:
	//   id                  — opaque UUID assigned by CreateStudent
	//   registration_number — unique; a duplicate is a constraint violation
	//   full_name, email    — plain text, already validated by the caller
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id                  TEXT PRIMARY KEY,
			registration_number TEXT NOT NULL UNIQUE,
			full_name           TEXT NOT NULL,
			email               TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// CreateStudent inserts a new row and returns its freshly generated id.
//
// The values are bound through ? placeholders; the driver sends them apart
// from the SQL text, so user input is never parsed as SQL.
func (s *SQLite) CreateStudent(ctx context.Context, fields types.StudentFields) (string, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (id, registration_number, full_name, email) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return "", fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	id := uuid.NewString()

	_, err = stmt.ExecContext(ctx, id, fields.RegistrationNumber, fields.FullName, fields.Email)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("CreateStudent: %w", storage.ErrDuplicate)
		}
		return "", fmt.Errorf("CreateStudent: exec: %w", err)
	}

	return id, nil
}

// GetStudentByID fetches exactly one student row matched by id.
//
// QueryRow never returns nil for a miss; the miss surfaces as
// sql.ErrNoRows when Scan is called, and is translated to
// storage.ErrNotFound here.
func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, registration_number, full_name, email FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	var student types.Student

	err = stmt.QueryRowContext(ctx, id).Scan(
		&student.ID,
		&student.RegistrationNumber,
		&student.FullName,
		&student.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id %q: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns all student rows ordered by registration number.
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, registration_number, full_name, email FROM students ORDER BY registration_number",
	)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	// Empty (non-nil) so the JSON API answers [] rather than null.
	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student

		if err := rows.Scan(
			&student.ID,
			&student.RegistrationNumber,
			&student.FullName,
			&student.Email,
		); err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}

		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// UpdateStudentByID replaces a student's editable fields. The id itself is
// never written.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id string, fields types.StudentFields) error {
	stmt, err := s.Db.PrepareContext(ctx,
		"UPDATE students SET registration_number = ?, full_name = ?, email = ? WHERE id = ?",
	)
	if err != nil {
		return fmt.Errorf("UpdateStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	// Argument order matches the ? order in the SQL.
	res, err := stmt.ExecContext(ctx, fields.RegistrationNumber, fields.FullName, fields.Email, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("UpdateStudentByID: %w", storage.ErrDuplicate)
		}
		return fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStudentByID: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateStudentByID: id %q: %w", id, storage.ErrNotFound)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
