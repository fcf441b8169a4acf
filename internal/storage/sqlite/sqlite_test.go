package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/types"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := New(&config.Config{StoragePath: filepath.Join(t.TempDir(), "students.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var jane = types.StudentFields{
	RegistrationNumber: "A123",
	FullName:           "Jane Doe",
	Email:              "jane@x.com",
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.Student{ID: id, StudentFields: jane}, got)
}

func TestCreate_AssignsDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	other := jane
	other.RegistrationNumber = "B456"
	id2, err := s.CreateStudent(ctx, other)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestCreate_DuplicateRegistrationNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	_, err = s.CreateStudent(ctx, jane)
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetStudentByID(context.Background(), "s404")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetStudents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.GetStudents(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	second := types.StudentFields{RegistrationNumber: "B456", FullName: "John Roe", Email: "john@x.com"}
	_, err = s.CreateStudent(ctx, second)
	require.NoError(t, err)
	_, err = s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	all, err := s.GetStudents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A123", all[0].RegistrationNumber)
	assert.Equal(t, "B456", all[1].RegistrationNumber)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	edited := types.StudentFields{RegistrationNumber: "A999", FullName: "Jane Smith", Email: "smith@x.com"}
	require.NoError(t, s.UpdateStudentByID(ctx, id, edited))

	got, err := s.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, edited, got.Fields())
}

func TestUpdate_UnchangedValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	assert.NoError(t, s.UpdateStudentByID(ctx, id, jane))
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateStudentByID(context.Background(), "s404", jane)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdate_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)

	other := types.StudentFields{RegistrationNumber: "B456", FullName: "John Roe", Email: "john@x.com"}
	id, err := s.CreateStudent(ctx, other)
	require.NoError(t, err)

	other.RegistrationNumber = jane.RegistrationNumber
	err = s.UpdateStudentByID(ctx, id, other)
	require.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestOpen_ReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.CreateStudent(ctx, jane)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetStudentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jane, got.Fields())
}
