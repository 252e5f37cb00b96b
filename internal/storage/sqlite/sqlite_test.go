package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/storage/storagetest"
)

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStore: func() storage.Storage {
			db, err := New(filepath.Join(t.TempDir(), "students.db"))
			require.NoError(t, err)
			return db
		},
	})
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.db")

	first, err := New(path)
	require.NoError(t, err)
	id, err := first.InsertStudent(context.Background(), storagetest.Student("kept"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	_, found, err := second.GetStudentByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found, "reopening must not drop existing rows")
}

func TestOperationsAfterCloseWrapErrStorage(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.ListStudents(context.Background())
	require.ErrorIs(t, err, storage.ErrStorage)

	_, _, err = db.GetStudentByID(context.Background(), 1)
	require.ErrorIs(t, err, storage.ErrStorage)
}
