// Package storage defines the Storage interface, the contract any
// database backend must satisfy to hold student records.
//
// Three backends implement it:
//
//   - sqlite   — a single file on disk, the default
//   - postgres — a pgx connection pool, for shared deployments
//   - memory   — a mutex-guarded map, for tests and throwaway runs
//
// The service layer depends only on this interface, so the backend is
// picked once in main.go and nothing else changes.
package storage

//go:generate mockgen -source=storage.go -destination=mocks/mocks.go -package=mocks Storage

import (
	"context"
	"errors"

	"github.com/dlvi/student-management/internal/types"
)

var (
	// ErrStorage marks a failure to complete an operation: I/O,
	// connectivity, or an unexpected driver error. Backends wrap it
	// together with the driver error, so both errors.Is(err, ErrStorage)
	// and inspection of the underlying cause work.
	ErrStorage = errors.New("storage failure")

	// ErrDuplicate is returned when a write is rejected by the unique
	// index on email.
	ErrDuplicate = errors.New("duplicate value for unique field")
)

// Storage is the database contract. Every method is atomic on its own;
// nothing here spans more than one statement.
type Storage interface {
	// InsertStudent stores a new record and returns the generated ID.
	// The ID field of the argument is ignored.
	InsertStudent(ctx context.Context, student types.Student) (int64, error)

	// DeleteStudentByID removes a record and reports how many rows were
	// affected: 0 when no record had that ID, 1 otherwise.
	DeleteStudentByID(ctx context.Context, id int64) (int64, error)

	// ListStudents returns every record ordered by ID. The slice is empty,
	// never nil, when there are no records.
	ListStudents(ctx context.Context) ([]types.Student, error)

	// GetStudentByID returns the record and true, or a zero Student and
	// false when nothing matches. Absence is not an error.
	GetStudentByID(ctx context.Context, id int64) (types.Student, bool, error)

	// EmailExists reports whether any record other than excludeID uses the
	// exact email. An excludeID of 0 excludes nothing.
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)

	// UpdateStudentNameAndEmail overwrites name and email of one record and
	// reports the affected row count. BirthDate and Sex are left untouched.
	UpdateStudentNameAndEmail(ctx context.Context, id int64, name, email string) (int64, error)

	// Close releases the underlying connections.
	Close() error
}
