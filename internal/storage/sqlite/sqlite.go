// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite stores everything in a single file on disk. There is no network
// and no separate server process, which makes it the default backend for
// local runs.
//
// Importing github.com/mattn/go-sqlite3 registers the "sqlite3" driver with
// database/sql; the package is also used directly to recognise unique
// constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/types"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at storagePath, creates the students table
// if it does not already exist, and returns a ready-to-use *SQLite.
func New(storagePath string) (*SQLite, error) {
	// _busy_timeout makes concurrent writers wait for the lock instead of
	// failing immediately with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", storagePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent, so safe to run on every
	// startup.
	//
	// Schema:
	//   id         — integer primary key, auto-incremented by SQLite
	//   name       — student's full name
	//   email      — unique across all rows
	//   birth_date — calendar date stored as YYYY-MM-DD text
	//   sex        — free text, may be empty
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT    NOT NULL,
			email      TEXT    NOT NULL UNIQUE,
			birth_date TEXT    NOT NULL,
			sex        TEXT    NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// InsertStudent inserts a new row into the students table.
//
// Placeholders (?) keep user input out of the SQL text: the driver sends
// the statement and the values separately.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) InsertStudent(ctx context.Context, student types.Student) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (name, email, birth_date, sex) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return 0, failure("InsertStudent: prepare", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx,
		student.Name,
		student.Email,
		student.BirthDate.Format(types.DateLayout),
		student.Sex,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("InsertStudent: %w", storage.ErrDuplicate)
		}
		return 0, failure("InsertStudent: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, failure("InsertStudent: rows affected", err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%w: InsertStudent: no row inserted", storage.ErrStorage)
	}

	// LastInsertId returns the auto-generated primary key of the new row.
	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, failure("InsertStudent: last insert id", err)
	}
	if lastID == 0 {
		return 0, fmt.Errorf("%w: InsertStudent: no id generated", storage.ErrStorage)
	}

	return lastID, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetStudentByID fetches exactly one student row matched by primary key.
//
// QueryRow does not report "no match" by itself; the sql.ErrNoRows
// sentinel surfaces only when Scan is called. That case is translated to
// found=false rather than an error.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, bool, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, email, birth_date, sex FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, false, failure("GetStudentByID: prepare", err)
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, false, nil
		}
		return types.Student{}, false, failure("GetStudentByID: scan", err)
	}

	return student, true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ListStudents returns all student rows as a slice, ordered by id.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) ListStudents(ctx context.Context) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, email, birth_date, sex FROM students ORDER BY id",
	)
	if err != nil {
		return nil, failure("ListStudents: prepare", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, failure("ListStudents: query", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	students := make([]types.Student, 0)

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, failure("ListStudents: scan row", err)
		}
		students = append(students, student)
	}

	// rows.Err() captures any error that occurred during iteration.
	if err := rows.Err(); err != nil {
		return nil, failure("ListStudents: rows iteration", err)
	}

	return students, nil
}

// EmailExists asks SQLite for a single boolean instead of fetching rows.
func (s *SQLite) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := s.Db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM students WHERE email = ? AND id <> ?)",
		email, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, failure("EmailExists: scan", err)
	}

	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStudentNameAndEmail overwrites name and email of one row.
// The caller decides what a zero row count means.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateStudentNameAndEmail(ctx context.Context, id int64, name, email string) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"UPDATE students SET name = ?, email = ? WHERE id = ?",
	)
	if err != nil {
		return 0, failure("UpdateStudentNameAndEmail: prepare", err)
	}
	defer stmt.Close()

	// Argument order matches the ? order in the SQL: name, email, id.
	result, err := stmt.ExecContext(ctx, name, email, id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("UpdateStudentNameAndEmail: %w", storage.ErrDuplicate)
		}
		return 0, failure("UpdateStudentNameAndEmail: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, failure("UpdateStudentNameAndEmail: rows affected", err)
	}

	return affected, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DeleteStudentByID removes a student row by primary key.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx, "DELETE FROM students WHERE id = ?")
	if err != nil {
		return 0, failure("DeleteStudentByID: prepare", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return 0, failure("DeleteStudentByID: exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, failure("DeleteStudentByID: rows affected", err)
	}

	return affected, nil
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanStudent reads one row in SELECT column order:
// id, name, email, birth_date, sex.
func scanStudent(row scanner) (types.Student, error) {
	var (
		student   types.Student
		birthDate string
	)

	if err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&birthDate,
		&student.Sex,
	); err != nil {
		return types.Student{}, err
	}

	parsed, err := time.Parse(types.DateLayout, birthDate)
	if err != nil {
		return types.Student{}, fmt.Errorf("parse birth_date %q: %w", birthDate, err)
	}
	student.BirthDate = parsed

	return student, nil
}

func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrStorage, op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
