// Package postgres implements storage.Storage on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/types"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	birth_date DATE NOT NULL,
	sex        TEXT NOT NULL DEFAULT ''
)`

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Storage = (*Store)(nil)

// NewPool parses dsn, applies maxConns when positive, and pings the server.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.NewPool: ping: %w", err)
	}

	return pool, nil
}

// New creates the students table if needed and returns a Store on pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres.New: create table: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) InsertStudent(ctx context.Context, student types.Student) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO students (name, email, birth_date, sex)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, student.Name, student.Email, student.BirthDate, student.Sex).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("InsertStudent: %w", storage.ErrDuplicate)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: InsertStudent: no id generated", storage.ErrStorage)
		}
		return 0, failure("InsertStudent", err)
	}

	return id, nil
}

func (s *Store) DeleteStudentByID(ctx context.Context, id int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return 0, failure("DeleteStudentByID", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListStudents(ctx context.Context) ([]types.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, birth_date, sex
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, failure("ListStudents: query", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)
	for rows.Next() {
		var student types.Student
		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Email,
			&student.BirthDate,
			&student.Sex,
		); err != nil {
			return nil, failure("ListStudents: scan row", err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, failure("ListStudents: rows iteration", err)
	}

	return students, nil
}

func (s *Store) GetStudentByID(ctx context.Context, id int64) (types.Student, bool, error) {
	var student types.Student
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, birth_date, sex
		FROM students
		WHERE id = $1
	`, id).Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.BirthDate,
		&student.Sex,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Student{}, false, nil
		}
		return types.Student{}, false, failure("GetStudentByID", err)
	}

	return student, true, nil
}

func (s *Store) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM students WHERE email = $1 AND id <> $2)`,
		email, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, failure("EmailExists", err)
	}
	return exists, nil
}

func (s *Store) UpdateStudentNameAndEmail(ctx context.Context, id int64, name, email string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE students SET name = $1, email = $2 WHERE id = $3`,
		name, email, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("UpdateStudentNameAndEmail: %w", storage.ErrDuplicate)
		}
		return 0, failure("UpdateStudentNameAndEmail", err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the pool. The pool must not be used afterwards.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func failure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", storage.ErrStorage, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
