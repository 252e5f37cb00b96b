// Package memory keeps student records in a map guarded by a mutex.
// Nothing survives a restart; it backs tests and `driver: memory`.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/types"
)

type Store struct {
	mu       sync.RWMutex
	students map[int64]types.Student
	lastID   int64
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{students: make(map[int64]types.Student)}
}

// InsertStudent enforces email uniqueness under the write lock, the same
// way the UNIQUE index does for the SQL backends.
func (s *Store) InsertStudent(_ context.Context, student types.Student) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTakenLocked(student.Email, 0) {
		return 0, fmt.Errorf("InsertStudent: %w", storage.ErrDuplicate)
	}

	s.lastID++
	student.ID = s.lastID
	s.students[student.ID] = student
	return student.ID, nil
}

func (s *Store) DeleteStudentByID(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return 0, nil
	}
	delete(s.students, id)
	return 1, nil
}

func (s *Store) ListStudents(_ context.Context) ([]types.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	students := make([]types.Student, 0, len(s.students))
	for _, student := range s.students {
		students = append(students, student)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (s *Store) GetStudentByID(_ context.Context, id int64) (types.Student, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	student, ok := s.students[id]
	return student, ok, nil
}

func (s *Store) EmailExists(_ context.Context, email string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.emailTakenLocked(email, excludeID), nil
}

func (s *Store) UpdateStudentNameAndEmail(_ context.Context, id int64, name, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.students[id]
	if !ok {
		return 0, nil
	}
	if s.emailTakenLocked(email, id) {
		return 0, fmt.Errorf("UpdateStudentNameAndEmail: %w", storage.ErrDuplicate)
	}

	student.Name = name
	student.Email = email
	s.students[id] = student
	return 1, nil
}

func (s *Store) Close() error { return nil }

// emailTakenLocked must be called with s.mu held.
func (s *Store) emailTakenLocked(email string, excludeID int64) bool {
	for id, student := range s.students {
		if id != excludeID && student.Email == email {
			return true
		}
	}
	return false
}
