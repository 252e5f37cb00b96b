// Package storagetest holds the behaviour every storage.Storage backend
// must share. Backend packages embed Suite in their own tests and supply
// a constructor.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/types"
)

type Suite struct {
	suite.Suite

	// NewStore returns an empty store. It is called before every test.
	NewStore func() storage.Storage

	store storage.Storage
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

// Student returns a valid record with a unique email derived from name.
func Student(name string) types.Student {
	return types.Student{
		Name:      name,
		Email:     fmt.Sprintf("%s@example.com", name),
		BirthDate: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		Sex:       "Man",
	}
}

func (s *Suite) insert(student types.Student) int64 {
	id, err := s.store.InsertStudent(context.Background(), student)
	s.Require().NoError(err)
	s.Require().Positive(id)
	return id
}

func (s *Suite) TestInsertAndGet() {
	ctx := context.Background()

	s.Run("round trips every field", func() {
		want := Student("maximo")
		id := s.insert(want)

		got, found, err := s.store.GetStudentByID(ctx, id)
		s.Require().NoError(err)
		s.Require().True(found)
		s.Equal(id, got.ID)
		s.Equal(want.Name, got.Name)
		s.Equal(want.Email, got.Email)
		s.Equal(want.BirthDate.Format(types.DateLayout), got.BirthDate.Format(types.DateLayout))
		s.Equal(want.Sex, got.Sex)
	})

	s.Run("generates distinct ids", func() {
		first := s.insert(Student("first"))
		second := s.insert(Student("second"))
		s.NotEqual(first, second)
	})

	s.Run("absent id is not an error", func() {
		_, found, err := s.store.GetStudentByID(ctx, 999999)
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("rejects a second row with the same email", func() {
		s.insert(Student("twice"))

		_, err := s.store.InsertStudent(ctx, Student("twice"))
		s.Require().ErrorIs(err, storage.ErrDuplicate)
	})
}

func (s *Suite) TestList() {
	ctx := context.Background()

	s.Run("empty store returns empty non-nil slice", func() {
		students, err := s.store.ListStudents(ctx)
		s.Require().NoError(err)
		s.NotNil(students)
		s.Empty(students)
	})

	s.Run("returns every record ordered by id", func() {
		a := s.insert(Student("ana"))
		b := s.insert(Student("bruno"))

		students, err := s.store.ListStudents(ctx)
		s.Require().NoError(err)
		s.Require().Len(students, 2)
		s.Equal(a, students[0].ID)
		s.Equal(b, students[1].ID)
	})
}

func (s *Suite) TestDelete() {
	ctx := context.Background()

	s.Run("removes the record", func() {
		id := s.insert(Student("gone"))

		affected, err := s.store.DeleteStudentByID(ctx, id)
		s.Require().NoError(err)
		s.EqualValues(1, affected)

		_, found, err := s.store.GetStudentByID(ctx, id)
		s.Require().NoError(err)
		s.False(found)
	})

	s.Run("unknown id affects nothing", func() {
		affected, err := s.store.DeleteStudentByID(ctx, 999999)
		s.Require().NoError(err)
		s.Zero(affected)
	})

	s.Run("frees the email for reuse", func() {
		id := s.insert(Student("reuse"))
		_, err := s.store.DeleteStudentByID(ctx, id)
		s.Require().NoError(err)

		s.insert(Student("reuse"))
	})
}

func (s *Suite) TestEmailExists() {
	ctx := context.Background()
	id := s.insert(Student("taken"))

	s.Run("true for a stored email", func() {
		exists, err := s.store.EmailExists(ctx, "taken@example.com", 0)
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("false for an unknown email", func() {
		exists, err := s.store.EmailExists(ctx, "free@example.com", 0)
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("match is exact", func() {
		exists, err := s.store.EmailExists(ctx, "TAKEN@example.com", 0)
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("ignores the excluded record", func() {
		exists, err := s.store.EmailExists(ctx, "taken@example.com", id)
		s.Require().NoError(err)
		s.False(exists)
	})
}

func (s *Suite) TestUpdateNameAndEmail() {
	ctx := context.Background()

	s.Run("overwrites name and email only", func() {
		original := Student("before")
		id := s.insert(original)

		affected, err := s.store.UpdateStudentNameAndEmail(ctx, id, "after", "after@example.com")
		s.Require().NoError(err)
		s.EqualValues(1, affected)

		got, found, err := s.store.GetStudentByID(ctx, id)
		s.Require().NoError(err)
		s.Require().True(found)
		s.Equal("after", got.Name)
		s.Equal("after@example.com", got.Email)
		s.Equal(original.Sex, got.Sex)
		s.Equal(original.BirthDate.Format(types.DateLayout), got.BirthDate.Format(types.DateLayout))
	})

	s.Run("unknown id affects nothing", func() {
		affected, err := s.store.UpdateStudentNameAndEmail(ctx, 999999, "x", "x@example.com")
		s.Require().NoError(err)
		s.Zero(affected)
	})

	s.Run("keeping the same email is allowed", func() {
		id := s.insert(Student("same"))

		affected, err := s.store.UpdateStudentNameAndEmail(ctx, id, "renamed", "same@example.com")
		s.Require().NoError(err)
		s.EqualValues(1, affected)
	})

	s.Run("taking another record's email is rejected", func() {
		s.insert(Student("owner"))
		id := s.insert(Student("thief"))

		_, err := s.store.UpdateStudentNameAndEmail(ctx, id, "thief", "owner@example.com")
		s.Require().ErrorIs(err, storage.ErrDuplicate)
	})
}

// TestConcurrentInsertSameEmail checks that the store, not the caller,
// guarantees at most one record per email.
func (s *Suite) TestConcurrentInsertSameEmail() {
	ctx := context.Background()
	const goroutines = 20

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.InsertStudent(ctx, Student("race"))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, storage.ErrDuplicate):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(1, successes.Load())
	s.EqualValues(goroutines-1, conflicts.Load())

	students, err := s.store.ListStudents(ctx)
	s.Require().NoError(err)
	s.Len(students, 1)
}
