package student

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/dlvi/student-management/internal/metrics"
	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/storage/mocks"
	"github.com/dlvi/student-management/internal/types"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStorage
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSubTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStorage(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, nil, s.metrics)
}

func (s *ServiceSuite) outcomes(op, outcome string) float64 {
	return testutil.ToFloat64(s.metrics.StudentOperations.WithLabelValues(op, outcome))
}

func registration() types.RegistrationInput {
	return types.RegistrationInput{
		Name:      "Maximo",
		Email:     "maximo@gmail.com",
		BirthDate: time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		Sex:       "Man",
	}
}

func (s *ServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("stores the student and returns the persisted summary", func() {
		in := registration()
		stored := in.Student()
		stored.ID = 1

		gomock.InOrder(
			s.store.EXPECT().EmailExists(gomock.Any(), in.Email, int64(0)).Return(false, nil),
			s.store.EXPECT().InsertStudent(gomock.Any(), in.Student()).Return(int64(1), nil),
			s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).Return(stored, true, nil),
		)

		got, err := s.service.Register(ctx, in)
		s.Require().NoError(err)
		s.Equal(types.StudentSummary{ID: 1, Name: "Maximo", Email: "maximo@gmail.com"}, got)
		s.Equal(1.0, s.outcomes(opRegister, metrics.OutcomeSuccess))
	})

	s.Run("existing email is rejected without writing", func() {
		in := registration()
		s.store.EXPECT().EmailExists(gomock.Any(), in.Email, int64(0)).Return(true, nil)

		_, err := s.service.Register(ctx, in)
		s.Require().ErrorIs(err, ErrDuplicateEmail)
		s.Contains(err.Error(), in.Email)
		s.Equal(1.0, s.outcomes(opRegister, metrics.OutcomeDuplicateEmail))
	})

	s.Run("insert failure is propagated and nothing is read", func() {
		in := registration()
		s.store.EXPECT().EmailExists(gomock.Any(), in.Email, int64(0)).Return(false, nil)
		s.store.EXPECT().InsertStudent(gomock.Any(), gomock.Any()).Return(int64(0), storage.ErrStorage)

		_, err := s.service.Register(ctx, in)
		s.Require().ErrorIs(err, storage.ErrStorage)
		s.NotErrorIs(err, ErrNotFound)
		s.Equal(1.0, s.outcomes(opRegister, metrics.OutcomeError))
	})

	s.Run("unique index rejection from a concurrent writer is a duplicate", func() {
		in := registration()
		s.store.EXPECT().EmailExists(gomock.Any(), in.Email, int64(0)).Return(false, nil)
		s.store.EXPECT().InsertStudent(gomock.Any(), gomock.Any()).Return(int64(0), storage.ErrDuplicate)

		_, err := s.service.Register(ctx, in)
		s.Require().ErrorIs(err, ErrDuplicateEmail)
	})

	s.Run("row missing after insert is reported as vanished not found", func() {
		in := registration()
		s.store.EXPECT().EmailExists(gomock.Any(), in.Email, int64(0)).Return(false, nil)
		s.store.EXPECT().InsertStudent(gomock.Any(), gomock.Any()).Return(int64(1), nil)
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).Return(types.Student{}, false, nil)

		_, err := s.service.Register(ctx, in)
		s.Require().ErrorIs(err, ErrNotFound)
		s.Require().ErrorIs(err, ErrRecordVanished)
		s.Equal(1.0, s.outcomes(opRegister, metrics.OutcomeVanished))
	})

	s.Run("email check failure is propagated", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, storage.ErrStorage)

		_, err := s.service.Register(ctx, registration())
		s.Require().ErrorIs(err, storage.ErrStorage)
	})
}

func (s *ServiceSuite) TestDelete() {
	ctx := context.Background()

	s.Run("one affected row succeeds", func() {
		s.store.EXPECT().DeleteStudentByID(gomock.Any(), int64(4)).Return(int64(1), nil)

		s.Require().NoError(s.service.Delete(ctx, 4))
	})

	s.Run("zero affected rows is not found", func() {
		s.store.EXPECT().DeleteStudentByID(gomock.Any(), int64(3)).Return(int64(0), nil)

		err := s.service.Delete(ctx, 3)
		s.Require().ErrorIs(err, ErrNotFound)
		s.NotErrorIs(err, ErrRecordVanished)
	})

	s.Run("store failure is propagated", func() {
		s.store.EXPECT().DeleteStudentByID(gomock.Any(), int64(3)).Return(int64(0), storage.ErrStorage)

		err := s.service.Delete(ctx, 3)
		s.Require().ErrorIs(err, storage.ErrStorage)
	})
}

func (s *ServiceSuite) TestList() {
	ctx := context.Background()

	s.Run("projects every record", func() {
		s.store.EXPECT().ListStudents(gomock.Any()).Return([]types.Student{
			{ID: 1, Name: "Maximo", Email: "maximo@gmail.com", Sex: "Man"},
		}, nil)

		got, err := s.service.List(ctx)
		s.Require().NoError(err)
		s.Equal([]types.StudentSummary{{ID: 1, Name: "Maximo", Email: "maximo@gmail.com"}}, got)
	})

	s.Run("empty store yields empty non-nil slice", func() {
		s.store.EXPECT().ListStudents(gomock.Any()).Return([]types.Student{}, nil)

		got, err := s.service.List(ctx)
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})

	s.Run("store failure is propagated", func() {
		s.store.EXPECT().ListStudents(gomock.Any()).Return(nil, assert.AnError)

		_, err := s.service.List(ctx)
		s.Require().ErrorIs(err, assert.AnError)
	})
}

func (s *ServiceSuite) TestGet() {
	ctx := context.Background()

	s.Run("returns the summary", func() {
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).
			Return(types.Student{ID: 1, Name: "Maximo", Email: "maximo@gmail.com"}, true, nil)

		got, err := s.service.Get(ctx, 1)
		s.Require().NoError(err)
		s.Equal(types.StudentSummary{ID: 1, Name: "Maximo", Email: "maximo@gmail.com"}, got)
	})

	s.Run("absent record is not found", func() {
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).Return(types.Student{}, false, nil)

		_, err := s.service.Get(ctx, 1)
		s.Require().ErrorIs(err, ErrNotFound)
		s.Equal(1.0, s.outcomes(opGet, metrics.OutcomeNotFound))
	})

	s.Run("store failure is propagated", func() {
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).Return(types.Student{}, false, storage.ErrStorage)

		_, err := s.service.Get(ctx, 1)
		s.Require().ErrorIs(err, storage.ErrStorage)
	})
}

func (s *ServiceSuite) TestPatch() {
	ctx := context.Background()
	patch := types.PatchInput{Name: "kaka", Email: "kaka@gmail.com"}

	s.Run("overwrites and returns the re-read summary", func() {
		gomock.InOrder(
			s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(false, nil),
			s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(1), patch.Name, patch.Email).Return(int64(1), nil),
			s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).
				Return(types.Student{ID: 1, Name: "kaka", Email: "kaka@gmail.com"}, true, nil),
		)

		got, err := s.service.Patch(ctx, 1, patch)
		s.Require().NoError(err)
		s.Equal(types.StudentSummary{ID: 1, Name: "kaka", Email: "kaka@gmail.com"}, got)
	})

	s.Run("email check excludes the patched record", func() {
		// The store is asked about every record except id 7, so a student
		// resubmitting their own email does not collide with themselves.
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(7)).Return(false, nil)
		s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(7), patch.Name, patch.Email).Return(int64(1), nil)
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(7)).
			Return(types.Student{ID: 7, Name: "kaka", Email: "kaka@gmail.com"}, true, nil)

		_, err := s.service.Patch(ctx, 7, patch)
		s.Require().NoError(err)
	})

	s.Run("email used by another record is rejected without writing", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(true, nil)

		_, err := s.service.Patch(ctx, 1, patch)
		s.Require().ErrorIs(err, ErrDuplicateEmail)
	})

	s.Run("zero affected rows is not found and nothing is read", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(false, nil)
		s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(1), patch.Name, patch.Email).Return(int64(0), nil)

		_, err := s.service.Patch(ctx, 1, patch)
		s.Require().ErrorIs(err, ErrNotFound)
		s.NotErrorIs(err, ErrRecordVanished)
	})

	s.Run("row missing after update is vanished", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(false, nil)
		s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(1), patch.Name, patch.Email).Return(int64(1), nil)
		s.store.EXPECT().GetStudentByID(gomock.Any(), int64(1)).Return(types.Student{}, false, nil)

		_, err := s.service.Patch(ctx, 1, patch)
		s.Require().ErrorIs(err, ErrRecordVanished)
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("unique index rejection is a duplicate", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(false, nil)
		s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(1), patch.Name, patch.Email).
			Return(int64(0), storage.ErrDuplicate)

		_, err := s.service.Patch(ctx, 1, patch)
		s.Require().ErrorIs(err, ErrDuplicateEmail)
	})

	s.Run("update failure is propagated", func() {
		s.store.EXPECT().EmailExists(gomock.Any(), patch.Email, int64(1)).Return(false, nil)
		s.store.EXPECT().UpdateStudentNameAndEmail(gomock.Any(), int64(1), patch.Name, patch.Email).
			Return(int64(0), storage.ErrStorage)

		_, err := s.service.Patch(ctx, 1, patch)
		s.Require().ErrorIs(err, storage.ErrStorage)
		s.Equal(1.0, s.outcomes(opPatch, metrics.OutcomeError))
	})
}
