// Package student is the business layer between the HTTP handlers and the
// storage backends. It owns the only two rules of the domain: an email
// belongs to at most one student, and operations on an unknown id fail
// with ErrNotFound.
//
// Service keeps no state between calls. Each operation is a fixed sequence
// of store calls with no retries; store failures come back wrapped with the
// id or email that triggered them.
package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dlvi/student-management/internal/metrics"
	"github.com/dlvi/student-management/internal/storage"
	"github.com/dlvi/student-management/internal/types"
)

var (
	// ErrDuplicateEmail means another student already uses the email.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound means no live student has the requested id.
	ErrNotFound = errors.New("student not found")

	// ErrRecordVanished means a write succeeded but the row could not be
	// read back right after. It matches ErrNotFound with errors.Is.
	ErrRecordVanished = fmt.Errorf("%w after write", ErrNotFound)
)

// Operation names, used as the "operation" metric label.
const (
	opRegister = "register"
	opDelete   = "delete"
	opList     = "list"
	opGet      = "get"
	opPatch    = "patch"
)

type Service struct {
	store   storage.Storage
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New returns a Service over store. logger and m may be nil.
func New(store storage.Storage, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
	}
}

// Register stores a new student after checking that the email is free,
// then re-reads the row so the summary reflects what was persisted.
func (s *Service) Register(ctx context.Context, in types.RegistrationInput) (types.StudentSummary, error) {
	exists, err := s.store.EmailExists(ctx, in.Email, 0)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opRegister, fmt.Errorf("register %s: check email: %w", in.Email, err))
	}
	if exists {
		return types.StudentSummary{}, s.finish(ctx, opRegister, fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email))
	}

	id, err := s.store.InsertStudent(ctx, in.Student())
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opRegister, writeError("register", in.Email, err))
	}

	student, found, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opRegister, fmt.Errorf("register: read back id %d: %w", id, err))
	}
	if !found {
		return types.StudentSummary{}, s.finish(ctx, opRegister, fmt.Errorf("%w: id %d", ErrRecordVanished, id))
	}

	s.logger.InfoContext(ctx, "student registered", slog.Int64("id", id))
	return student.Summary(), s.finish(ctx, opRegister, nil)
}

// Delete removes a student. A zero affected-row count is ErrNotFound.
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.store.DeleteStudentByID(ctx, id)
	if err != nil {
		return s.finish(ctx, opDelete, fmt.Errorf("delete id %d: %w", id, err))
	}
	if affected == 0 {
		return s.finish(ctx, opDelete, fmt.Errorf("%w: id %d", ErrNotFound, id))
	}

	s.logger.InfoContext(ctx, "student deleted", slog.Int64("id", id))
	return s.finish(ctx, opDelete, nil)
}

// List returns every student as a summary. The slice is never nil.
func (s *Service) List(ctx context.Context) ([]types.StudentSummary, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, s.finish(ctx, opList, fmt.Errorf("list: %w", err))
	}

	summaries := make([]types.StudentSummary, 0, len(students))
	for _, student := range students {
		summaries = append(summaries, student.Summary())
	}
	return summaries, s.finish(ctx, opList, nil)
}

// Get returns one student or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (types.StudentSummary, error) {
	student, found, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opGet, fmt.Errorf("get id %d: %w", id, err))
	}
	if !found {
		return types.StudentSummary{}, s.finish(ctx, opGet, fmt.Errorf("%w: id %d", ErrNotFound, id))
	}
	return student.Summary(), s.finish(ctx, opGet, nil)
}

// Patch overwrites name and email of an existing student.
//
// The email check excludes the student being patched, so resubmitting a
// student's current email is accepted.
func (s *Service) Patch(ctx context.Context, id int64, patch types.PatchInput) (types.StudentSummary, error) {
	exists, err := s.store.EmailExists(ctx, patch.Email, id)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opPatch, fmt.Errorf("patch id %d: check email: %w", id, err))
	}
	if exists {
		return types.StudentSummary{}, s.finish(ctx, opPatch, fmt.Errorf("%w: %s", ErrDuplicateEmail, patch.Email))
	}

	affected, err := s.store.UpdateStudentNameAndEmail(ctx, id, patch.Name, patch.Email)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opPatch, writeError(fmt.Sprintf("patch id %d", id), patch.Email, err))
	}
	if affected == 0 {
		return types.StudentSummary{}, s.finish(ctx, opPatch, fmt.Errorf("%w: id %d", ErrNotFound, id))
	}

	student, found, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		return types.StudentSummary{}, s.finish(ctx, opPatch, fmt.Errorf("patch: read back id %d: %w", id, err))
	}
	if !found {
		return types.StudentSummary{}, s.finish(ctx, opPatch, fmt.Errorf("%w: id %d", ErrRecordVanished, id))
	}

	s.logger.InfoContext(ctx, "student patched", slog.Int64("id", id))
	return student.Summary(), s.finish(ctx, opPatch, nil)
}

// writeError turns a unique-index rejection into ErrDuplicateEmail. That
// happens when a concurrent request takes the email between the
// EmailExists check and the write.
func writeError(op, email string, err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// finish records the outcome of op and returns err unchanged.
func (s *Service) finish(ctx context.Context, op string, err error) error {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateEmail):
		outcome = metrics.OutcomeDuplicateEmail
		s.logger.DebugContext(ctx, "student operation rejected", slog.String("operation", op), slog.String("error", err.Error()))
	case errors.Is(err, ErrRecordVanished):
		outcome = metrics.OutcomeVanished
		s.logger.WarnContext(ctx, "student missing right after write", slog.String("operation", op), slog.String("error", err.Error()))
	case errors.Is(err, ErrNotFound):
		outcome = metrics.OutcomeNotFound
		s.logger.DebugContext(ctx, "student operation rejected", slog.String("operation", op), slog.String("error", err.Error()))
	default:
		outcome = metrics.OutcomeError
		s.logger.ErrorContext(ctx, "student operation failed", slog.String("operation", op), slog.String("error", err.Error()))
	}
	s.metrics.ObserveOperation(op, outcome)
	return err
}
