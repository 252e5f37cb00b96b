// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, service, and storage can all import types without depending
// on each other.
package types

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Student is the persistent entity owned by the storage layer.
//
// ID is assigned by the store on insert and never changes afterwards.
// BirthDate and Sex are set once at registration; only Name and Email
// can be overwritten later.
type Student struct {
	ID        int64
	Name      string
	Email     string
	BirthDate time.Time
	Sex       string
}

// Summary projects a Student onto the fields every response exposes.
func (s Student) Summary() StudentSummary {
	return StudentSummary{
		ID:    s.ID,
		Name:  s.Name,
		Email: s.Email,
	}
}

// StudentSummary is the outward-facing shape of a student.
type StudentSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegistrationInput is what the service needs to register a student.
// It is assumed to be syntactically valid already.
type RegistrationInput struct {
	Name      string
	Email     string
	BirthDate time.Time
	Sex       string
}

// Student builds the record to insert. The ID is left zero for the store
// to assign.
func (in RegistrationInput) Student() Student {
	return Student{
		Name:      in.Name,
		Email:     in.Email,
		BirthDate: in.BirthDate,
		Sex:       in.Sex,
	}
}

// PatchInput overwrites a student's name and email together.
type PatchInput struct {
	Name  string
	Email string
}

// RegisterStudentRequest is the JSON body of POST /api/students.
//
// The validate:"..." tags are checked by go-playground/validator before
// the request reaches the service:
//
//	name      — must be present and not only whitespace
//	email     — must be present and look like an email address
//	birthDate — must be present and formatted as YYYY-MM-DD
//	sex       — free text, optional
type RegisterStudentRequest struct {
	Name      string `json:"name"      validate:"required,notblank"`
	Email     string `json:"email"     validate:"required,email"`
	BirthDate string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Sex       string `json:"sex"`
}

// ToInput converts a validated request into the service input.
// Call it only after validation succeeded; a malformed birthDate is
// reported as an error rather than silently zeroed.
func (r RegisterStudentRequest) ToInput() (RegistrationInput, error) {
	birthDate, err := time.Parse(DateLayout, r.BirthDate)
	if err != nil {
		return RegistrationInput{}, err
	}

	return RegistrationInput{
		Name:      strings.TrimSpace(r.Name),
		Email:     strings.TrimSpace(r.Email),
		BirthDate: birthDate,
		Sex:       strings.TrimSpace(r.Sex),
	}, nil
}

// PatchStudentRequest is the JSON body of PATCH /api/students/{id}.
// Both fields are required: this endpoint does not support omitting one.
type PatchStudentRequest struct {
	Name  string `json:"name"  validate:"required,notblank"`
	Email string `json:"email" validate:"required,email"`
}

// ToInput converts a validated request into the service input.
func (r PatchStudentRequest) ToInput() PatchInput {
	return PatchInput{
		Name:  strings.TrimSpace(r.Name),
		Email: strings.TrimSpace(r.Email),
	}
}
