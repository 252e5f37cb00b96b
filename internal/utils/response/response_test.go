package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlvi/student-management/internal/service/student"
	"github.com/dlvi/student-management/internal/storage"
)

var fixed = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = prev })
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: id 3", student.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: id 3", student.ErrRecordVanished), http.StatusNotFound},
		{fmt.Errorf("%w: a@b.c", student.ErrDuplicateEmail), http.StatusConflict},
		{fmt.Errorf("list: %w", storage.ErrStorage), http.StatusInternalServerError},
		{fmt.Errorf("list: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteErrorNotFound(t *testing.T) {
	freezeClock(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/students/3", nil)

	require.NoError(t, WriteError(rec, req, fmt.Errorf("%w: id 3", student.ErrNotFound)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{
		Timestamp: fixed,
		Status:    http.StatusNotFound,
		Error:     "Not Found",
		Message:   "student not found: id 3",
		Path:      "/api/students/3",
	}, body)
}

func TestWriteErrorHidesStorageDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)

	require.NoError(t, WriteError(rec, req, fmt.Errorf("%w: list: disk I/O error", storage.ErrStorage)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
	assert.Contains(t, rec.Body.String(), MsgInternal)
}

func TestListSetsTotal(t *testing.T) {
	env := List(MsgStudentData, []int{1, 2, 3})
	require.NotNil(t, env.Meta)
	assert.Equal(t, 3, env.Meta.Total)
	assert.True(t, env.Success)

	empty := List(MsgStudentData, []int{})
	raw, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":[]`)
	assert.Contains(t, string(raw), `"meta":{"total":0}`)
}

func TestOKOmitsMeta(t *testing.T) {
	raw, err := json.Marshal(OK(MsgRemoved, struct{}{}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "meta")
	assert.Contains(t, string(raw), `"data":{}`)
}

type form struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	BirthDate string `json:"birthDate" validate:"required,datetime=2006-01-02"`
	Nickname  string `json:"nickname" validate:"max=3"`
}

func TestValidationErrorUsesJSONNames(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})

	err := v.Struct(form{Email: "not-an-email", BirthDate: "01/02/2000", Nickname: "toolong"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	env := ValidationError(verrs)
	assert.False(t, env.Success)
	assert.Equal(t, MsgValidationFailed, env.Message)
	assert.Equal(t, map[string]string{
		"name":      "the name cannot be empty",
		"email":     "the email must be a valid email address",
		"birthDate": "the birthDate must be a date formatted as YYYY-MM-DD",
		"nickname":  "the nickname is invalid",
	}, env.Data)
}
