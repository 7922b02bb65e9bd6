package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCodeAndMatchesSentinel(t *testing.T) {
	err := Clone(ErrNotFound, "student not found")
	assert.Equal(t, "student not found", err.Message)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWithDetails(t *testing.T) {
	details := []string{"a", "b"}
	err := WithDetails(Clone(ErrPreconditionFailed, "missing results"), details)
	assert.Equal(t, details, err.Details)
	assert.Nil(t, ErrPreconditionFailed.Details)
	assert.Nil(t, FromError(nil))
}

func TestValidationListsFields(t *testing.T) {
	type entry struct {
		Marks float64 `validate:"gte=0"`
	}
	type payload struct {
		Email   string  `validate:"required,email"`
		Entries []entry `validate:"dive"`
	}
	verr := validator.New().Struct(payload{Email: "nope", Entries: []entry{{Marks: 1}, {Marks: -2}}})
	require.Error(t, verr)

	err := Validation(verr, "invalid marks payload")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, []FieldError{
		{Field: "email", Rule: "email"},
		{Field: "entries[1].marks", Rule: "gte", Param: "0"},
	}, err.Details)

	plain := Validation(errors.New("bad json"), "invalid payload")
	assert.Nil(t, plain.Details)
}
