package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	err := Clone(ErrNotFound, "model 'post' not found")

	assert.Equal(t, "model 'post' not found", err.Error())
	assert.True(t, stdErrors.Is(err, ErrNotFound))
	assert.False(t, stdErrors.Is(err, ErrForbidden))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestWrappedCloneMatchesThroughFmt(t *testing.T) {
	err := fmt.Errorf("resolve object: %w", Clonef(ErrPermissionDenied, "object %d hidden", 4))

	assert.True(t, IsNotFoundClass(err))
	assert.False(t, IsValidationClass(err))
	assert.Equal(t, http.StatusNotFound, FromError(err).Status)
}

func TestValidationClass(t *testing.T) {
	assert.True(t, IsValidationClass(Clone(ErrCast, "bad int")))
	assert.True(t, IsValidationClass(Clone(ErrInvalidChoice, "bad choice")))
	assert.True(t, IsValidationClass(ErrValidation))
	assert.False(t, IsValidationClass(ErrRecursionLimit))
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(stdErrors.New("boom"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, "internal server error: boom", err.Error())
	assert.Nil(t, FromError(nil))
}
