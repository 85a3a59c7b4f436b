package errors_test

import (
	stderrors "errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sfatfs/sfat/errors"
)

func TestDiskoErrorWithMessage(t *testing.T) {
	newErr := errors.ErrBlockDeviceRequired.WithMessage("asdfqwerty")
	assert.Equal(t, "asdfqwerty", newErr.Error())
}

func TestDiskoErrorWrap(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := errors.ErrExists.WrapError(originalErr)
	assert.Equal(t, "File exists original error", newErr.Error())
	assert.Equal(t, originalErr, stderrors.Unwrap(newErr))
}

func TestIsKind(t *testing.T) {
	wrapped := errors.KindNotFound.WithMessage("no entry with that name")
	assert.True(t, errors.IsKind(wrapped, errors.KindNotFound))
	assert.False(t, errors.IsKind(wrapped, errors.KindExists))
}

func TestErrno(t *testing.T) {
	assert.Equal(t, syscall.ENOENT, errors.ErrNotFound.Errno())
	assert.Equal(t, syscall.ENOSPC, errors.ErrNoSpaceOnDevice.Errno())
}
