package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeProcessingFailed, "stage document", cause)

	require.EqualError(t, err, "stage document: disk full")
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, CodeProcessingFailed))
	require.False(t, IsCode(err, CodeInvalidInput))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Wrap(CodeInvalidInput, "no file uploaded", nil))
	require.True(t, IsCode(err, CodeInvalidInput))
	require.False(t, IsCode(errors.New("plain"), CodeInvalidInput))
}
