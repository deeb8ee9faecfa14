package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeError_IsMatchesByCode(t *testing.T) {
	err := Newf(RowShape, "want %d got %d", 6, 2)

	assert.True(t, errors.Is(err, NewErrCode(RowShape)))
	assert.False(t, errors.Is(err, NewErrCode(Timestamp)))

	wrapped := fmt.Errorf("line 3: %w", err)
	assert.True(t, errors.Is(wrapped, NewErrCode(RowShape)))
	assert.Equal(t, RowShape, CodeOf(wrapped))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, Fetch, "get"))

	cause := errors.New("connection refused")
	err := Wrap(cause, Fetch, "get")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Fetch, CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, OK, CodeOf(errors.New("x")))
	assert.Equal(t, "unknown error", MapErrMsg(42))
}
