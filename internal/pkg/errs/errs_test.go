//go:build unit

package errs_test

import (
	"errors"
	"testing"

	"parkwise/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errs.New("sentinel")

func TestMark(t *testing.T) {
	cause := errors.New("connection refused")
	err := errs.Mark(cause, errSentinel)

	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errs.Is(err, errSentinel))
	assert.Equal(t, "connection refused", err.Error())

	wrapped := errs.Wrap(err, "reserve")
	assert.ErrorIs(t, wrapped, errSentinel)

	assert.Equal(t, errSentinel, errs.Mark(nil, errSentinel))
}

func TestExtractStackLines(t *testing.T) {
	err := errs.Wrap(errs.New("boom"), "outer")
	lines := errs.ExtractStackLines(err, 3)
	assert.Len(t, lines, 3)
	assert.Nil(t, errs.ExtractStackLines(nil, 3))
}
