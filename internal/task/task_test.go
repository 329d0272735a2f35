package task

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessOutcome(t *testing.T) {
	o := Success(42)
	assert.True(t, o.IsSuccess())
	assert.Equal(t, OutcomeSuccess, o.Kind)
	assert.Equal(t, 42, o.Payload)
}

func TestFailureOutcome(t *testing.T) {
	err := errors.New("boom")
	o := Failure(ErrorKindIterationFailed, err)
	assert.False(t, o.IsSuccess())
	assert.Equal(t, OutcomeFailure, o.Kind)
	assert.Equal(t, ErrorKindIterationFailed, o.ErrKind)
	assert.ErrorIs(t, o.Err, err)
}

func TestConcurrencyHintString(t *testing.T) {
	assert.Equal(t, "io_bound", IoBound.String())
	assert.Equal(t, "cpu_bound", CpuBound.String())
	assert.Equal(t, "unknown", ConcurrencyHint(99).String())
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "unknown", OutcomeKind(99).String())
}
