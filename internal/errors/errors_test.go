package errors

import (
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Typed Errors
// =============================================================================

func TestUserErrorError(t *testing.T) {
	t.Run("message_only", func(t *testing.T) {
		err := NewUserError("name required", "pass a name")
		assert.Equal(t, "name required", err.Error())
		assert.Equal(t, "pass a name", err.Suggestion)
	})

	t.Run("with_field", func(t *testing.T) {
		err := NewUserErrorWithField("time", "25:00", "invalid reminder time", "use HH:MM")
		assert.Equal(t, "invalid reminder time: '25:00'", err.Error())
	})
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound(ErrMedicationNotFound, "m-1")

	assert.True(t, errors.Is(err, ErrMedicationNotFound))
	assert.False(t, errors.Is(err, ErrReminderNotFound))
	assert.True(t, IsUserError(err))
	assert.Contains(t, err.Error(), "m-1")
	assert.Equal(t, Suggestions[ErrMedicationNotFound], GetSuggestion(err))
}

func TestSystemError(t *testing.T) {
	cause := errors.New("io failure")
	err := NewSystemErrorWithOp("open database", "storage unavailable", cause)

	assert.Equal(t, "storage unavailable during open database", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, IsSystemError(fmt.Errorf("wrapped: %w", err)))
}

func TestRecoverableErrorIncrementRetry(t *testing.T) {
	err := NewRecoverableError("webhook failed", ErrNetworkUnavailable, 2)
	assert.True(t, err.CanRetry)
	assert.Equal(t, "webhook failed", err.Error())

	err.IncrementRetry()
	assert.True(t, err.CanRetry)
	assert.Equal(t, "webhook failed (attempt 1/2)", err.Error())

	err.IncrementRetry()
	assert.False(t, err.CanRetry)
	assert.True(t, errors.Is(err, ErrNetworkUnavailable))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))
	assert.Nil(t, Wrapf(nil, "ctx %d", 1))

	err := Wrapf(ErrReminderNotFound, "mark fired %s", "r-1")
	assert.Equal(t, "mark fired r-1: reminder not found", err.Error())
	assert.True(t, Is(err, ErrReminderNotFound))
}

// =============================================================================
// Classification
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"user", NewUserError("bad", ""), CategoryUser},
		{"system", NewSystemError("bad", nil), CategorySystem},
		{"recoverable", NewRecoverableError("bad", nil, 3), CategoryRecoverable},
		{"disk_full", fmt.Errorf("write: %w", ErrDiskFull), CategorySystem},
		{"enospc", fmt.Errorf("write: %w", syscall.ENOSPC), CategorySystem},
		{"timeout", ErrTimeout, CategoryRecoverable},
		{"conn_refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), CategoryRecoverable},
		{"plain", errors.New("something"), CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWithCategoryOverridesClassify(t *testing.T) {
	err := WithCategory(errors.New("conflict"), CategoryRecoverable)
	assert.Equal(t, CategoryRecoverable, GetCategory(err))
	assert.True(t, IsRecoverableCategory(err))
	assert.Nil(t, WithCategory(nil, CategoryUser))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "user", CategoryUser.String())
	assert.Equal(t, "system", CategorySystem.String())
	assert.Equal(t, "recoverable", CategoryRecoverable.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestFormatByCategory(t *testing.T) {
	assert.Equal(t, "", FormatByCategory(nil))
	assert.Contains(t, FormatByCategory(NewUserError("bad input", "do this")), "Try: do this")
	assert.Contains(t, FormatByCategory(ErrDiskFull), "System error: disk full")
	assert.Contains(t, FormatByCategory(ErrTimeout), "will retry automatically")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound(ErrMedicationNotFound, "x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("create: %w", ErrDuplicateMedication)))
	assert.Equal(t, http.StatusGone, HTTPStatus(ErrMedicationInactive))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(NewUserError("bad", "")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(ErrLockHeld))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

// =============================================================================
// Suggestions and Context
// =============================================================================

func TestGetSuggestion(t *testing.T) {
	assert.Equal(t, "", GetSuggestion(nil))
	assert.Equal(t, Suggestions[ErrInvalidClock], GetSuggestion(fmt.Errorf("x: %w", ErrInvalidClock)))
	assert.Equal(t, "custom", GetSuggestion(NewUserError("x", "custom")))
	assert.Equal(t, "", GetSuggestion(errors.New("unknown")))
}

func TestGetExamples(t *testing.T) {
	assert.NotEmpty(t, GetExamples(ErrNameRequired))
	assert.Nil(t, GetExamples(errors.New("other")))
}

func TestWithStack(t *testing.T) {
	assert.Nil(t, WithStack(nil))

	err := WithStack(ErrTimeout)
	stack := GetStack(err)
	require.NotEmpty(t, stack)
	assert.Contains(t, stack[0].Function, "TestWithStack")
	assert.True(t, errors.Is(err, ErrTimeout))

	// already stacked errors are returned unchanged
	assert.Same(t, err, WithStack(err))
}

func TestChainAndRootCause(t *testing.T) {
	err := WithContext(Wrap(ErrDiskFull, "write log"), "mark taken")

	chain := Chain(err)
	assert.Len(t, chain, 3)
	assert.Equal(t, ErrDiskFull, RootCause(err))
	assert.Nil(t, Chain(nil))
}

func TestFormatDebugError(t *testing.T) {
	assert.Equal(t, "", FormatDebugError(nil))

	out := FormatDebugError(WithStack(Wrap(ErrDiskFull, "write")))
	assert.Contains(t, out, "Error chain:")
	assert.Contains(t, out, "Category: system")
	assert.Contains(t, out, "Stack trace:")
}
