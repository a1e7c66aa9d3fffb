package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"plain", New(ErrCodeConflict, "lost race"), "CONFLICT: lost race"},
		{"wrapped", Wrap(fmt.Errorf("boom"), ErrCodeInternal, "query failed"), "INTERNAL: query failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestCodeOf(t *testing.T) {
	notFound := NotFound("event", "e1")

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"uncoded", stderrors.New("x"), ErrCodeInternal},
		{"coded", notFound, ErrCodeNotFound},
		{"fmt wrapped", fmt.Errorf("ctx: %w", notFound), ErrCodeNotFound},
		{"internal wrapper is transparent", Wrap(notFound, ErrCodeInternal, "tx failed"), ErrCodeNotFound},
		{"outer code wins", Wrap(notFound, ErrCodeConflict, "retry"), ErrCodeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeVenueConflict, "overlap"))

	assert.True(t, Is(err, &Error{Code: ErrCodeVenueConflict}))
	assert.False(t, Is(err, &Error{Code: ErrCodeNotFound}))
}

func TestDetailsOf(t *testing.T) {
	err := Wrap(
		New(ErrCodeInsufficientQuantity, "short").
			WithDetail("resource_id", "projector").
			WithDetail("available", 0),
		ErrCodeInternal, "reserve failed")

	details := DetailsOf(err, ErrCodeInsufficientQuantity)
	assert.Equal(t, "projector", details["resource_id"])
	assert.Equal(t, 0, details["available"])
	assert.Nil(t, DetailsOf(err, ErrCodeNotFound))
}

func TestConstructors(t *testing.T) {
	assert.True(t, HasCode(InvalidInput("interval", "end before start"), ErrCodeInvalidInput))
	assert.True(t, HasCode(AlreadyExists("venue", "Main Hall"), ErrCodeAlreadyExists))
	assert.True(t, HasCode(Conflict("stale"), ErrCodeConflict))
	assert.Equal(t, `event "e1" not found`, NotFound("event", "e1").Message)
}
