package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := New()

	tests := []struct {
		name string
		err  Error
		want string
	}{
		{"default message", f.New(ErrResourceBusy), "Resource is busy"},
		{"custom message", f.WithMessage(ErrInvalidArgument, "max_temp must exceed min_temp"), "max_temp must exceed min_temp"},
		{"with data", f.WithData(ErrMalformedLine, "T: x"), "Malformed status line: T: x"},
		{"wrapped", f.Wrap(ErrTransport, fmt.Errorf("broken pipe")), "Serial transport failed: broken pipe"},
		{"unknown code", f.New(ErrorCode("mystery")), "mystery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestHasCode(t *testing.T) {
	f := New()
	inner := f.New(ErrResourceBusy)
	outer := f.Wrap(ErrInitFailed, inner)

	assert.True(t, HasCode(outer, ErrInitFailed))
	assert.True(t, HasCode(outer, ErrResourceBusy))
	assert.True(t, HasCode(fmt.Errorf("start: %w", inner), ErrResourceBusy))
	assert.False(t, HasCode(outer, ErrTimeout))
	assert.False(t, HasCode(fmt.Errorf("plain"), ErrInternal))
	assert.False(t, HasCode(nil, ErrInternal))
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := New().New(ErrClockInit).WithMessage("pll did not lock")

	assert.Equal(t, ErrClockInit, err.Code())
	assert.Equal(t, "pll did not lock", err.Error())
}
