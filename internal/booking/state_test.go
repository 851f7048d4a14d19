package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
)

func TestCheckPayable(t *testing.T) {
	tests := []struct {
		status model.BookingStatus
		want   error
	}{
		{model.BookingPending, nil},
		{model.BookingConfirmed, ErrAlreadyConfirmed},
		{model.BookingCancelled, ErrAlreadyCancelled},
		{model.BookingStatus("refunded"), model.ErrUnknownValue},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := CheckPayable(&model.Booking{Status: tt.status})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheckCancellable(t *testing.T) {
	assert.NoError(t, CheckCancellable(&model.Booking{Status: model.BookingPending}))
	assert.ErrorIs(t, CheckCancellable(&model.Booking{Status: model.BookingConfirmed}), ErrCannotCancelConfirmed)
	assert.ErrorIs(t, CheckCancellable(&model.Booking{Status: model.BookingCancelled}), ErrAlreadyCancelled)
	assert.ErrorIs(t, CheckCancellable(&model.Booking{Status: ""}), model.ErrUnknownValue)
}

func TestConfirmSetsTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &model.Booking{Status: model.BookingPending}

	require.NoError(t, Confirm(b, now))
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, now, *b.ConfirmedAt)

	assert.ErrorIs(t, Confirm(b, now), ErrAlreadyConfirmed)
}

func TestCancelDefaultsReason(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &model.Booking{Status: model.BookingPending}

	require.NoError(t, Cancel(b, "", now))
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, DefaultCancelReason, *b.CancellationReason)
	assert.Equal(t, now, *b.CancelledAt)
	assert.Nil(t, b.ConfirmedAt)

	assert.ErrorIs(t, Cancel(b, "x", now), ErrAlreadyCancelled)
}

func TestTransitionErrorsShareParent(t *testing.T) {
	for _, err := range []error{ErrAlreadyConfirmed, ErrAlreadyCancelled, ErrCannotCancelConfirmed} {
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}
