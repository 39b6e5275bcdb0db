package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSeries(t *testing.T, f *serviceFixture, limits RecurrenceLimits) (*RecurrenceSeries, *Booking, *RecurrenceOccurrence) {
	t.Helper()
	ctx := context.Background()

	series := &RecurrenceSeries{
		ID:             uuid.New(),
		TenantID:       f.tenantID,
		ClinicID:       uuid.New(),
		ProfessionalID: uuid.New(),
		PatientID:      uuid.New(),
		Frequency:      FrequencyWeekly,
		Limits:         limits,
	}
	require.NoError(t, f.recurrence.CreateSeries(ctx, series))

	seriesID := series.ID
	booking := &Booking{
		ID:                 uuid.New(),
		TenantID:           f.tenantID,
		ClinicID:           series.ClinicID,
		ProfessionalID:     series.ProfessionalID,
		PatientID:          series.PatientID,
		Status:             BookingConfirmed,
		PaymentStatus:      PaymentApproved,
		StartAt:            testNow.Add(48 * time.Hour),
		EndAt:              testNow.Add(49 * time.Hour),
		RecurrenceSeriesID: &seriesID,
		Version:            1,
	}
	require.NoError(t, f.bookings.Create(ctx, booking))

	occurrence := &RecurrenceOccurrence{
		ID:        uuid.New(),
		TenantID:  f.tenantID,
		SeriesID:  series.ID,
		BookingID: booking.ID,
		OccursAt:  booking.StartAt,
	}
	require.NoError(t, f.recurrence.CreateOccurrence(ctx, occurrence))
	return series, booking, occurrence
}

func TestRescheduleBooking(t *testing.T) {
	t.Run("moves a standalone booking", func(t *testing.T) {
		f := newServiceFixture(t)
		booking := seedBooking(t, f, BookingConfirmed)

		newStart := testNow.Add(72 * time.Hour)
		updated, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        newStart,
			NewEnd:          newStart.Add(time.Hour),
			Reason:          "patient request",
		})
		require.NoError(t, err)
		assert.Equal(t, newStart, updated.StartAt)
		assert.Equal(t, booking.Version+1, updated.Version)
		assert.Contains(t, f.publisher.published(), EventBookingRescheduled)
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		f := newServiceFixture(t)
		booking := seedBooking(t, f, BookingConfirmed)

		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        testNow.Add(2 * time.Hour),
			NewEnd:          testNow.Add(time.Hour),
		})
		assert.Equal(t, KindTemporalWindowViolation, KindOf(err))
	})

	t.Run("terminal booking cannot move", func(t *testing.T) {
		f := newServiceFixture(t)
		booking := seedBooking(t, f, BookingCancelled)

		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        testNow.Add(time.Hour),
			NewEnd:          testNow.Add(2 * time.Hour),
		})
		assert.Equal(t, KindInvalidState, KindOf(err))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		booking := seedBooking(t, f, BookingConfirmed)

		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version + 7,
			NewStart:        testNow.Add(time.Hour),
			NewEnd:          testNow.Add(2 * time.Hour),
		})
		assert.Equal(t, KindConcurrencyConflict, KindOf(err))
	})

	t.Run("increments the occurrence counter", func(t *testing.T) {
		f := newServiceFixture(t)
		series, booking, occurrence := seedSeries(t, f, RecurrenceLimits{
			MaxReschedulesPerOccurrence: 2,
			MaxReschedulesPerSeries:     6,
		})

		newStart := testNow.Add(96 * time.Hour)
		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        newStart,
			NewEnd:          newStart.Add(time.Hour),
		})
		require.NoError(t, err)

		usage, err := f.recurrence.GetRescheduleUsage(context.Background(), f.tenantID, series.ID, occurrence.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, usage.OccurrenceCount)
		assert.Equal(t, 1, usage.SeriesTotal)
	})

	t.Run("occurrence at its cap is rejected before the write", func(t *testing.T) {
		f := newServiceFixture(t)
		_, booking, occurrence := seedSeries(t, f, RecurrenceLimits{
			MaxReschedulesPerOccurrence: 2,
			MaxReschedulesPerSeries:     10,
		})
		f.recurrence.occurrences[occurrence.ID].ReschedulesCount = 2
		originalStart := booking.StartAt

		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        testNow.Add(100 * time.Hour),
			NewEnd:          testNow.Add(101 * time.Hour),
		})
		require.Error(t, err)
		assert.Equal(t, KindRecurrenceLimitReached, KindOf(err))

		stored, err := f.bookings.FindByID(context.Background(), f.tenantID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, originalStart, stored.StartAt)
	})

	t.Run("series quota counts sibling occurrences", func(t *testing.T) {
		f := newServiceFixture(t)
		series, booking, _ := seedSeries(t, f, RecurrenceLimits{
			MaxReschedulesPerOccurrence: 3,
			MaxReschedulesPerSeries:     4,
		})
		// A sibling occurrence consumed the whole series budget.
		sibling := &RecurrenceOccurrence{
			ID:               uuid.New(),
			TenantID:         f.tenantID,
			SeriesID:         series.ID,
			BookingID:        uuid.New(),
			ReschedulesCount: 4,
		}
		require.NoError(t, f.recurrence.CreateOccurrence(context.Background(), sibling))

		_, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        testNow.Add(100 * time.Hour),
			NewEnd:          testNow.Add(101 * time.Hour),
		})
		require.Error(t, err)
		assert.Equal(t, KindRecurrenceLimitReached, KindOf(err))
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "series_limit", se.Reason)
	})

	t.Run("counter failure returns the committed reschedule", func(t *testing.T) {
		f := newServiceFixture(t)
		_, booking, _ := seedSeries(t, f, RecurrenceLimits{
			MaxReschedulesPerOccurrence: 2,
			MaxReschedulesPerSeries:     6,
		})
		f.recurrence.failIncrement = assert.AnError

		newStart := testNow.Add(96 * time.Hour)
		updated, err := f.svc.RescheduleBooking(context.Background(), RescheduleBookingInput{
			TenantID:        f.tenantID,
			BookingID:       booking.ID,
			ExpectedVersion: booking.Version,
			NewStart:        newStart,
			NewEnd:          newStart.Add(time.Hour),
		})
		require.Error(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, newStart, updated.StartAt)

		// The move itself stands.
		stored, findErr := f.bookings.FindByID(context.Background(), f.tenantID, booking.ID)
		require.NoError(t, findErr)
		assert.Equal(t, newStart, stored.StartAt)
	})
}
