package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// RescheduleBookingInput moves a booking's time window.
type RescheduleBookingInput struct {
	TenantID        uuid.UUID
	BookingID       uuid.UUID
	ExpectedVersion int64
	NewStart        time.Time
	NewEnd          time.Time
	Reason          string
	RequestedBy     uuid.UUID
}

// RescheduleBooking moves the booking's window under the caller's expected
// version. For bookings in a recurrence series the quota counters are
// checked before the write; after a successful move the occurrence counter
// is incremented best-effort — a counter failure is logged and returned,
// but the already-committed reschedule stands and is not rolled back.
func (s *Service) RescheduleBooking(ctx context.Context, in RescheduleBookingInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.reschedule_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.booking_id", in.BookingID.String()),
	)

	now := s.now()
	if !in.NewStart.Before(in.NewEnd) {
		err := NewError(KindTemporalWindowViolation, "", "reschedule start must precede end")
		s.observe("reschedule_booking", err)
		return nil, err
	}

	booking, err := s.bookings.FindByID(ctx, in.TenantID, in.BookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if booking.Status.Terminal() {
		err := NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, cannot reschedule", booking.ID, booking.Status)
		s.observe("reschedule_booking", err)
		return nil, err
	}

	var occurrence *RecurrenceOccurrence
	if booking.RecurrenceSeriesID != nil {
		series, err := s.recurrence.FindSeriesByID(ctx, in.TenantID, *booking.RecurrenceSeriesID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		occurrence, err = s.recurrence.FindOccurrenceByBooking(ctx, in.TenantID, in.BookingID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		usage, err := s.recurrence.GetRescheduleUsage(ctx, in.TenantID, series.ID, occurrence.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := ValidateRescheduleLimits(series.Limits, usage); err != nil {
			s.observe("reschedule_booking", err)
			return nil, err
		}
	}

	previousStart, previousEnd := booking.StartAt, booking.EndAt
	updated, err := s.bookings.Reschedule(ctx, in.TenantID, in.BookingID, BookingReschedule{
		StartAt:         in.NewStart,
		EndAt:           in.NewEnd,
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("reschedule_booking", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventBookingRescheduled, BookingRescheduledV1{
		EventID:        uuid.NewString(),
		TenantID:       updated.TenantID.String(),
		ClinicID:       updated.ClinicID.String(),
		BookingID:      updated.ID.String(),
		ProfessionalID: updated.ProfessionalID.String(),
		PatientID:      updated.PatientID.String(),
		PreviousStart:  previousStart,
		PreviousEnd:    previousEnd,
		NewStart:       in.NewStart,
		NewEnd:         in.NewEnd,
		Reason:         in.Reason,
		RescheduledAt:  now,
	})
	s.observe("reschedule_booking", nil)
	s.logger.Info("booking rescheduled",
		"tenant_id", in.TenantID, "booking_id", updated.ID,
		"new_start", in.NewStart, "new_end", in.NewEnd)

	if occurrence != nil {
		// Best-effort follow-up: the booking already moved. Counter drift
		// is reconciled out of band, not by rolling back the reschedule.
		if err := s.recurrence.RecordOccurrenceReschedule(ctx, in.TenantID, occurrence.ID); err != nil {
			span.RecordError(err)
			s.logger.Error("recurrence counter increment failed after reschedule",
				"error", err, "tenant_id", in.TenantID,
				"booking_id", in.BookingID, "occurrence_id", occurrence.ID)
			return updated, err
		}
	}
	return updated, nil
}
