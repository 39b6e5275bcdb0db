package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CancelBookingInput cancels a booking with a reason.
type CancelBookingInput struct {
	TenantID        uuid.UUID
	BookingID       uuid.UUID
	ExpectedVersion int64
	Reason          string
	RequestedBy     uuid.UUID
}

// CancelBooking moves the booking to cancelled under the expected version.
// Only scheduled and confirmed bookings may be cancelled.
func (s *Service) CancelBooking(ctx context.Context, in CancelBookingInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.cancel_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.booking_id", in.BookingID.String()),
	)

	now := s.now()
	booking, err := s.bookings.FindByID(ctx, in.TenantID, in.BookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if booking.Status != BookingScheduled && booking.Status != BookingConfirmed {
		err := NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, cannot cancel", booking.ID, booking.Status)
		s.observe("cancel_booking", err)
		return nil, err
	}

	reason := in.Reason
	updated, err := s.bookings.UpdateStatus(ctx, in.TenantID, in.BookingID, BookingStatusUpdate{
		Status:             BookingCancelled,
		CancellationReason: &reason,
		ExpectedVersion:    in.ExpectedVersion,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("cancel_booking", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventBookingCancelled, BookingCancelledV1{
		EventID:        uuid.NewString(),
		TenantID:       updated.TenantID.String(),
		ClinicID:       updated.ClinicID.String(),
		BookingID:      updated.ID.String(),
		ProfessionalID: updated.ProfessionalID.String(),
		PatientID:      updated.PatientID.String(),
		Reason:         in.Reason,
		CancelledAt:    now,
		StartAt:        updated.StartAt,
	})
	s.observe("cancel_booking", nil)
	s.logger.Info("booking cancelled",
		"tenant_id", in.TenantID, "booking_id", updated.ID, "reason", in.Reason)
	return updated, nil
}

// MarkNoShowInput records a patient no-show.
type MarkNoShowInput struct {
	TenantID        uuid.UUID
	BookingID       uuid.UUID
	ExpectedVersion int64
	MarkedAt        time.Time
	RequestedBy     uuid.UUID
}

// MarkBookingNoShow records a no-show once the late tolerance elapsed.
// Already-marked bookings reject the call before any write.
func (s *Service) MarkBookingNoShow(ctx context.Context, in MarkNoShowInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.mark_no_show")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.booking_id", in.BookingID.String()),
	)

	booking, err := s.bookings.FindByID(ctx, in.TenantID, in.BookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if booking.Status == BookingNoShow || booking.NoShowMarkedAt != nil {
		err := NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s already marked no-show", booking.ID)
		s.observe("mark_no_show", err)
		return nil, err
	}

	markedAt := in.MarkedAt
	if markedAt.IsZero() {
		markedAt = s.now()
	}
	if err := ValidateNoShowMarking(booking, markedAt); err != nil {
		s.observe("mark_no_show", err)
		return nil, err
	}

	updated, err := s.bookings.MarkNoShow(ctx, in.TenantID, in.BookingID, markedAt, in.ExpectedVersion)
	if err != nil {
		span.RecordError(err)
		s.observe("mark_no_show", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventBookingNoShow, BookingNoShowV1{
		EventID:        uuid.NewString(),
		TenantID:       updated.TenantID.String(),
		ClinicID:       updated.ClinicID.String(),
		BookingID:      updated.ID.String(),
		ProfessionalID: updated.ProfessionalID.String(),
		PatientID:      updated.PatientID.String(),
		MarkedAt:       markedAt,
		StartAt:        updated.StartAt,
	})
	s.observe("mark_no_show", nil)
	s.logger.Info("booking marked no-show",
		"tenant_id", in.TenantID, "booking_id", updated.ID, "marked_at", markedAt)
	return updated, nil
}

// RecordPaymentStatusInput changes the payment side of a booking.
type RecordPaymentStatusInput struct {
	TenantID        uuid.UUID
	BookingID       uuid.UUID
	ExpectedVersion int64
	NewStatus       PaymentStatus
	RequestedBy     uuid.UUID
}

// RecordPaymentStatus updates the payment status under the expected
// version. Billing reconciliation consumes the resulting event.
func (s *Service) RecordPaymentStatus(ctx context.Context, in RecordPaymentStatusInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.record_payment_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.booking_id", in.BookingID.String()),
	)

	now := s.now()
	booking, err := s.bookings.FindByID(ctx, in.TenantID, in.BookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	previous := booking.PaymentStatus

	updated, err := s.bookings.RecordPaymentStatus(ctx, in.TenantID, in.BookingID, in.NewStatus, in.ExpectedVersion)
	if err != nil {
		span.RecordError(err)
		s.observe("record_payment_status", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventPaymentStatusChanged, PaymentStatusChangedV1{
		EventID:        uuid.NewString(),
		TenantID:       updated.TenantID.String(),
		ClinicID:       updated.ClinicID.String(),
		BookingID:      updated.ID.String(),
		PatientID:      updated.PatientID.String(),
		PreviousStatus: string(previous),
		NewStatus:      string(in.NewStatus),
		ChangedAt:      now,
	})
	s.observe("record_payment_status", nil)
	s.logger.Info("payment status recorded",
		"tenant_id", in.TenantID, "booking_id", updated.ID,
		"previous", previous, "new", in.NewStatus)
	return updated, nil
}

// BeginAppointment moves a confirmed booking to in_progress when the
// patient arrives.
func (s *Service) BeginAppointment(ctx context.Context, tenantID, bookingID uuid.UUID, expectedVersion int64) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.begin_appointment")
	defer span.End()

	booking, err := s.bookings.FindByID(ctx, tenantID, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if booking.Status != BookingConfirmed {
		err := NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, expected confirmed", booking.ID, booking.Status)
		s.observe("begin_appointment", err)
		return nil, err
	}

	updated, err := s.bookings.UpdateStatus(ctx, tenantID, bookingID, BookingStatusUpdate{
		Status:          BookingInProgress,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("begin_appointment", err)
		return nil, err
	}
	s.observe("begin_appointment", nil)
	s.logger.Info("appointment started", "tenant_id", tenantID, "booking_id", bookingID)
	return updated, nil
}

// CompleteAppointment closes an in-progress booking once its payment is
// approved or settled.
func (s *Service) CompleteAppointment(ctx context.Context, tenantID, bookingID uuid.UUID, expectedVersion int64) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.complete_appointment")
	defer span.End()

	booking, err := s.bookings.FindByID(ctx, tenantID, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ValidatePaymentForCompletion(booking); err != nil {
		s.observe("complete_appointment", err)
		return nil, err
	}

	updated, err := s.bookings.UpdateStatus(ctx, tenantID, bookingID, BookingStatusUpdate{
		Status:          BookingCompleted,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("complete_appointment", err)
		return nil, err
	}
	s.observe("complete_appointment", nil)
	s.logger.Info("appointment completed", "tenant_id", tenantID, "booking_id", bookingID)
	return updated, nil
}
