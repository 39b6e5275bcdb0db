package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/oakwellhealth/scheduling-platform/internal/observability/metrics"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

var tracer = otel.Tracer("scheduling-platform.internal.scheduling")

// PolicyResolver supplies the availability policy for a clinic.
type PolicyResolver interface {
	PolicyFor(ctx context.Context, tenantID, clinicID uuid.UUID) (AvailabilityPolicy, error)
}

// Service orchestrates the scheduling use-cases. Every operation follows
// the same shape: load, validate, conditional write, publish, return.
type Service struct {
	holds      HoldRepository
	bookings   BookingRepository
	recurrence RecurrenceRepository
	policies   PolicyResolver
	publisher  Publisher
	logger     *logging.Logger
	metrics    *metrics.SchedulingMetrics
	now        func() time.Time
}

// NewService constructs the scheduling service.
func NewService(
	holds HoldRepository,
	bookings BookingRepository,
	recurrence RecurrenceRepository,
	policies PolicyResolver,
	publisher Publisher,
	logger *logging.Logger,
	m *metrics.SchedulingMetrics,
) *Service {
	if holds == nil || bookings == nil || recurrence == nil {
		panic("scheduling: repositories required")
	}
	if policies == nil {
		panic("scheduling: policy resolver required")
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		holds:      holds,
		bookings:   bookings,
		recurrence: recurrence,
		policies:   policies,
		publisher:  publisher,
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use this to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// publish emits a domain event and logs delivery failures without
// propagating them: the state change already committed.
func (s *Service) publish(ctx context.Context, tenantID uuid.UUID, eventType string, payload any) {
	if err := s.publisher.Publish(ctx, tenantID, eventType, payload); err != nil {
		s.logger.Error("event publish failed", "error", err, "event_type", eventType, "tenant_id", tenantID)
	}
}

// CreateHoldInput carries everything needed to place a hold.
type CreateHoldInput struct {
	TenantID       uuid.UUID
	ClinicID       uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	ServiceTypeID  *uuid.UUID
	StartAt        time.Time
	EndAt          time.Time
	RequestedBy    uuid.UUID
}

// CreateHold places a tentative reservation on the professional's slot.
// The overlap checks are read-then-write: a conflicting writer landing
// between the check and the insert is an accepted narrow race, backed by
// the storage-level exclusion constraint.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (*Hold, error) {
	ctx, span := tracer.Start(ctx, "scheduling.create_hold")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.professional_id", in.ProfessionalID.String()),
	)

	now := s.now()
	if !in.StartAt.Before(in.EndAt) {
		err := NewError(KindTemporalWindowViolation, "", "hold start must precede end")
		s.observe("create_hold", err)
		return nil, err
	}

	policy, err := s.policies.PolicyFor(ctx, in.TenantID, in.ClinicID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ValidateAdvanceWindow(in.StartAt, now, policy); err != nil {
		s.observe("create_hold", err)
		return nil, err
	}

	window := TimeRange{Start: in.StartAt, End: in.EndAt}
	busy, err := s.bookings.ListByProfessionalAndRange(ctx, in.TenantID, in.ProfessionalID, window)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(busy) > 0 {
		err := NewError(KindInvalidState, ReasonSlotTaken,
			"professional %s already booked in window", in.ProfessionalID)
		s.observe("create_hold", err)
		return nil, err
	}
	held, err := s.holds.FindActiveOverlap(ctx, in.TenantID, in.ProfessionalID, window)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(held) > 0 {
		err := NewError(KindInvalidState, ReasonSlotTaken,
			"professional %s already held in window", in.ProfessionalID)
		s.observe("create_hold", err)
		return nil, err
	}

	hold := &Hold{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		ClinicID:       in.ClinicID,
		ProfessionalID: in.ProfessionalID,
		PatientID:      in.PatientID,
		ServiceTypeID:  in.ServiceTypeID,
		StartAt:        in.StartAt,
		EndAt:          in.EndAt,
		TTLExpiresAt:   ComputeHoldExpiry(in.StartAt, policy, now),
		Status:         HoldActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.holds.Create(ctx, hold); err != nil {
		span.RecordError(err)
		s.observe("create_hold", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventHoldCreated, HoldCreatedV1{
		EventID:        uuid.NewString(),
		TenantID:       in.TenantID.String(),
		ClinicID:       in.ClinicID.String(),
		HoldID:         hold.ID.String(),
		ProfessionalID: in.ProfessionalID.String(),
		PatientID:      in.PatientID.String(),
		StartAt:        hold.StartAt,
		EndAt:          hold.EndAt,
		TTLExpiresAt:   hold.TTLExpiresAt,
		CreatedAt:      now,
	})
	s.observe("create_hold", nil)
	s.logger.Info("hold created",
		"tenant_id", in.TenantID, "hold_id", hold.ID,
		"professional_id", in.ProfessionalID, "ttl_expires_at", hold.TTLExpiresAt)
	return hold, nil
}

// CreateBookingInput promotes a hold into a booking.
type CreateBookingInput struct {
	TenantID             uuid.UUID
	HoldID               uuid.UUID
	Source               BookingSource
	Timezone             string
	LateToleranceMinutes int
	RecurrenceSeriesID   *uuid.UUID
	Pricing              *PricingSplit
	AnamnesisRequired    bool
	RequestedBy          uuid.UUID
}

// CreateBooking consumes a hold and creates the backing booking in
// scheduled state. A hold backs at most one booking: an existing booking
// for the hold rejects the call before the hold is touched.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.create_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.hold_id", in.HoldID.String()),
	)

	now := s.now()
	hold, err := s.holds.FindByID(ctx, in.TenantID, in.HoldID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ValidateHoldForBookingCreation(hold, now); err != nil {
		s.observe("create_booking", err)
		return nil, err
	}

	existing, err := s.bookings.FindByHold(ctx, in.TenantID, in.HoldID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if existing != nil {
		err := NewError(KindInvalidState, ReasonHoldAlreadyUsed,
			"hold %s already backs booking %s", in.HoldID, existing.ID)
		s.observe("create_booking", err)
		return nil, err
	}

	if _, err := s.holds.UpdateStatus(ctx, in.TenantID, in.HoldID, HoldStatusUpdate{
		Status:          HoldConfirmed,
		ExpectedVersion: hold.Version,
	}); err != nil {
		span.RecordError(err)
		s.observe("create_booking", err)
		return nil, err
	}

	holdID := hold.ID
	ttl := hold.TTLExpiresAt
	booking := &Booking{
		ID:                   uuid.New(),
		TenantID:             hold.TenantID,
		ClinicID:             hold.ClinicID,
		ProfessionalID:       hold.ProfessionalID,
		PatientID:            hold.PatientID,
		ServiceTypeID:        hold.ServiceTypeID,
		Source:               in.Source,
		Status:               BookingScheduled,
		PaymentStatus:        PaymentNotApplied,
		HoldID:               &holdID,
		HoldExpiresAt:        &ttl,
		StartAt:              hold.StartAt,
		EndAt:                hold.EndAt,
		Timezone:             in.Timezone,
		LateToleranceMinutes: in.LateToleranceMinutes,
		RecurrenceSeriesID:   in.RecurrenceSeriesID,
		Pricing:              in.Pricing,
		AnamnesisRequired:    in.AnamnesisRequired,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		span.RecordError(err)
		s.observe("create_booking", err)
		return nil, err
	}

	s.publish(ctx, in.TenantID, EventBookingCreated, BookingCreatedV1{
		EventID:        uuid.NewString(),
		TenantID:       booking.TenantID.String(),
		ClinicID:       booking.ClinicID.String(),
		BookingID:      booking.ID.String(),
		HoldID:         holdID.String(),
		ProfessionalID: booking.ProfessionalID.String(),
		PatientID:      booking.PatientID.String(),
		Source:         string(in.Source),
		StartAt:        booking.StartAt,
		EndAt:          booking.EndAt,
		CreatedAt:      now,
	})
	s.observe("create_booking", nil)
	s.logger.Info("booking created",
		"tenant_id", in.TenantID, "booking_id", booking.ID, "hold_id", holdID)
	return booking, nil
}

// ConfirmBookingInput confirms a scheduled booking once payment approved.
type ConfirmBookingInput struct {
	TenantID      uuid.UUID
	BookingID     uuid.UUID
	HoldID        uuid.UUID
	PaymentStatus PaymentStatus
	RequestedBy   uuid.UUID
}

// ConfirmBooking moves a scheduled booking to confirmed. Both the booking
// and its hold are updated, each guarded by its own expected version.
func (s *Service) ConfirmBooking(ctx context.Context, in ConfirmBookingInput) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "scheduling.confirm_booking")
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
	hold, err := s.holds.FindByID(ctx, in.TenantID, in.HoldID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// A hold already consumed by booking creation sits in confirmed state;
	// only a still-active hold needs the expiry guard here.
	if hold == nil {
		err := errHoldNotFound()
		s.observe("confirm_booking", err)
		return nil, err
	}
	if hold.Status == HoldActive {
		if err := ValidateHoldForConfirmation(hold, now); err != nil {
			s.observe("confirm_booking", err)
			return nil, err
		}
	} else if hold.Status != HoldConfirmed {
		err := NewError(KindInvalidState, ReasonHoldInvalidState,
			"hold %s is %s, cannot confirm", hold.ID, hold.Status)
		s.observe("confirm_booking", err)
		return nil, err
	}
	if err := ValidatePaymentForConfirmation(booking, in.PaymentStatus); err != nil {
		s.observe("confirm_booking", err)
		return nil, err
	}

	paymentStatus := in.PaymentStatus
	updated, err := s.bookings.UpdateStatus(ctx, in.TenantID, in.BookingID, BookingStatusUpdate{
		Status:          BookingConfirmed,
		PaymentStatus:   &paymentStatus,
		ExpectedVersion: booking.Version,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("confirm_booking", err)
		return nil, err
	}
	if hold.Status == HoldActive {
		if _, err := s.holds.UpdateStatus(ctx, in.TenantID, in.HoldID, HoldStatusUpdate{
			Status:          HoldConfirmed,
			ExpectedVersion: hold.Version,
		}); err != nil {
			span.RecordError(err)
			s.observe("confirm_booking", err)
			return nil, err
		}
	}

	s.publish(ctx, in.TenantID, EventBookingConfirmed, BookingConfirmedV1{
		EventID:        uuid.NewString(),
		TenantID:       updated.TenantID.String(),
		ClinicID:       updated.ClinicID.String(),
		BookingID:      updated.ID.String(),
		ProfessionalID: updated.ProfessionalID.String(),
		PatientID:      updated.PatientID.String(),
		PaymentStatus:  string(updated.PaymentStatus),
		ConfirmedAt:    now,
		StartAt:        updated.StartAt,
	})
	s.observe("confirm_booking", nil)
	s.logger.Info("booking confirmed",
		"tenant_id", in.TenantID, "booking_id", updated.ID, "payment_status", updated.PaymentStatus)
	return updated, nil
}

// observe feeds the outcome counters; err==nil counts as success.
func (s *Service) observe(operation string, err error) {
	if err == nil {
		s.metrics.ObserveOperation(operation, "ok")
		return
	}
	var se *Error
	if errors.As(err, &se) {
		s.metrics.ObserveOperation(operation, string(se.Kind))
		if se.Kind == KindConcurrencyConflict && se.Entity != "" {
			s.metrics.ObserveConflict(se.Entity)
		}
		return
	}
	s.metrics.ObserveOperation(operation, "error")
}
