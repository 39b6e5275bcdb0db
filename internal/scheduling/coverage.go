package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ApplyCoverageInput temporarily substitutes one professional by another
// over a bounded window.
type ApplyCoverageInput struct {
	TenantID       uuid.UUID
	CoverageID     uuid.UUID
	ProfessionalID uuid.UUID
	CoveringID     uuid.UUID
	WindowStart    time.Time
	WindowEnd      time.Time
	RequestedBy    uuid.UUID
}

// ApplyCoverage re-points holds and bookings overlapping the window to the
// covering professional, snapshotting the original on first touch. The
// operation is idempotent: records already tied to this coverage id are
// skipped by the repositories, so reapplying returns the existing state.
func (s *Service) ApplyCoverage(ctx context.Context, in ApplyCoverageInput) (holdsMoved, bookingsMoved int64, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.apply_coverage")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", in.TenantID.String()),
		attribute.String("scheduling.coverage_id", in.CoverageID.String()),
	)

	now := s.now()
	if !in.WindowStart.Before(in.WindowEnd) {
		err := NewError(KindTemporalWindowViolation, "", "coverage window start must precede end")
		s.observe("apply_coverage", err)
		return 0, 0, err
	}

	window := TimeRange{Start: in.WindowStart, End: in.WindowEnd}
	holdsMoved, err = s.holds.ReassignForCoverage(ctx, in.TenantID, in.ProfessionalID, in.CoverageID, in.CoveringID, window)
	if err != nil {
		span.RecordError(err)
		s.observe("apply_coverage", err)
		return 0, 0, err
	}
	bookingsMoved, err = s.bookings.ReassignForCoverage(ctx, in.TenantID, in.ProfessionalID, in.CoverageID, in.CoveringID, window)
	if err != nil {
		span.RecordError(err)
		s.observe("apply_coverage", err)
		return holdsMoved, 0, err
	}

	s.publish(ctx, in.TenantID, EventCoverageApplied, CoverageAppliedV1{
		EventID:         uuid.NewString(),
		TenantID:        in.TenantID.String(),
		CoverageID:      in.CoverageID.String(),
		ProfessionalID:  in.ProfessionalID.String(),
		CoveringID:      in.CoveringID.String(),
		WindowStart:     in.WindowStart,
		WindowEnd:       in.WindowEnd,
		HoldsReassigned: holdsMoved,
		BookingsMoved:   bookingsMoved,
		AppliedAt:       now,
	})
	s.observe("apply_coverage", nil)
	s.logger.Info("coverage applied",
		"tenant_id", in.TenantID, "coverage_id", in.CoverageID,
		"holds_reassigned", holdsMoved, "bookings_moved", bookingsMoved)
	return holdsMoved, bookingsMoved, nil
}

// ReleaseCoverage restores the original professional on every record tied
// to the coverage id once the coverage window has elapsed. Idempotent:
// releasing an already-released coverage touches zero rows.
func (s *Service) ReleaseCoverage(ctx context.Context, tenantID, coverageID uuid.UUID) (holdsRestored, bookingsRestored int64, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.release_coverage")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.tenant_id", tenantID.String()),
		attribute.String("scheduling.coverage_id", coverageID.String()),
	)

	now := s.now()
	holdsRestored, err = s.holds.ReleaseCoverageAssignments(ctx, tenantID, coverageID)
	if err != nil {
		span.RecordError(err)
		s.observe("release_coverage", err)
		return 0, 0, err
	}
	bookingsRestored, err = s.bookings.ReleaseCoverageAssignments(ctx, tenantID, coverageID)
	if err != nil {
		span.RecordError(err)
		s.observe("release_coverage", err)
		return holdsRestored, 0, err
	}

	s.publish(ctx, tenantID, EventCoverageReleased, CoverageReleasedV1{
		EventID:          uuid.NewString(),
		TenantID:         tenantID.String(),
		CoverageID:       coverageID.String(),
		HoldsRestored:    holdsRestored,
		BookingsRestored: bookingsRestored,
		ReleasedAt:       now,
	})
	s.observe("release_coverage", nil)
	s.logger.Info("coverage released",
		"tenant_id", tenantID, "coverage_id", coverageID,
		"holds_restored", holdsRestored, "bookings_restored", bookingsRestored)
	return holdsRestored, bookingsRestored, nil
}

// CancelHold cancels an active hold explicitly, under expected version.
func (s *Service) CancelHold(ctx context.Context, tenantID, holdID uuid.UUID, expectedVersion int64) (*Hold, error) {
	ctx, span := tracer.Start(ctx, "scheduling.cancel_hold")
	defer span.End()

	hold, err := s.holds.FindByID(ctx, tenantID, holdID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if hold.Status != HoldActive {
		err := NewError(KindInvalidState, ReasonHoldInvalidState,
			"hold %s is %s, cannot cancel", hold.ID, hold.Status)
		s.observe("cancel_hold", err)
		return nil, err
	}

	updated, err := s.holds.UpdateStatus(ctx, tenantID, holdID, HoldStatusUpdate{
		Status:          HoldCancelled,
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		span.RecordError(err)
		s.observe("cancel_hold", err)
		return nil, err
	}
	s.observe("cancel_hold", nil)
	s.logger.Info("hold cancelled", "tenant_id", tenantID, "hold_id", holdID)
	return updated, nil
}
