package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Persistence ports. Every method is tenant-scoped: the tenant id appears
// in each signature so cross-tenant access is structurally impossible.
// Mutations against versioned aggregates take the caller's expected version
// and must return a KindConcurrencyConflict error when the conditional
// write affects zero rows — never retry or swallow the mismatch.

// TimeRange is a half-open [Start, End) window used by overlap queries.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports half-open interval intersection.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// HoldStatusUpdate is the conditional status transition for a hold.
type HoldStatusUpdate struct {
	Status          HoldStatus
	ExpectedVersion int64
}

// HoldRepository persists slot holds.
type HoldRepository interface {
	Create(ctx context.Context, hold *Hold) error
	FindByID(ctx context.Context, tenantID, holdID uuid.UUID) (*Hold, error)
	// FindActiveOverlap returns active holds for the professional whose
	// window intersects the given half-open range.
	FindActiveOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Hold, error)
	// ListExpiringBefore enumerates active holds whose TTL passed, for the
	// external sweep job.
	ListExpiringBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int32) ([]*Hold, error)
	UpdateStatus(ctx context.Context, tenantID, holdID uuid.UUID, update HoldStatusUpdate) (*Hold, error)
	// ExpireBatch bulk-transitions the given active holds to expired,
	// returning how many rows actually moved.
	ExpireBatch(ctx context.Context, tenantID uuid.UUID, holdIDs []uuid.UUID) (int64, error)
	// ReassignForCoverage re-points active holds overlapping the window to
	// the covering professional, snapshotting the original. Records already
	// tied to the coverage id are skipped (idempotent).
	ReassignForCoverage(ctx context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error)
	// ReleaseCoverageAssignments restores the original professional on
	// holds tied to the coverage id.
	ReleaseCoverageAssignments(ctx context.Context, tenantID, coverageID uuid.UUID) (int64, error)
}

// BookingStatusUpdate is the conditional status transition for a booking.
type BookingStatusUpdate struct {
	Status             BookingStatus
	PaymentStatus      *PaymentStatus
	CancellationReason *string
	ExpectedVersion    int64
}

// BookingReschedule moves a booking's window under its expected version.
type BookingReschedule struct {
	StartAt         time.Time
	EndAt           time.Time
	ExpectedVersion int64
}

// BookingRepository persists bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	FindByID(ctx context.Context, tenantID, bookingID uuid.UUID) (*Booking, error)
	// FindByHold returns the booking backed by the hold, or nil when the
	// hold has not been consumed yet.
	FindByHold(ctx context.Context, tenantID, holdID uuid.UUID) (*Booking, error)
	// ListByProfessionalAndRange returns non-terminal bookings for the
	// professional intersecting the half-open window.
	ListByProfessionalAndRange(ctx context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Booking, error)
	ListByClinicAndRange(ctx context.Context, tenantID, clinicID uuid.UUID, window TimeRange) ([]*Booking, error)
	UpdateStatus(ctx context.Context, tenantID, bookingID uuid.UUID, update BookingStatusUpdate) (*Booking, error)
	Reschedule(ctx context.Context, tenantID, bookingID uuid.UUID, move BookingReschedule) (*Booking, error)
	RecordPaymentStatus(ctx context.Context, tenantID, bookingID uuid.UUID, status PaymentStatus, expectedVersion int64) (*Booking, error)
	MarkNoShow(ctx context.Context, tenantID, bookingID uuid.UUID, markedAt time.Time, expectedVersion int64) (*Booking, error)
	ReassignForCoverage(ctx context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error)
	ReleaseCoverageAssignments(ctx context.Context, tenantID, coverageID uuid.UUID) (int64, error)
}

// RecurrenceRepository persists recurrence series and their occurrences.
type RecurrenceRepository interface {
	CreateSeries(ctx context.Context, series *RecurrenceSeries) error
	UpdateSeriesLimits(ctx context.Context, tenantID, seriesID uuid.UUID, limits RecurrenceLimits) error
	FindSeriesByID(ctx context.Context, tenantID, seriesID uuid.UUID) (*RecurrenceSeries, error)
	CreateOccurrence(ctx context.Context, occurrence *RecurrenceOccurrence) error
	FindOccurrenceByBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*RecurrenceOccurrence, error)
	// RecordOccurrenceReschedule bumps the occurrence counter. Called
	// best-effort after the booking window has already moved.
	RecordOccurrenceReschedule(ctx context.Context, tenantID, occurrenceID uuid.UUID) error
	// GetRescheduleUsage returns the occurrence's own counter together
	// with the series-wide total.
	GetRescheduleUsage(ctx context.Context, tenantID, seriesID, occurrenceID uuid.UUID) (RescheduleUsage, error)
}
