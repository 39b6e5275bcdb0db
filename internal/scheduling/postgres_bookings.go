package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, tenant_id, clinic_id, professional_id, original_professional_id,
		coverage_id, patient_id, service_type_id, source, status, payment_status,
		hold_id, hold_expires_at, start_at, end_at, timezone, late_tolerance_minutes,
		recurrence_series_id, cancellation_reason, pricing, preconditions_passed,
		anamnesis_required, anamnesis_override, no_show_marked_at, version,
		created_at, updated_at`

// nonTerminalBookingStatuses limits overlap queries to rows that still
// occupy the calendar.
const nonTerminalBookingStatuses = `('scheduled', 'confirmed', 'in_progress')`

// PostgresBookingRepository stores bookings in the relational database.
type PostgresBookingRepository struct {
	db dbQuerier
}

// NewPostgresBookingRepository initializes a repo backed by pgxpool.
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresBookingRepository{db: pool}
}

func newPostgresBookingRepositoryWithQuerier(db dbQuerier) *PostgresBookingRepository {
	if db == nil {
		panic("scheduling: querier required")
	}
	return &PostgresBookingRepository{db: db}
}

func scanBooking(row scanner) (*Booking, error) {
	var b Booking
	var pricing []byte
	if err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.ClinicID,
		&b.ProfessionalID,
		&b.OriginalProfessionalID,
		&b.CoverageID,
		&b.PatientID,
		&b.ServiceTypeID,
		&b.Source,
		&b.Status,
		&b.PaymentStatus,
		&b.HoldID,
		&b.HoldExpiresAt,
		&b.StartAt,
		&b.EndAt,
		&b.Timezone,
		&b.LateToleranceMinutes,
		&b.RecurrenceSeriesID,
		&b.CancellationReason,
		&pricing,
		&b.PreconditionsPassed,
		&b.AnamnesisRequired,
		&b.AnamnesisOverride,
		&b.NoShowMarkedAt,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(pricing) > 0 {
		var split PricingSplit
		if err := json.Unmarshal(pricing, &split); err != nil {
			return nil, fmt.Errorf("decode pricing: %w", err)
		}
		b.Pricing = &split
	}
	return &b, nil
}

// Create inserts a new booking row. The unique index on (tenant_id,
// hold_id) backs the one-booking-per-hold invariant at the storage level.
func (r *PostgresBookingRepository) Create(ctx context.Context, booking *Booking) error {
	var pricing []byte
	if booking.Pricing != nil {
		data, err := json.Marshal(booking.Pricing)
		if err != nil {
			return fmt.Errorf("scheduling: encode pricing: %w", err)
		}
		pricing = data
	}
	query := `
		INSERT INTO bookings (id, tenant_id, clinic_id, professional_id, patient_id,
			service_type_id, source, status, payment_status, hold_id, hold_expires_at,
			start_at, end_at, timezone, late_tolerance_minutes, recurrence_series_id,
			pricing, preconditions_passed, anamnesis_required, anamnesis_override, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	if _, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.TenantID,
		booking.ClinicID,
		booking.ProfessionalID,
		booking.PatientID,
		booking.ServiceTypeID,
		booking.Source,
		booking.Status,
		booking.PaymentStatus,
		booking.HoldID,
		booking.HoldExpiresAt,
		booking.StartAt,
		booking.EndAt,
		booking.Timezone,
		booking.LateToleranceMinutes,
		booking.RecurrenceSeriesID,
		pricing,
		booking.PreconditionsPassed,
		booking.AnamnesisRequired,
		booking.AnamnesisOverride,
		booking.Version,
	); err != nil {
		return fmt.Errorf("scheduling: insert booking: %w", err)
	}
	return nil
}

// FindByID fetches a booking scoped to the tenant.
func (r *PostgresBookingRepository) FindByID(ctx context.Context, tenantID, bookingID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 AND tenant_id = $2`
	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errBookingNotFound()
		}
		return nil, fmt.Errorf("scheduling: select booking: %w", err)
	}
	return booking, nil
}

// FindByHold returns the booking backed by the hold, nil when unconsumed.
func (r *PostgresBookingRepository) FindByHold(ctx context.Context, tenantID, holdID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE hold_id = $1 AND tenant_id = $2`
	booking, err := scanBooking(r.db.QueryRow(ctx, query, holdID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scheduling: select booking by hold: %w", err)
	}
	return booking, nil
}

func (r *PostgresBookingRepository) listByRange(ctx context.Context, query string, args ...any) ([]*Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// ListByProfessionalAndRange returns non-terminal bookings intersecting
// the half-open window.
func (r *PostgresBookingRepository) ListByProfessionalAndRange(ctx context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND professional_id = $2
		  AND status IN ` + nonTerminalBookingStatuses + `
		  AND start_at < $4 AND end_at > $3
	`
	return r.listByRange(ctx, query, tenantID, professionalID, window.Start, window.End)
}

// ListByClinicAndRange returns non-terminal bookings for a clinic.
func (r *PostgresBookingRepository) ListByClinicAndRange(ctx context.Context, tenantID, clinicID uuid.UUID, window TimeRange) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tenant_id = $1 AND clinic_id = $2
		  AND status IN ` + nonTerminalBookingStatuses + `
		  AND start_at < $4 AND end_at > $3
	`
	return r.listByRange(ctx, query, tenantID, clinicID, window.Start, window.End)
}

func (r *PostgresBookingRepository) conditionalUpdate(ctx context.Context, query string, args ...any) (*Booking, error) {
	booking, err := scanBooking(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errConcurrencyConflict("booking")
		}
		return nil, fmt.Errorf("scheduling: conditional booking update: %w", err)
	}
	return booking, nil
}

// UpdateStatus performs the conditional status transition.
func (r *PostgresBookingRepository) UpdateStatus(ctx context.Context, tenantID, bookingID uuid.UUID, update BookingStatusUpdate) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = $1,
		    payment_status = COALESCE($2, payment_status),
		    cancellation_reason = COALESCE($3, cancellation_reason),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $4 AND tenant_id = $5 AND version = $6
		RETURNING ` + bookingColumns + `
	`
	return r.conditionalUpdate(ctx, query,
		update.Status, update.PaymentStatus, update.CancellationReason,
		bookingID, tenantID, update.ExpectedVersion)
}

// Reschedule moves the booking window under the expected version.
func (r *PostgresBookingRepository) Reschedule(ctx context.Context, tenantID, bookingID uuid.UUID, move BookingReschedule) (*Booking, error) {
	query := `
		UPDATE bookings
		SET start_at = $1, end_at = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND tenant_id = $4 AND version = $5
		RETURNING ` + bookingColumns + `
	`
	return r.conditionalUpdate(ctx, query,
		move.StartAt, move.EndAt, bookingID, tenantID, move.ExpectedVersion)
}

// RecordPaymentStatus updates only the payment side of the booking.
func (r *PostgresBookingRepository) RecordPaymentStatus(ctx context.Context, tenantID, bookingID uuid.UUID, status PaymentStatus, expectedVersion int64) (*Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND version = $4
		RETURNING ` + bookingColumns + `
	`
	return r.conditionalUpdate(ctx, query, status, bookingID, tenantID, expectedVersion)
}

// MarkNoShow records the no-show transition and its timestamp.
func (r *PostgresBookingRepository) MarkNoShow(ctx context.Context, tenantID, bookingID uuid.UUID, markedAt time.Time, expectedVersion int64) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'no_show', no_show_marked_at = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND version = $4
		RETURNING ` + bookingColumns + `
	`
	return r.conditionalUpdate(ctx, query, markedAt, bookingID, tenantID, expectedVersion)
}

// ReassignForCoverage re-points non-terminal overlapping bookings to the
// covering professional. Once reassigned, professional_id no longer matches
// the original, so reapplying the same coverage touches zero rows.
func (r *PostgresBookingRepository) ReassignForCoverage(ctx context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error) {
	query := `
		UPDATE bookings
		SET professional_id = $1,
		    original_professional_id = COALESCE(original_professional_id, professional_id),
		    coverage_id = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $3 AND professional_id = $4
		  AND status IN ` + nonTerminalBookingStatuses + `
		  AND start_at < $6 AND end_at > $5
		  AND coverage_id IS NULL
	`
	ct, err := r.db.Exec(ctx, query, coveringID, coverageID, tenantID, professionalID, window.Start, window.End)
	if err != nil {
		return 0, fmt.Errorf("scheduling: reassign bookings for coverage: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ReleaseCoverageAssignments restores the original professional on
// bookings tied to the coverage id.
func (r *PostgresBookingRepository) ReleaseCoverageAssignments(ctx context.Context, tenantID, coverageID uuid.UUID) (int64, error) {
	query := `
		UPDATE bookings
		SET professional_id = COALESCE(original_professional_id, professional_id),
		    original_professional_id = NULL,
		    coverage_id = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $1 AND coverage_id = $2
	`
	ct, err := r.db.Exec(ctx, query, tenantID, coverageID)
	if err != nil {
		return 0, fmt.Errorf("scheduling: release booking coverage: %w", err)
	}
	return ct.RowsAffected(), nil
}
