package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecurrenceRepository stores recurrence series and occurrences.
type PostgresRecurrenceRepository struct {
	db dbQuerier
}

// NewPostgresRecurrenceRepository initializes a repo backed by pgxpool.
func NewPostgresRecurrenceRepository(pool *pgxpool.Pool) *PostgresRecurrenceRepository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresRecurrenceRepository{db: pool}
}

func newPostgresRecurrenceRepositoryWithQuerier(db dbQuerier) *PostgresRecurrenceRepository {
	if db == nil {
		panic("scheduling: querier required")
	}
	return &PostgresRecurrenceRepository{db: db}
}

// CreateSeries inserts a recurrence definition.
func (r *PostgresRecurrenceRepository) CreateSeries(ctx context.Context, series *RecurrenceSeries) error {
	query := `
		INSERT INTO recurrence_series (id, tenant_id, clinic_id, professional_id, patient_id,
			frequency, max_reschedules_per_occurrence, max_reschedules_per_series)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.Exec(ctx, query,
		series.ID,
		series.TenantID,
		series.ClinicID,
		series.ProfessionalID,
		series.PatientID,
		series.Frequency,
		series.Limits.MaxReschedulesPerOccurrence,
		series.Limits.MaxReschedulesPerSeries,
	); err != nil {
		return fmt.Errorf("scheduling: insert recurrence series: %w", err)
	}
	return nil
}

// UpdateSeriesLimits replaces the quota caps on a series.
func (r *PostgresRecurrenceRepository) UpdateSeriesLimits(ctx context.Context, tenantID, seriesID uuid.UUID, limits RecurrenceLimits) error {
	query := `
		UPDATE recurrence_series
		SET max_reschedules_per_occurrence = $1, max_reschedules_per_series = $2, updated_at = now()
		WHERE id = $3 AND tenant_id = $4
	`
	ct, err := r.db.Exec(ctx, query,
		limits.MaxReschedulesPerOccurrence, limits.MaxReschedulesPerSeries, seriesID, tenantID)
	if err != nil {
		return fmt.Errorf("scheduling: update series limits: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return NewError(KindNotFound, "series_not_found", "recurrence series %s not found", seriesID)
	}
	return nil
}

// FindSeriesByID fetches a series scoped to the tenant.
func (r *PostgresRecurrenceRepository) FindSeriesByID(ctx context.Context, tenantID, seriesID uuid.UUID) (*RecurrenceSeries, error) {
	query := `
		SELECT id, tenant_id, clinic_id, professional_id, patient_id, frequency,
			max_reschedules_per_occurrence, max_reschedules_per_series, created_at, updated_at
		FROM recurrence_series
		WHERE id = $1 AND tenant_id = $2
	`
	var s RecurrenceSeries
	if err := r.db.QueryRow(ctx, query, seriesID, tenantID).Scan(
		&s.ID,
		&s.TenantID,
		&s.ClinicID,
		&s.ProfessionalID,
		&s.PatientID,
		&s.Frequency,
		&s.Limits.MaxReschedulesPerOccurrence,
		&s.Limits.MaxReschedulesPerSeries,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "series_not_found", "recurrence series %s not found", seriesID)
		}
		return nil, fmt.Errorf("scheduling: select recurrence series: %w", err)
	}
	return &s, nil
}

// CreateOccurrence links a booking into its series.
func (r *PostgresRecurrenceRepository) CreateOccurrence(ctx context.Context, occurrence *RecurrenceOccurrence) error {
	query := `
		INSERT INTO recurrence_occurrences (id, tenant_id, series_id, booking_id, occurs_at, reschedules_count)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.Exec(ctx, query,
		occurrence.ID,
		occurrence.TenantID,
		occurrence.SeriesID,
		occurrence.BookingID,
		occurrence.OccursAt,
		occurrence.ReschedulesCount,
	); err != nil {
		return fmt.Errorf("scheduling: insert recurrence occurrence: %w", err)
	}
	return nil
}

// FindOccurrenceByBooking fetches the occurrence backing a booking.
func (r *PostgresRecurrenceRepository) FindOccurrenceByBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*RecurrenceOccurrence, error) {
	query := `
		SELECT id, tenant_id, series_id, booking_id, occurs_at, reschedules_count, created_at, updated_at
		FROM recurrence_occurrences
		WHERE booking_id = $1 AND tenant_id = $2
	`
	var o RecurrenceOccurrence
	if err := r.db.QueryRow(ctx, query, bookingID, tenantID).Scan(
		&o.ID,
		&o.TenantID,
		&o.SeriesID,
		&o.BookingID,
		&o.OccursAt,
		&o.ReschedulesCount,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError(KindNotFound, "occurrence_not_found", "no occurrence for booking %s", bookingID)
		}
		return nil, fmt.Errorf("scheduling: select recurrence occurrence: %w", err)
	}
	return &o, nil
}

// RecordOccurrenceReschedule bumps the per-occurrence counter.
func (r *PostgresRecurrenceRepository) RecordOccurrenceReschedule(ctx context.Context, tenantID, occurrenceID uuid.UUID) error {
	query := `
		UPDATE recurrence_occurrences
		SET reschedules_count = reschedules_count + 1, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`
	ct, err := r.db.Exec(ctx, query, occurrenceID, tenantID)
	if err != nil {
		return fmt.Errorf("scheduling: record occurrence reschedule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return NewError(KindNotFound, "occurrence_not_found", "occurrence %s not found", occurrenceID)
	}
	return nil
}

// GetRescheduleUsage returns the occurrence counter and the series total
// in one round trip.
func (r *PostgresRecurrenceRepository) GetRescheduleUsage(ctx context.Context, tenantID, seriesID, occurrenceID uuid.UUID) (RescheduleUsage, error) {
	query := `
		SELECT
			COALESCE(SUM(reschedules_count) FILTER (WHERE id = $1), 0),
			COALESCE(SUM(reschedules_count), 0)
		FROM recurrence_occurrences
		WHERE series_id = $2 AND tenant_id = $3
	`
	var usage RescheduleUsage
	if err := r.db.QueryRow(ctx, query, occurrenceID, seriesID, tenantID).Scan(
		&usage.OccurrenceCount,
		&usage.SeriesTotal,
	); err != nil {
		return RescheduleUsage{}, fmt.Errorf("scheduling: query reschedule usage: %w", err)
	}
	return usage, nil
}
