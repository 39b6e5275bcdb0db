package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const holdColumns = `id, tenant_id, clinic_id, professional_id, original_professional_id,
		coverage_id, patient_id, service_type_id, start_at, end_at, ttl_expires_at,
		status, version, created_at, updated_at`

// PostgresHoldRepository stores holds in the relational database.
type PostgresHoldRepository struct {
	db dbQuerier
}

// NewPostgresHoldRepository initializes a repo backed by pgxpool.
func NewPostgresHoldRepository(pool *pgxpool.Pool) *PostgresHoldRepository {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresHoldRepository{db: pool}
}

func newPostgresHoldRepositoryWithQuerier(db dbQuerier) *PostgresHoldRepository {
	if db == nil {
		panic("scheduling: querier required")
	}
	return &PostgresHoldRepository{db: db}
}

func scanHold(row scanner) (*Hold, error) {
	var h Hold
	if err := row.Scan(
		&h.ID,
		&h.TenantID,
		&h.ClinicID,
		&h.ProfessionalID,
		&h.OriginalProfessionalID,
		&h.CoverageID,
		&h.PatientID,
		&h.ServiceTypeID,
		&h.StartAt,
		&h.EndAt,
		&h.TTLExpiresAt,
		&h.Status,
		&h.Version,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &h, nil
}

// Create inserts a new hold row.
func (r *PostgresHoldRepository) Create(ctx context.Context, hold *Hold) error {
	query := `
		INSERT INTO holds (id, tenant_id, clinic_id, professional_id, patient_id,
			service_type_id, start_at, end_at, ttl_expires_at, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if _, err := r.db.Exec(ctx, query,
		hold.ID,
		hold.TenantID,
		hold.ClinicID,
		hold.ProfessionalID,
		hold.PatientID,
		hold.ServiceTypeID,
		hold.StartAt,
		hold.EndAt,
		hold.TTLExpiresAt,
		hold.Status,
		hold.Version,
	); err != nil {
		return fmt.Errorf("scheduling: insert hold: %w", err)
	}
	return nil
}

// FindByID fetches a hold scoped to the tenant.
func (r *PostgresHoldRepository) FindByID(ctx context.Context, tenantID, holdID uuid.UUID) (*Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1 AND tenant_id = $2`
	hold, err := scanHold(r.db.QueryRow(ctx, query, holdID, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errHoldNotFound()
		}
		return nil, fmt.Errorf("scheduling: select hold: %w", err)
	}
	return hold, nil
}

// FindActiveOverlap returns active holds intersecting the half-open window.
func (r *PostgresHoldRepository) FindActiveOverlap(ctx context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Hold, error) {
	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE tenant_id = $1 AND professional_id = $2 AND status = 'active'
		  AND start_at < $4 AND end_at > $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, professionalID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query overlapping holds: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan hold: %w", err)
		}
		holds = append(holds, hold)
	}
	return holds, rows.Err()
}

// ListExpiringBefore enumerates active holds whose TTL passed the cutoff.
func (r *PostgresHoldRepository) ListExpiringBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int32) ([]*Hold, error) {
	query := `
		SELECT ` + holdColumns + `
		FROM holds
		WHERE tenant_id = $1 AND status = 'active' AND ttl_expires_at <= $2
		ORDER BY ttl_expires_at
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("scheduling: query expiring holds: %w", err)
	}
	defer rows.Close()

	var holds []*Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scheduling: scan hold: %w", err)
		}
		holds = append(holds, hold)
	}
	return holds, rows.Err()
}

// UpdateStatus performs the conditional status transition. Zero rows
// affected means another writer got there first: the load step already
// established the row exists, so a miss is a version conflict.
func (r *PostgresHoldRepository) UpdateStatus(ctx context.Context, tenantID, holdID uuid.UUID, update HoldStatusUpdate) (*Hold, error) {
	query := `
		UPDATE holds
		SET status = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND version = $4
		RETURNING ` + holdColumns + `
	`
	hold, err := scanHold(r.db.QueryRow(ctx, query, update.Status, holdID, tenantID, update.ExpectedVersion))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errConcurrencyConflict("hold")
		}
		return nil, fmt.Errorf("scheduling: update hold status: %w", err)
	}
	return hold, nil
}

// ReassignForCoverage points active, overlapping holds at the covering
// professional. Rows already carrying this coverage id are left alone so a
// repeat application is a no-op.
func (r *PostgresHoldRepository) ReassignForCoverage(ctx context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error) {
	query := `
		UPDATE holds
		SET professional_id = $1,
		    original_professional_id = COALESCE(original_professional_id, professional_id),
		    coverage_id = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $3 AND professional_id = $4 AND status = 'active'
		  AND start_at < $6 AND end_at > $5
		  AND coverage_id IS NULL
	`
	ct, err := r.db.Exec(ctx, query, coveringID, coverageID, tenantID, professionalID, window.Start, window.End)
	if err != nil {
		return 0, fmt.Errorf("scheduling: reassign holds for coverage: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ReleaseCoverageAssignments restores the original professional on holds
// tied to the coverage id. Idempotent: a second release matches no rows.
func (r *PostgresHoldRepository) ReleaseCoverageAssignments(ctx context.Context, tenantID, coverageID uuid.UUID) (int64, error) {
	query := `
		UPDATE holds
		SET professional_id = COALESCE(original_professional_id, professional_id),
		    original_professional_id = NULL,
		    coverage_id = NULL,
		    version = version + 1,
		    updated_at = now()
		WHERE tenant_id = $1 AND coverage_id = $2
	`
	ct, err := r.db.Exec(ctx, query, tenantID, coverageID)
	if err != nil {
		return 0, fmt.Errorf("scheduling: release hold coverage: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ExpireBatch transitions the given active holds to expired in one
// statement. Used by the TTL sweeper; rows that raced into a terminal
// state are skipped by the status guard.
func (r *PostgresHoldRepository) ExpireBatch(ctx context.Context, tenantID uuid.UUID, holdIDs []uuid.UUID) (int64, error) {
	if len(holdIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE holds
		SET status = 'expired', version = version + 1, updated_at = now()
		WHERE tenant_id = $1 AND status = 'active' AND id = ANY($2)
	`
	ct, err := r.db.Exec(ctx, query, tenantID, holdIDs)
	if err != nil {
		return 0, fmt.Errorf("scheduling: expire holds: %w", err)
	}
	return ct.RowsAffected(), nil
}
