// Package sweeper runs the background job that expires overdue holds.
// Holds expire passively by TTL comparison; this job is what flips their
// persisted status so overlap queries stop counting them.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakwellhealth/scheduling-platform/internal/observability/metrics"
	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

// TenantSource enumerates tenants that currently have overdue holds.
type TenantSource interface {
	TenantsWithExpiringHolds(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// PGTenantSource reads the tenant set straight from the holds table.
type PGTenantSource struct {
	pool *pgxpool.Pool
}

func NewPGTenantSource(pool *pgxpool.Pool) *PGTenantSource {
	if pool == nil {
		panic("sweeper: pgx pool required")
	}
	return &PGTenantSource{pool: pool}
}

func (s *PGTenantSource) TenantsWithExpiringHolds(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT tenant_id
		FROM holds
		WHERE status = 'active' AND ttl_expires_at <= $1
	`
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sweeper: query tenants: %w", err)
	}
	defer rows.Close()

	tenants, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("sweeper: scan tenants: %w", err)
	}
	return tenants, nil
}

// Sweeper periodically expires overdue holds across all tenants.
type Sweeper struct {
	holds     scheduling.HoldRepository
	tenants   TenantSource
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
	batchSize int32
	interval  time.Duration
	now       func() time.Time
}

func New(holds scheduling.HoldRepository, tenants TenantSource, logger *logging.Logger, m *metrics.SchedulingMetrics) *Sweeper {
	if holds == nil {
		panic("sweeper: hold repository required")
	}
	if tenants == nil {
		panic("sweeper: tenant source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		holds:     holds,
		tenants:   tenants,
		logger:    logger,
		metrics:   m,
		batchSize: 100,
		interval:  30 * time.Second,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sweeper) WithBatchSize(size int32) *Sweeper {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	if now != nil {
		s.now = now
	}
	return s
}

// Start runs sweep passes until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("hold sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires overdue holds once and returns how many were flipped.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	started := s.now()
	cutoff := started

	tenants, err := s.tenants.TenantsWithExpiringHolds(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, tenantID := range tenants {
		expired, err := s.sweepTenant(ctx, tenantID, cutoff)
		if err != nil {
			s.logger.Error("tenant sweep failed", "error", err, "tenant_id", tenantID)
			continue
		}
		total += expired
	}

	s.metrics.ObserveSweep(time.Since(started).Seconds(), int(total))
	if total > 0 {
		s.logger.Info("expired overdue holds", "count", total, "tenants", len(tenants))
	}
	return total, nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) (int64, error) {
	var total int64
	for {
		holds, err := s.holds.ListExpiringBefore(ctx, tenantID, cutoff, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(holds) == 0 {
			return total, nil
		}

		ids := make([]uuid.UUID, 0, len(holds))
		for _, hold := range holds {
			ids = append(ids, hold.ID)
		}
		expired, err := s.holds.ExpireBatch(ctx, tenantID, ids)
		if err != nil {
			return total, err
		}
		total += expired

		// A batch that expired nothing means every listed hold raced into
		// a terminal state; stop rather than spin on the same rows.
		if expired == 0 || len(holds) < int(s.batchSize) {
			return total, nil
		}
	}
}
