package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
)

type memHoldRepo struct {
	holds map[uuid.UUID]*scheduling.Hold
}

func newMemHoldRepo() *memHoldRepo {
	return &memHoldRepo{holds: make(map[uuid.UUID]*scheduling.Hold)}
}

func (r *memHoldRepo) add(tenantID uuid.UUID, status scheduling.HoldStatus, ttl time.Time) *scheduling.Hold {
	hold := &scheduling.Hold{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Status:       status,
		TTLExpiresAt: ttl,
		Version:      1,
	}
	r.holds[hold.ID] = hold
	return hold
}

func (r *memHoldRepo) Create(_ context.Context, hold *scheduling.Hold) error {
	r.holds[hold.ID] = hold
	return nil
}

func (r *memHoldRepo) FindByID(_ context.Context, tenantID, holdID uuid.UUID) (*scheduling.Hold, error) {
	hold, ok := r.holds[holdID]
	if !ok || hold.TenantID != tenantID {
		return nil, scheduling.NewError(scheduling.KindNotFound, "hold_not_found", "hold not found")
	}
	return hold, nil
}

func (r *memHoldRepo) FindActiveOverlap(context.Context, uuid.UUID, uuid.UUID, scheduling.TimeRange) ([]*scheduling.Hold, error) {
	return nil, nil
}

func (r *memHoldRepo) ListExpiringBefore(_ context.Context, tenantID uuid.UUID, cutoff time.Time, limit int32) ([]*scheduling.Hold, error) {
	var out []*scheduling.Hold
	for _, hold := range r.holds {
		if hold.TenantID != tenantID || hold.Status != scheduling.HoldActive || hold.TTLExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, hold)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memHoldRepo) UpdateStatus(_ context.Context, _, _ uuid.UUID, _ scheduling.HoldStatusUpdate) (*scheduling.Hold, error) {
	return nil, nil
}

func (r *memHoldRepo) ExpireBatch(_ context.Context, tenantID uuid.UUID, holdIDs []uuid.UUID) (int64, error) {
	var n int64
	for _, id := range holdIDs {
		hold, ok := r.holds[id]
		if ok && hold.TenantID == tenantID && hold.Status == scheduling.HoldActive {
			hold.Status = scheduling.HoldExpired
			hold.Version++
			n++
		}
	}
	return n, nil
}

func (r *memHoldRepo) ReassignForCoverage(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, uuid.UUID, scheduling.TimeRange) (int64, error) {
	return 0, nil
}

func (r *memHoldRepo) ReleaseCoverageAssignments(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, nil
}

type memTenantSource struct {
	repo *memHoldRepo
}

func (s *memTenantSource) TenantsWithExpiringHolds(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var tenants []uuid.UUID
	for _, hold := range s.repo.holds {
		if hold.Status != scheduling.HoldActive || hold.TTLExpiresAt.After(cutoff) {
			continue
		}
		if !seen[hold.TenantID] {
			seen[hold.TenantID] = true
			tenants = append(tenants, hold.TenantID)
		}
	}
	return tenants, nil
}

func TestSweepExpiresOverdueHolds(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newMemHoldRepo()
	tenantA := uuid.New()
	tenantB := uuid.New()

	overdueA := repo.add(tenantA, scheduling.HoldActive, now.Add(-time.Minute))
	overdueB := repo.add(tenantB, scheduling.HoldActive, now.Add(-time.Hour))
	fresh := repo.add(tenantA, scheduling.HoldActive, now.Add(time.Hour))
	confirmed := repo.add(tenantA, scheduling.HoldConfirmed, now.Add(-time.Hour))

	sw := New(repo, &memTenantSource{repo: repo}, nil, nil).
		WithClock(func() time.Time { return now })

	total, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	assert.Equal(t, scheduling.HoldExpired, repo.holds[overdueA.ID].Status)
	assert.Equal(t, scheduling.HoldExpired, repo.holds[overdueB.ID].Status)
	assert.Equal(t, scheduling.HoldActive, repo.holds[fresh.ID].Status)
	assert.Equal(t, scheduling.HoldConfirmed, repo.holds[confirmed.ID].Status)
}

func TestSweepDrainsInBatches(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newMemHoldRepo()
	tenantID := uuid.New()
	for i := 0; i < 7; i++ {
		repo.add(tenantID, scheduling.HoldActive, now.Add(-time.Minute))
	}

	sw := New(repo, &memTenantSource{repo: repo}, nil, nil).
		WithBatchSize(3).
		WithClock(func() time.Time { return now })

	total, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)

	for _, hold := range repo.holds {
		assert.Equal(t, scheduling.HoldExpired, hold.Status)
	}
}

func TestSweepNothingToDo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newMemHoldRepo()
	repo.add(uuid.New(), scheduling.HoldActive, now.Add(time.Hour))

	sw := New(repo, &memTenantSource{repo: repo}, nil, nil).
		WithClock(func() time.Time { return now })

	total, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}
