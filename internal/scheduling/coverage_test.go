package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCoverage(t *testing.T) {
	t.Run("reassigns overlapping holds and bookings", func(t *testing.T) {
		f := newServiceFixture(t)
		professionalID := uuid.New()
		coveringID := uuid.New()
		coverageID := uuid.New()

		hold := f.createHold(t, professionalID)
		booking := &Booking{
			ID:             uuid.New(),
			TenantID:       f.tenantID,
			ProfessionalID: professionalID,
			Status:         BookingConfirmed,
			StartAt:        testNow.Add(30 * time.Hour),
			EndAt:          testNow.Add(31 * time.Hour),
			Version:        1,
		}
		require.NoError(t, f.bookings.Create(context.Background(), booking))

		holdsMoved, bookingsMoved, err := f.svc.ApplyCoverage(context.Background(), ApplyCoverageInput{
			TenantID:       f.tenantID,
			CoverageID:     coverageID,
			ProfessionalID: professionalID,
			CoveringID:     coveringID,
			WindowStart:    testNow.Add(20 * time.Hour),
			WindowEnd:      testNow.Add(40 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), holdsMoved)
		assert.Equal(t, int64(1), bookingsMoved)

		movedHold, err := f.holds.FindByID(context.Background(), f.tenantID, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, coveringID, movedHold.ProfessionalID)
		require.NotNil(t, movedHold.OriginalProfessionalID)
		assert.Equal(t, professionalID, *movedHold.OriginalProfessionalID)

		movedBooking, err := f.bookings.FindByID(context.Background(), f.tenantID, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, coveringID, movedBooking.ProfessionalID)
		assert.Contains(t, f.publisher.published(), EventCoverageApplied)
	})

	t.Run("reapplying the same coverage touches nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		professionalID := uuid.New()
		f.createHold(t, professionalID)
		in := ApplyCoverageInput{
			TenantID:       f.tenantID,
			CoverageID:     uuid.New(),
			ProfessionalID: professionalID,
			CoveringID:     uuid.New(),
			WindowStart:    testNow.Add(20 * time.Hour),
			WindowEnd:      testNow.Add(40 * time.Hour),
		}

		holdsMoved, _, err := f.svc.ApplyCoverage(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, int64(1), holdsMoved)

		holdsMoved, bookingsMoved, err := f.svc.ApplyCoverage(context.Background(), in)
		require.NoError(t, err)
		assert.Zero(t, holdsMoved)
		assert.Zero(t, bookingsMoved)
	})

	t.Run("records outside the window are untouched", func(t *testing.T) {
		f := newServiceFixture(t)
		professionalID := uuid.New()
		hold := f.createHold(t, professionalID) // 24h..25h from now

		holdsMoved, _, err := f.svc.ApplyCoverage(context.Background(), ApplyCoverageInput{
			TenantID:       f.tenantID,
			CoverageID:     uuid.New(),
			ProfessionalID: professionalID,
			CoveringID:     uuid.New(),
			WindowStart:    testNow.Add(48 * time.Hour),
			WindowEnd:      testNow.Add(72 * time.Hour),
		})
		require.NoError(t, err)
		assert.Zero(t, holdsMoved)

		unchanged, err := f.holds.FindByID(context.Background(), f.tenantID, hold.ID)
		require.NoError(t, err)
		assert.Equal(t, professionalID, unchanged.ProfessionalID)
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		f := newServiceFixture(t)
		_, _, err := f.svc.ApplyCoverage(context.Background(), ApplyCoverageInput{
			TenantID:       f.tenantID,
			CoverageID:     uuid.New(),
			ProfessionalID: uuid.New(),
			CoveringID:     uuid.New(),
			WindowStart:    testNow.Add(40 * time.Hour),
			WindowEnd:      testNow.Add(20 * time.Hour),
		})
		assert.Equal(t, KindTemporalWindowViolation, KindOf(err))
	})
}

func TestReleaseCoverage(t *testing.T) {
	f := newServiceFixture(t)
	professionalID := uuid.New()
	coverageID := uuid.New()
	hold := f.createHold(t, professionalID)

	_, _, err := f.svc.ApplyCoverage(context.Background(), ApplyCoverageInput{
		TenantID:       f.tenantID,
		CoverageID:     coverageID,
		ProfessionalID: professionalID,
		CoveringID:     uuid.New(),
		WindowStart:    testNow.Add(20 * time.Hour),
		WindowEnd:      testNow.Add(40 * time.Hour),
	})
	require.NoError(t, err)

	holdsRestored, bookingsRestored, err := f.svc.ReleaseCoverage(context.Background(), f.tenantID, coverageID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), holdsRestored)
	assert.Zero(t, bookingsRestored)

	restored, err := f.holds.FindByID(context.Background(), f.tenantID, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, professionalID, restored.ProfessionalID)
	assert.Nil(t, restored.OriginalProfessionalID)
	assert.Nil(t, restored.CoverageID)
	assert.Contains(t, f.publisher.published(), EventCoverageReleased)

	// Releasing again finds nothing tied to the coverage.
	holdsRestored, _, err = f.svc.ReleaseCoverage(context.Background(), f.tenantID, coverageID)
	require.NoError(t, err)
	assert.Zero(t, holdsRestored)
}
