package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory fakes mirroring the conditional-write semantics of the
// Postgres repositories.

type fakeHoldRepo struct {
	mu    sync.Mutex
	holds map[uuid.UUID]*Hold

	failUpdate error
}

func newFakeHoldRepo() *fakeHoldRepo {
	return &fakeHoldRepo{holds: make(map[uuid.UUID]*Hold)}
}

func (r *fakeHoldRepo) Create(_ context.Context, hold *Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *hold
	r.holds[hold.ID] = &cloned
	return nil
}

func (r *fakeHoldRepo) FindByID(_ context.Context, tenantID, holdID uuid.UUID) (*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[holdID]
	if !ok || hold.TenantID != tenantID {
		return nil, errHoldNotFound()
	}
	cloned := *hold
	return &cloned, nil
}

func (r *fakeHoldRepo) FindActiveOverlap(_ context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Hold
	for _, hold := range r.holds {
		if hold.TenantID != tenantID || hold.ProfessionalID != professionalID || hold.Status != HoldActive {
			continue
		}
		if (TimeRange{Start: hold.StartAt, End: hold.EndAt}).Overlaps(window) {
			cloned := *hold
			out = append(out, &cloned)
		}
	}
	return out, nil
}

func (r *fakeHoldRepo) ListExpiringBefore(_ context.Context, tenantID uuid.UUID, cutoff time.Time, limit int32) ([]*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Hold
	for _, hold := range r.holds {
		if hold.TenantID != tenantID || hold.Status != HoldActive || hold.TTLExpiresAt.After(cutoff) {
			continue
		}
		cloned := *hold
		out = append(out, &cloned)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeHoldRepo) UpdateStatus(_ context.Context, tenantID, holdID uuid.UUID, update HoldStatusUpdate) (*Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return nil, r.failUpdate
	}
	hold, ok := r.holds[holdID]
	if !ok || hold.TenantID != tenantID || hold.Version != update.ExpectedVersion {
		return nil, errConcurrencyConflict("hold")
	}
	hold.Status = update.Status
	hold.Version++
	cloned := *hold
	return &cloned, nil
}

func (r *fakeHoldRepo) ExpireBatch(_ context.Context, tenantID uuid.UUID, holdIDs []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range holdIDs {
		hold, ok := r.holds[id]
		if ok && hold.TenantID == tenantID && hold.Status == HoldActive {
			hold.Status = HoldExpired
			hold.Version++
			n++
		}
	}
	return n, nil
}

func (r *fakeHoldRepo) ReassignForCoverage(_ context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, hold := range r.holds {
		if hold.TenantID != tenantID || hold.ProfessionalID != professionalID || hold.Status != HoldActive {
			continue
		}
		if hold.CoverageID != nil {
			continue
		}
		if !(TimeRange{Start: hold.StartAt, End: hold.EndAt}).Overlaps(window) {
			continue
		}
		original := hold.ProfessionalID
		if hold.OriginalProfessionalID == nil {
			hold.OriginalProfessionalID = &original
		}
		hold.ProfessionalID = coveringID
		cov := coverageID
		hold.CoverageID = &cov
		hold.Version++
		n++
	}
	return n, nil
}

func (r *fakeHoldRepo) ReleaseCoverageAssignments(_ context.Context, tenantID, coverageID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, hold := range r.holds {
		if hold.TenantID != tenantID || hold.CoverageID == nil || *hold.CoverageID != coverageID {
			continue
		}
		if hold.OriginalProfessionalID != nil {
			hold.ProfessionalID = *hold.OriginalProfessionalID
		}
		hold.OriginalProfessionalID = nil
		hold.CoverageID = nil
		hold.Version++
		n++
	}
	return n, nil
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, booking *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *booking
	r.bookings[booking.ID] = &cloned
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, tenantID, bookingID uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[bookingID]
	if !ok || booking.TenantID != tenantID {
		return nil, errBookingNotFound()
	}
	cloned := *booking
	return &cloned, nil
}

func (r *fakeBookingRepo) FindByHold(_ context.Context, tenantID, holdID uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, booking := range r.bookings {
		if booking.TenantID == tenantID && booking.HoldID != nil && *booking.HoldID == holdID {
			cloned := *booking
			return &cloned, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) ListByProfessionalAndRange(_ context.Context, tenantID, professionalID uuid.UUID, window TimeRange) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.ProfessionalID != professionalID || booking.Status.Terminal() {
			continue
		}
		if (TimeRange{Start: booking.StartAt, End: booking.EndAt}).Overlaps(window) {
			cloned := *booking
			out = append(out, &cloned)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ListByClinicAndRange(_ context.Context, tenantID, clinicID uuid.UUID, window TimeRange) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.ClinicID != clinicID || booking.Status.Terminal() {
			continue
		}
		if (TimeRange{Start: booking.StartAt, End: booking.EndAt}).Overlaps(window) {
			cloned := *booking
			out = append(out, &cloned)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) locked(tenantID, bookingID uuid.UUID, expectedVersion int64) (*Booking, error) {
	booking, ok := r.bookings[bookingID]
	if !ok || booking.TenantID != tenantID || booking.Version != expectedVersion {
		return nil, errConcurrencyConflict("booking")
	}
	return booking, nil
}

func (r *fakeBookingRepo) UpdateStatus(_ context.Context, tenantID, bookingID uuid.UUID, update BookingStatusUpdate) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, err := r.locked(tenantID, bookingID, update.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	booking.Status = update.Status
	if update.PaymentStatus != nil {
		booking.PaymentStatus = *update.PaymentStatus
	}
	if update.CancellationReason != nil {
		booking.CancellationReason = update.CancellationReason
	}
	booking.Version++
	cloned := *booking
	return &cloned, nil
}

func (r *fakeBookingRepo) Reschedule(_ context.Context, tenantID, bookingID uuid.UUID, move BookingReschedule) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, err := r.locked(tenantID, bookingID, move.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	booking.StartAt = move.StartAt
	booking.EndAt = move.EndAt
	booking.Version++
	cloned := *booking
	return &cloned, nil
}

func (r *fakeBookingRepo) RecordPaymentStatus(_ context.Context, tenantID, bookingID uuid.UUID, status PaymentStatus, expectedVersion int64) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, err := r.locked(tenantID, bookingID, expectedVersion)
	if err != nil {
		return nil, err
	}
	booking.PaymentStatus = status
	booking.Version++
	cloned := *booking
	return &cloned, nil
}

func (r *fakeBookingRepo) MarkNoShow(_ context.Context, tenantID, bookingID uuid.UUID, markedAt time.Time, expectedVersion int64) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, err := r.locked(tenantID, bookingID, expectedVersion)
	if err != nil {
		return nil, err
	}
	booking.Status = BookingNoShow
	booking.NoShowMarkedAt = &markedAt
	booking.Version++
	cloned := *booking
	return &cloned, nil
}

func (r *fakeBookingRepo) ReassignForCoverage(_ context.Context, tenantID, professionalID, coverageID, coveringID uuid.UUID, window TimeRange) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.ProfessionalID != professionalID || booking.Status.Terminal() {
			continue
		}
		if booking.CoverageID != nil {
			continue
		}
		if !(TimeRange{Start: booking.StartAt, End: booking.EndAt}).Overlaps(window) {
			continue
		}
		original := booking.ProfessionalID
		if booking.OriginalProfessionalID == nil {
			booking.OriginalProfessionalID = &original
		}
		booking.ProfessionalID = coveringID
		cov := coverageID
		booking.CoverageID = &cov
		booking.Version++
		n++
	}
	return n, nil
}

func (r *fakeBookingRepo) ReleaseCoverageAssignments(_ context.Context, tenantID, coverageID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, booking := range r.bookings {
		if booking.TenantID != tenantID || booking.CoverageID == nil || *booking.CoverageID != coverageID {
			continue
		}
		if booking.OriginalProfessionalID != nil {
			booking.ProfessionalID = *booking.OriginalProfessionalID
		}
		booking.OriginalProfessionalID = nil
		booking.CoverageID = nil
		booking.Version++
		n++
	}
	return n, nil
}

type fakeRecurrenceRepo struct {
	mu          sync.Mutex
	series      map[uuid.UUID]*RecurrenceSeries
	occurrences map[uuid.UUID]*RecurrenceOccurrence

	failIncrement error
}

func newFakeRecurrenceRepo() *fakeRecurrenceRepo {
	return &fakeRecurrenceRepo{
		series:      make(map[uuid.UUID]*RecurrenceSeries),
		occurrences: make(map[uuid.UUID]*RecurrenceOccurrence),
	}
}

func (r *fakeRecurrenceRepo) CreateSeries(_ context.Context, series *RecurrenceSeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *series
	r.series[series.ID] = &cloned
	return nil
}

func (r *fakeRecurrenceRepo) UpdateSeriesLimits(_ context.Context, tenantID, seriesID uuid.UUID, limits RecurrenceLimits) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.series[seriesID]
	if !ok || series.TenantID != tenantID {
		return NewError(KindNotFound, "series_not_found", "recurrence series %s not found", seriesID)
	}
	series.Limits = limits
	return nil
}

func (r *fakeRecurrenceRepo) FindSeriesByID(_ context.Context, tenantID, seriesID uuid.UUID) (*RecurrenceSeries, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.series[seriesID]
	if !ok || series.TenantID != tenantID {
		return nil, NewError(KindNotFound, "series_not_found", "recurrence series %s not found", seriesID)
	}
	cloned := *series
	return &cloned, nil
}

func (r *fakeRecurrenceRepo) CreateOccurrence(_ context.Context, occurrence *RecurrenceOccurrence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *occurrence
	r.occurrences[occurrence.ID] = &cloned
	return nil
}

func (r *fakeRecurrenceRepo) FindOccurrenceByBooking(_ context.Context, tenantID, bookingID uuid.UUID) (*RecurrenceOccurrence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, occ := range r.occurrences {
		if occ.TenantID == tenantID && occ.BookingID == bookingID {
			cloned := *occ
			return &cloned, nil
		}
	}
	return nil, NewError(KindNotFound, "occurrence_not_found", "no occurrence for booking %s", bookingID)
}

func (r *fakeRecurrenceRepo) RecordOccurrenceReschedule(_ context.Context, tenantID, occurrenceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIncrement != nil {
		return r.failIncrement
	}
	occ, ok := r.occurrences[occurrenceID]
	if !ok || occ.TenantID != tenantID {
		return NewError(KindNotFound, "occurrence_not_found", "occurrence %s not found", occurrenceID)
	}
	occ.ReschedulesCount++
	return nil
}

func (r *fakeRecurrenceRepo) GetRescheduleUsage(_ context.Context, tenantID, seriesID, occurrenceID uuid.UUID) (RescheduleUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var usage RescheduleUsage
	for _, occ := range r.occurrences {
		if occ.TenantID != tenantID || occ.SeriesID != seriesID {
			continue
		}
		usage.SeriesTotal += occ.ReschedulesCount
		if occ.ID == occurrenceID {
			usage.OccurrenceCount = occ.ReschedulesCount
		}
	}
	return usage, nil
}

type fixedPolicyResolver struct {
	policy AvailabilityPolicy
}

func (r fixedPolicyResolver) PolicyFor(context.Context, uuid.UUID, uuid.UUID) (AvailabilityPolicy, error) {
	return r.policy, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, _ uuid.UUID, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, eventType)
	return nil
}

func (p *capturePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
