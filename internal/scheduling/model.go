// Package scheduling implements the appointment scheduling core: slot
// holds, their promotion into bookings, and the booking lifecycle under
// multi-tenant concurrent access with optimistic concurrency control.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// HoldStatus is the lifecycle state of a slot hold. A hold starts active
// and moves to exactly one terminal state; terminal states never re-open.
type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldExpired   HoldStatus = "expired"
	HoldConfirmed HoldStatus = "confirmed"
	HoldCancelled HoldStatus = "cancelled"
)

// Terminal reports whether the status cannot transition further.
func (s HoldStatus) Terminal() bool {
	return s != HoldActive
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingScheduled  BookingStatus = "scheduled"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

// Terminal reports whether the booking can no longer transition.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// PaymentStatus tracks the payment side of a booking independently of its
// scheduling status.
type PaymentStatus string

const (
	PaymentNotApplied PaymentStatus = "not_applied"
	PaymentPending    PaymentStatus = "pending"
	PaymentApproved   PaymentStatus = "approved"
	PaymentSettled    PaymentStatus = "settled"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentDisputed   PaymentStatus = "disputed"
)

// BookingSource records which surface created the booking.
type BookingSource string

const (
	SourceMarketplace BookingSource = "marketplace"
	SourcePortal      BookingSource = "portal"
	SourceAPI         BookingSource = "api"
)

// AvailabilityPolicy carries the temporal-window rules for a clinic.
type AvailabilityPolicy struct {
	MinAdvanceMinutes int `json:"min_advance_minutes"`
	MaxAdvanceDays    int `json:"max_advance_days"`
}

// MinAdvance returns the minimum lead time as a duration.
func (p AvailabilityPolicy) MinAdvance() time.Duration {
	return time.Duration(p.MinAdvanceMinutes) * time.Minute
}

// MaxAdvance returns the maximum lead time as a duration.
func (p AvailabilityPolicy) MaxAdvance() time.Duration {
	return time.Duration(p.MaxAdvanceDays) * 24 * time.Hour
}

// PricingSplit is the structured money breakdown attached to a booking.
// Amounts are integer cents.
type PricingSplit struct {
	TotalCents        int64  `json:"total_cents"`
	ProfessionalCents int64  `json:"professional_cents"`
	ClinicCents       int64  `json:"clinic_cents"`
	PlatformCents     int64  `json:"platform_cents"`
	Currency          string `json:"currency"`
}

// Hold is a tentative, time-boxed reservation of a professional's slot.
// It precedes a booking and expires passively once TTLExpiresAt passes.
type Hold struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ClinicID               uuid.UUID
	ProfessionalID         uuid.UUID
	OriginalProfessionalID *uuid.UUID
	CoverageID             *uuid.UUID
	PatientID              uuid.UUID
	ServiceTypeID          *uuid.UUID
	StartAt                time.Time
	EndAt                  time.Time
	TTLExpiresAt           time.Time
	Status                 HoldStatus
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ExpiredAt reports whether the hold TTL has passed at the given instant.
func (h *Hold) ExpiredAt(now time.Time) bool {
	return !h.TTLExpiresAt.After(now)
}

// Booking is a confirmed appointment derived from exactly one hold.
type Booking struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	ClinicID               uuid.UUID
	ProfessionalID         uuid.UUID
	OriginalProfessionalID *uuid.UUID
	CoverageID             *uuid.UUID
	PatientID              uuid.UUID
	ServiceTypeID          *uuid.UUID
	Source                 BookingSource
	Status                 BookingStatus
	PaymentStatus          PaymentStatus
	HoldID                 *uuid.UUID
	HoldExpiresAt          *time.Time
	StartAt                time.Time
	EndAt                  time.Time
	Timezone               string
	LateToleranceMinutes   int
	RecurrenceSeriesID     *uuid.UUID
	CancellationReason     *string
	Pricing                *PricingSplit
	PreconditionsPassed    bool
	AnamnesisRequired      bool
	AnamnesisOverride      *string
	NoShowMarkedAt         *time.Time
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// LateTolerance returns the no-show tolerance as a duration.
func (b *Booking) LateTolerance() time.Duration {
	return time.Duration(b.LateToleranceMinutes) * time.Minute
}

// RecurrenceFrequency enumerates supported series cadences.
type RecurrenceFrequency string

const (
	FrequencyWeekly   RecurrenceFrequency = "weekly"
	FrequencyBiweekly RecurrenceFrequency = "biweekly"
	FrequencyMonthly  RecurrenceFrequency = "monthly"
)

// RecurrenceLimits caps how often occurrences in a series may be moved.
type RecurrenceLimits struct {
	MaxReschedulesPerOccurrence int `json:"max_reschedules_per_occurrence"`
	MaxReschedulesPerSeries     int `json:"max_reschedules_per_series"`
}

// RecurrenceSeries is a recurring-appointment definition owned by a
// tenant+professional pair.
type RecurrenceSeries struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ClinicID       uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	Frequency      RecurrenceFrequency
	Limits         RecurrenceLimits
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecurrenceOccurrence is one materialized booking within a series. The
// sum of all occurrence counters is the series' consumed quota.
type RecurrenceOccurrence struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	SeriesID         uuid.UUID
	BookingID        uuid.UUID
	OccursAt         time.Time
	ReschedulesCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RescheduleUsage aggregates consumed reschedule quota for a series.
type RescheduleUsage struct {
	OccurrenceCount int
	SeriesTotal     int
}
