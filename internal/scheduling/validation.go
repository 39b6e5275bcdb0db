package scheduling

import "time"

// Validation functions are pure: they take an explicit now, never read the
// wall clock, and report failures as kind-tagged errors (nil means the
// transition is legal). Use-cases translate these directly to callers.

// ValidateAdvanceWindow checks the booking lead time against the clinic
// availability policy. Applied at hold creation and again at confirmation.
func ValidateAdvanceWindow(startAt, now time.Time, policy AvailabilityPolicy) error {
	lead := startAt.Sub(now)
	if lead < policy.MinAdvance() {
		return NewError(KindTemporalWindowViolation, ReasonTooCloseToStart,
			"start %s is less than %dm ahead", startAt.Format(time.RFC3339), policy.MinAdvanceMinutes)
	}
	if lead > policy.MaxAdvance() {
		return NewError(KindTemporalWindowViolation, ReasonTooFarInFuture,
			"start %s is more than %dd ahead", startAt.Format(time.RFC3339), policy.MaxAdvanceDays)
	}
	return nil
}

// ValidateHoldForConfirmation guards the hold side of a booking
// confirmation. The TTL check applies even to a hold still marked active:
// expiry is passive, the sweeper may simply not have run yet.
func ValidateHoldForConfirmation(hold *Hold, now time.Time) error {
	if hold == nil {
		return errHoldNotFound()
	}
	if hold.Status != HoldActive {
		return NewError(KindInvalidState, ReasonHoldInvalidState,
			"hold %s is %s, expected active", hold.ID, hold.Status)
	}
	if hold.ExpiredAt(now) {
		return NewError(KindExpired, ReasonHoldExpired,
			"hold %s expired at %s", hold.ID, hold.TTLExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// ValidateHoldForBookingCreation guards promoting a hold into a booking.
// Same conditions as confirmation: the hold must be active and unexpired.
func ValidateHoldForBookingCreation(hold *Hold, now time.Time) error {
	return ValidateHoldForConfirmation(hold, now)
}

// ValidatePaymentForConfirmation requires an approved payment and a
// booking still in scheduled state.
func ValidatePaymentForConfirmation(booking *Booking, paymentStatus PaymentStatus) error {
	if booking == nil {
		return errBookingNotFound()
	}
	if booking.Status != BookingScheduled {
		return NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, expected scheduled", booking.ID, booking.Status)
	}
	if paymentStatus != PaymentApproved {
		return NewError(KindPaymentNotApproved, "",
			"payment status %s cannot confirm booking %s", paymentStatus, booking.ID)
	}
	return nil
}

// ValidatePaymentForCompletion requires an in-progress booking whose
// payment has been approved or settled.
func ValidatePaymentForCompletion(booking *Booking) error {
	if booking == nil {
		return errBookingNotFound()
	}
	if booking.Status != BookingInProgress {
		return NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, expected in_progress", booking.ID, booking.Status)
	}
	if booking.PaymentStatus != PaymentApproved && booking.PaymentStatus != PaymentSettled {
		return NewError(KindPaymentNotApproved, "",
			"payment status %s cannot complete booking %s", booking.PaymentStatus, booking.ID)
	}
	return nil
}

// ComputeHoldExpiry derives the TTL of a new hold: the hold may live until
// the minimum-advance cutoff before the slot starts. A candidate already in
// the past clamps to now so a hold is never created expired, but also never
// promises more buffer than the policy allows.
func ComputeHoldExpiry(startAt time.Time, policy AvailabilityPolicy, now time.Time) time.Time {
	candidate := startAt.Add(-policy.MinAdvance())
	if !candidate.After(now) {
		return now
	}
	return candidate
}

// ValidateRescheduleLimits checks both quota counters before a reschedule
// is committed. Either counter at its cap rejects the move.
func ValidateRescheduleLimits(limits RecurrenceLimits, usage RescheduleUsage) error {
	if usage.OccurrenceCount >= limits.MaxReschedulesPerOccurrence {
		return NewError(KindRecurrenceLimitReached, "occurrence_limit",
			"occurrence has used %d of %d reschedules", usage.OccurrenceCount, limits.MaxReschedulesPerOccurrence)
	}
	if usage.SeriesTotal >= limits.MaxReschedulesPerSeries {
		return NewError(KindRecurrenceLimitReached, "series_limit",
			"series has used %d of %d reschedules", usage.SeriesTotal, limits.MaxReschedulesPerSeries)
	}
	return nil
}

// ValidateNoShowMarking allows a no-show only on a confirmed booking and
// only after the late tolerance has elapsed.
func ValidateNoShowMarking(booking *Booking, now time.Time) error {
	if booking == nil {
		return errBookingNotFound()
	}
	if booking.Status != BookingConfirmed {
		return NewError(KindInvalidState, ReasonBookingInvalidState,
			"booking %s is %s, expected confirmed", booking.ID, booking.Status)
	}
	earliest := booking.StartAt.Add(booking.LateTolerance())
	if now.Before(earliest) {
		return NewError(KindTemporalWindowViolation, ReasonTooEarlyForNoShow,
			"no-show for booking %s allowed from %s", booking.ID, earliest.Format(time.RFC3339))
	}
	return nil
}
