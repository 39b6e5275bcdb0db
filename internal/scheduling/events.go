package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event names as they appear on the bus. Downstream consumers (billing,
// notifications, metrics) subscribe by these types.
const (
	EventHoldCreated          = "scheduling.hold_created.v1"
	EventBookingCreated       = "scheduling.booking_created.v1"
	EventBookingConfirmed     = "scheduling.booking_confirmed.v1"
	EventBookingRescheduled   = "scheduling.booking_rescheduled.v1"
	EventBookingCancelled     = "scheduling.booking_cancelled.v1"
	EventBookingNoShow        = "scheduling.booking_no_show.v1"
	EventPaymentStatusChanged = "scheduling.payment_status_changed.v1"
	EventCoverageApplied      = "scheduling.coverage_applied.v1"
	EventCoverageReleased     = "scheduling.coverage_released.v1"
)

// Publisher delivers domain events. Publication is fire-and-forget from
// the core's perspective: a publish failure never rolls back the state
// change that preceded it.
type Publisher interface {
	Publish(ctx context.Context, tenantID uuid.UUID, eventType string, payload any) error
}

// NopPublisher discards events. Useful in tests and tooling.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uuid.UUID, string, any) error { return nil }

type HoldCreatedV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	HoldID         string    `json:"hold_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingCreatedV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	HoldID         string    `json:"hold_id,omitempty"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	Source         string    `json:"source"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingConfirmedV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	PaymentStatus  string    `json:"payment_status"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
	StartAt        time.Time `json:"start_at"`
}

type BookingRescheduledV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	PreviousStart  time.Time `json:"previous_start"`
	PreviousEnd    time.Time `json:"previous_end"`
	NewStart       time.Time `json:"new_start"`
	NewEnd         time.Time `json:"new_end"`
	Reason         string    `json:"reason,omitempty"`
	RescheduledAt  time.Time `json:"rescheduled_at"`
}

type BookingCancelledV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	Reason         string    `json:"reason,omitempty"`
	CancelledAt    time.Time `json:"cancelled_at"`
	StartAt        time.Time `json:"start_at"`
}

type BookingNoShowV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	MarkedAt       time.Time `json:"marked_at"`
	StartAt        time.Time `json:"start_at"`
}

type PaymentStatusChangedV1 struct {
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	ClinicID       string    `json:"clinic_id"`
	BookingID      string    `json:"booking_id"`
	PatientID      string    `json:"patient_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
}

type CoverageAppliedV1 struct {
	EventID         string    `json:"event_id"`
	TenantID        string    `json:"tenant_id"`
	CoverageID      string    `json:"coverage_id"`
	ProfessionalID  string    `json:"professional_id"`
	CoveringID      string    `json:"covering_id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	HoldsReassigned int64     `json:"holds_reassigned"`
	BookingsMoved   int64     `json:"bookings_moved"`
	AppliedAt       time.Time `json:"applied_at"`
}

type CoverageReleasedV1 struct {
	EventID          string    `json:"event_id"`
	TenantID         string    `json:"tenant_id"`
	CoverageID       string    `json:"coverage_id"`
	HoldsRestored    int64     `json:"holds_restored"`
	BookingsRestored int64     `json:"bookings_restored"`
	ReleasedAt       time.Time `json:"released_at"`
}
