// Package handlers exposes the scheduling core over HTTP. The handlers
// are thin adapters: decode, call the service, map error kinds to status
// codes. All business rules live in the scheduling package.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
	"github.com/oakwellhealth/scheduling-platform/internal/tenancy"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

// SchedulingHandler serves the hold/booking lifecycle endpoints.
type SchedulingHandler struct {
	service *scheduling.Service
	logger  *logging.Logger
}

func NewSchedulingHandler(service *scheduling.Service, logger *logging.Logger) *SchedulingHandler {
	if service == nil {
		panic("handlers: scheduling service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingHandler{service: service, logger: logger}
}

// statusForKind maps scheduling error kinds onto HTTP status codes.
func statusForKind(kind scheduling.Kind) int {
	switch kind {
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindInvalidState, scheduling.KindConcurrencyConflict:
		return http.StatusConflict
	case scheduling.KindExpired:
		return http.StatusGone
	case scheduling.KindTemporalWindowViolation, scheduling.KindRecurrenceLimitReached:
		return http.StatusBadRequest
	case scheduling.KindPaymentNotApproved, scheduling.KindPermissionDenied:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (h *SchedulingHandler) writeError(w http.ResponseWriter, err error) {
	var se *scheduling.Error
	if errors.As(err, &se) {
		writeJSON(w, statusForKind(se.Kind), errorResponse{
			Error:  se.Error(),
			Kind:   string(se.Kind),
			Reason: se.Reason,
		})
		return
	}
	h.logger.Error("scheduling handler error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func tenantFrom(r *http.Request) (uuid.UUID, bool) {
	return tenancy.TenantIDFromContext(r.Context())
}

type holdResponse struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	PatientID      string    `json:"patient_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TTLExpiresAt   time.Time `json:"ttl_expires_at"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
}

func toHoldResponse(h *scheduling.Hold) holdResponse {
	return holdResponse{
		ID:             h.ID.String(),
		ProfessionalID: h.ProfessionalID.String(),
		PatientID:      h.PatientID.String(),
		StartAt:        h.StartAt,
		EndAt:          h.EndAt,
		TTLExpiresAt:   h.TTLExpiresAt,
		Status:         string(h.Status),
		Version:        h.Version,
	}
}

type bookingResponse struct {
	ID             string     `json:"id"`
	ProfessionalID string     `json:"professional_id"`
	PatientID      string     `json:"patient_id"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	Timezone       string     `json:"timezone"`
	NoShowMarkedAt *time.Time `json:"no_show_marked_at,omitempty"`
	Version        int64      `json:"version"`
}

func toBookingResponse(b *scheduling.Booking) bookingResponse {
	return bookingResponse{
		ID:             b.ID.String(),
		ProfessionalID: b.ProfessionalID.String(),
		PatientID:      b.PatientID.String(),
		Status:         string(b.Status),
		PaymentStatus:  string(b.PaymentStatus),
		StartAt:        b.StartAt,
		EndAt:          b.EndAt,
		Timezone:       b.Timezone,
		NoShowMarkedAt: b.NoShowMarkedAt,
		Version:        b.Version,
	}
}

type createHoldRequest struct {
	ClinicID       uuid.UUID  `json:"clinic_id"`
	ProfessionalID uuid.UUID  `json:"professional_id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	ServiceTypeID  *uuid.UUID `json:"service_type_id,omitempty"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	RequestedBy    uuid.UUID  `json:"requested_by"`
}

// CreateHold handles POST /scheduling/holds.
func (h *SchedulingHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	var req createHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	hold, err := h.service.CreateHold(r.Context(), scheduling.CreateHoldInput{
		TenantID:       tenantID,
		ClinicID:       req.ClinicID,
		ProfessionalID: req.ProfessionalID,
		PatientID:      req.PatientID,
		ServiceTypeID:  req.ServiceTypeID,
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		RequestedBy:    req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHoldResponse(hold))
}

type cancelHoldRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// CancelHold handles POST /scheduling/holds/{holdID}/cancel.
func (h *SchedulingHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	holdID, err := uuid.Parse(chi.URLParam(r, "holdID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid hold id"})
		return
	}
	var req cancelHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	hold, err := h.service.CancelHold(r.Context(), tenantID, holdID, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHoldResponse(hold))
}

type createBookingRequest struct {
	HoldID               uuid.UUID                `json:"hold_id"`
	Source               scheduling.BookingSource `json:"source"`
	Timezone             string                   `json:"timezone"`
	LateToleranceMinutes int                      `json:"late_tolerance_minutes"`
	RecurrenceSeriesID   *uuid.UUID               `json:"recurrence_series_id,omitempty"`
	Pricing              *scheduling.PricingSplit `json:"pricing,omitempty"`
	AnamnesisRequired    bool                     `json:"anamnesis_required"`
	RequestedBy          uuid.UUID                `json:"requested_by"`
}

// CreateBooking handles POST /scheduling/bookings.
func (h *SchedulingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), scheduling.CreateBookingInput{
		TenantID:             tenantID,
		HoldID:               req.HoldID,
		Source:               req.Source,
		Timezone:             req.Timezone,
		LateToleranceMinutes: req.LateToleranceMinutes,
		RecurrenceSeriesID:   req.RecurrenceSeriesID,
		Pricing:              req.Pricing,
		AnamnesisRequired:    req.AnamnesisRequired,
		RequestedBy:          req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

type confirmBookingRequest struct {
	HoldID        uuid.UUID                `json:"hold_id"`
	PaymentStatus scheduling.PaymentStatus `json:"payment_status"`
	RequestedBy   uuid.UUID                `json:"requested_by"`
}

// ConfirmBooking handles POST /scheduling/bookings/{bookingID}/confirm.
func (h *SchedulingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req confirmBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.ConfirmBooking(r.Context(), scheduling.ConfirmBookingInput{
		TenantID:      tenantID,
		BookingID:     bookingID,
		HoldID:        req.HoldID,
		PaymentStatus: req.PaymentStatus,
		RequestedBy:   req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type rescheduleBookingRequest struct {
	ExpectedVersion int64     `json:"expected_version"`
	NewStart        time.Time `json:"new_start"`
	NewEnd          time.Time `json:"new_end"`
	Reason          string    `json:"reason"`
	RequestedBy     uuid.UUID `json:"requested_by"`
}

// RescheduleBooking handles POST /scheduling/bookings/{bookingID}/reschedule.
func (h *SchedulingHandler) RescheduleBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req rescheduleBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.RescheduleBooking(r.Context(), scheduling.RescheduleBookingInput{
		TenantID:        tenantID,
		BookingID:       bookingID,
		ExpectedVersion: req.ExpectedVersion,
		NewStart:        req.NewStart,
		NewEnd:          req.NewEnd,
		Reason:          req.Reason,
		RequestedBy:     req.RequestedBy,
	})
	if err != nil && booking == nil {
		h.writeError(w, err)
		return
	}
	// A non-nil booking with an error means the reschedule committed but
	// the recurrence counter lagged; the caller sees the committed state.
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type cancelBookingRequest struct {
	ExpectedVersion int64     `json:"expected_version"`
	Reason          string    `json:"reason"`
	RequestedBy     uuid.UUID `json:"requested_by"`
}

// CancelBooking handles POST /scheduling/bookings/{bookingID}/cancel.
func (h *SchedulingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), scheduling.CancelBookingInput{
		TenantID:        tenantID,
		BookingID:       bookingID,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
		RequestedBy:     req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type markNoShowRequest struct {
	ExpectedVersion int64     `json:"expected_version"`
	MarkedAt        time.Time `json:"marked_at"`
	RequestedBy     uuid.UUID `json:"requested_by"`
}

// MarkNoShow handles POST /scheduling/bookings/{bookingID}/no-show.
func (h *SchedulingHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req markNoShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.MarkBookingNoShow(r.Context(), scheduling.MarkNoShowInput{
		TenantID:        tenantID,
		BookingID:       bookingID,
		ExpectedVersion: req.ExpectedVersion,
		MarkedAt:        req.MarkedAt,
		RequestedBy:     req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type recordPaymentRequest struct {
	ExpectedVersion int64                    `json:"expected_version"`
	NewStatus       scheduling.PaymentStatus `json:"new_status"`
	RequestedBy     uuid.UUID                `json:"requested_by"`
}

// RecordPaymentStatus handles POST /scheduling/bookings/{bookingID}/payment-status.
func (h *SchedulingHandler) RecordPaymentStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.RecordPaymentStatus(r.Context(), scheduling.RecordPaymentStatusInput{
		TenantID:        tenantID,
		BookingID:       bookingID,
		ExpectedVersion: req.ExpectedVersion,
		NewStatus:       req.NewStatus,
		RequestedBy:     req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type versionedRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// BeginAppointment handles POST /scheduling/bookings/{bookingID}/begin.
func (h *SchedulingHandler) BeginAppointment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req versionedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.BeginAppointment(r.Context(), tenantID, bookingID, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// CompleteAppointment handles POST /scheduling/bookings/{bookingID}/complete.
func (h *SchedulingHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req versionedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.service.CompleteAppointment(r.Context(), tenantID, bookingID, req.ExpectedVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

type applyCoverageRequest struct {
	CoverageID     uuid.UUID `json:"coverage_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	CoveringID     uuid.UUID `json:"covering_id"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	RequestedBy    uuid.UUID `json:"requested_by"`
}

type coverageResponse struct {
	CoverageID string `json:"coverage_id"`
	Holds      int64  `json:"holds"`
	Bookings   int64  `json:"bookings"`
}

// ApplyCoverage handles POST /scheduling/coverage.
func (h *SchedulingHandler) ApplyCoverage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	var req applyCoverageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	holds, bookings, err := h.service.ApplyCoverage(r.Context(), scheduling.ApplyCoverageInput{
		TenantID:       tenantID,
		CoverageID:     req.CoverageID,
		ProfessionalID: req.ProfessionalID,
		CoveringID:     req.CoveringID,
		WindowStart:    req.WindowStart,
		WindowEnd:      req.WindowEnd,
		RequestedBy:    req.RequestedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coverageResponse{
		CoverageID: req.CoverageID.String(),
		Holds:      holds,
		Bookings:   bookings,
	})
}

// ReleaseCoverage handles POST /scheduling/coverage/{coverageID}/release.
func (h *SchedulingHandler) ReleaseCoverage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	coverageID, err := uuid.Parse(chi.URLParam(r, "coverageID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid coverage id"})
		return
	}

	holds, bookings, err := h.service.ReleaseCoverage(r.Context(), tenantID, coverageID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coverageResponse{
		CoverageID: coverageID.String(),
		Holds:      holds,
		Bookings:   bookings,
	})
}

// HealthCheck reports liveness.
func (h *SchedulingHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
