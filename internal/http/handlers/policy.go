package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/oakwellhealth/scheduling-platform/internal/clinicpolicy"
	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

// PolicyHandler manages per-clinic availability policies.
type PolicyHandler struct {
	store  *clinicpolicy.Store
	logger *logging.Logger
}

func NewPolicyHandler(store *clinicpolicy.Store, logger *logging.Logger) *PolicyHandler {
	if store == nil {
		panic("handlers: policy store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PolicyHandler{store: store, logger: logger}
}

// GetPolicy handles GET /scheduling/clinics/{clinicID}/policy.
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid clinic id"})
		return
	}

	policy, err := h.store.PolicyFor(r.Context(), tenantID, clinicID)
	if err != nil {
		h.logger.Error("policy lookup failed", "error", err, "clinic_id", clinicID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

// UpdatePolicy handles PUT /scheduling/clinics/{clinicID}/policy.
func (h *PolicyHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing tenant"})
		return
	}
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid clinic id"})
		return
	}
	var policy scheduling.AvailabilityPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if policy.MinAdvanceMinutes < 0 || policy.MaxAdvanceDays <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid policy windows"})
		return
	}

	if err := h.store.Set(r.Context(), tenantID, clinicID, policy); err != nil {
		h.logger.Error("policy update failed", "error", err, "clinic_id", clinicID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, policy)
}
