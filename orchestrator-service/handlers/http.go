package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/draftea/payment-hub/orchestrator-service/application"
	"github.com/draftea/payment-hub/orchestrator-service/domain"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/go-chi/chi/v5"
)

// SagaHandlers contains saga HTTP handlers
type SagaHandlers struct {
	startSaga      *application.StartSaga
	getSaga        *application.GetSaga
	compensateSaga *application.CompensateSaga
}

// NewSagaHandlers creates new saga handlers
func NewSagaHandlers(
	startSaga *application.StartSaga,
	getSaga *application.GetSaga,
	compensateSaga *application.CompensateSaga,
) *SagaHandlers {
	return &SagaHandlers{
		startSaga:      startSaga,
		getSaga:        getSaga,
		compensateSaga: compensateSaga,
	}
}

// StartSaga handles manual saga start requests, mostly for backfills and
// operational replays; the normal trigger is the payment.initiated event.
func (h *SagaHandlers) StartSaga(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartSagaCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.startSaga.Execute(r.Context(), &cmd)
	if err != nil {
		http.Error(w, err.Error(), faults.HTTPStatus(err))
		return
	}

	status := http.StatusCreated
	if response.Existed {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// sagaView is the HTTP representation of a saga instance
type sagaView struct {
	ID            models.ID         `json:"id"`
	SagaType      string            `json:"saga_type"`
	PaymentID     models.ID         `json:"payment_id"`
	TenantID      string            `json:"tenant_id"`
	BusinessUnit  string            `json:"business_unit,omitempty"`
	CorrelationID models.ID         `json:"correlation_id,omitempty"`
	Status        domain.SagaStatus `json:"status"`
	Stuck         bool              `json:"stuck"`
	LastError     string            `json:"last_error,omitempty"`
	Steps         []*domain.SagaStep `json:"steps"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Version       int               `json:"version"`
}

func toSagaView(instance *domain.Saga) *sagaView {
	return &sagaView{
		ID:            instance.ID,
		SagaType:      instance.SagaType,
		PaymentID:     instance.PaymentID,
		TenantID:      instance.TenantID,
		BusinessUnit:  instance.BusinessUnit,
		CorrelationID: instance.CorrelationID,
		Status:        instance.Status,
		Stuck:         instance.Stuck,
		LastError:     instance.LastError,
		Steps:         instance.Steps,
		CreatedAt:     instance.Timestamps.CreatedAt,
		UpdatedAt:     instance.Timestamps.UpdatedAt,
		Version:       instance.Version.Value,
	}
}

// GetSaga handles saga status queries
func (h *SagaHandlers) GetSaga(w http.ResponseWriter, r *http.Request) {
	id, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid saga ID", http.StatusBadRequest)
		return
	}

	instance, err := h.getSaga.Execute(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), faults.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSagaView(instance))
}

// CompensateSaga handles operator requests to unwind a saga
func (h *SagaHandlers) CompensateSaga(w http.ResponseWriter, r *http.Request) {
	id, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid saga ID", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	instance, err := h.compensateSaga.Execute(r.Context(), &application.CompensateSagaCommand{
		SagaID: id,
		Reason: body.Reason,
	})
	if err != nil {
		http.Error(w, err.Error(), faults.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toSagaView(instance))
}

// RegisterRoutes registers saga routes
func (h *SagaHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/sagas", func(r chi.Router) {
		r.Post("/", h.StartSaga)
		r.Get("/{id}", h.GetSaga)
		r.Post("/{id}/compensate", h.CompensateSaga)
	})
}
