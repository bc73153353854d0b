package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/draftea/payment-hub/payments-service/application"
	"github.com/draftea/payment-hub/payments-service/domain"
	"github.com/draftea/payment-hub/shared/faults"
	"github.com/draftea/payment-hub/shared/models"
	"github.com/go-chi/chi/v5"
)

// PaymentHandlers contains payment HTTP handlers
type PaymentHandlers struct {
	initiatePayment *application.InitiatePayment
	getPayment      *application.GetPayment
}

// NewPaymentHandlers creates new payment handlers
func NewPaymentHandlers(
	initiatePayment *application.InitiatePayment,
	getPayment *application.GetPayment,
) *PaymentHandlers {
	return &PaymentHandlers{
		initiatePayment: initiatePayment,
		getPayment:      getPayment,
	}
}

// InitiatePayment handles payment creation requests
func (h *PaymentHandlers) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var cmd application.InitiatePaymentCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The Idempotency-Key header takes precedence over the body field
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		cmd.IdempotencyKey = key
	}

	response, err := h.initiatePayment.Execute(r.Context(), &cmd)
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

// paymentView is the HTTP representation of a payment
type paymentView struct {
	ID                 models.ID            `json:"id"`
	TenantID           string               `json:"tenant_id"`
	BusinessUnit       string               `json:"business_unit,omitempty"`
	Amount             models.Money         `json:"amount"`
	SourceAccount      models.AccountRef    `json:"source_account"`
	DestinationAccount models.AccountRef    `json:"destination_account"`
	Reference          string               `json:"reference,omitempty"`
	PaymentType        string               `json:"payment_type"`
	Priority           domain.PaymentPriority `json:"priority"`
	Status             domain.PaymentStatus `json:"status"`
	ClearingReference  string               `json:"clearing_reference,omitempty"`
	FailureReason      string               `json:"failure_reason,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	Version            int                  `json:"version"`
}

// GetPayment handles payment retrieval requests
func (h *PaymentHandlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := models.NewID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	payment, err := h.getPayment.Execute(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), faults.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&paymentView{
		ID:                 payment.ID,
		TenantID:           payment.TenantID,
		BusinessUnit:       payment.BusinessUnit,
		Amount:             payment.Amount,
		SourceAccount:      payment.SourceAccount,
		DestinationAccount: payment.DestinationAccount,
		Reference:          payment.Reference,
		PaymentType:        payment.PaymentType,
		Priority:           payment.Priority,
		Status:             payment.Status,
		ClearingReference:  payment.ClearingReference,
		FailureReason:      payment.FailureReason,
		CreatedAt:          payment.Timestamps.CreatedAt,
		UpdatedAt:          payment.Timestamps.UpdatedAt,
		Version:            payment.Version.Value,
	})
}

// RegisterRoutes registers payment routes
func (h *PaymentHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.InitiatePayment)
		r.Get("/{id}", h.GetPayment)
	})
}
