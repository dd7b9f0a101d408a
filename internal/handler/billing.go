package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/rentbase/billing-engine/internal/domain"
	"github.com/rentbase/billing-engine/internal/service"
	apperrors "github.com/rentbase/billing-engine/pkg/errors"
	"github.com/rentbase/billing-engine/pkg/response"
)

const gatewaySignatureHeader = "X-Gateway-Signature"

type BillingHandler struct {
	service   *service.BillingService
	validator *validator.Validate
}

func NewBillingHandler(service *service.BillingService) *BillingHandler {
	return &BillingHandler{
		service:   service,
		validator: validator.New(),
	}
}

// CreateAgreement handles POST /api/v1/agreements
func (h *BillingHandler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	agreement, err := h.service.CreateAgreement(r.Context(), &request)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Created(w, domain.CreateAgreementResponse{
		Agreement: agreement,
		Ledger:    agreement.Ledger.Records,
	})
}

// GetLedger handles GET /api/v1/agreements/{agreementId}/ledger
func (h *BillingHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	agreementID := mux.Vars(r)["agreementId"]

	state, err := h.service.GetLedger(r.Context(), agreementID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Success(w, state)
}

// RecordPayment handles POST /api/v1/agreements/{agreementId}/payments
func (h *BillingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	agreementID := mux.Vars(r)["agreementId"]

	var request domain.ManualPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	state, err := h.service.RecordManualPayment(r.Context(), agreementID, &request)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Success(w, state)
}

// TriggerReminder handles POST /api/v1/agreements/{agreementId}/reminders
func (h *BillingHandler) TriggerReminder(w http.ResponseWriter, r *http.Request) {
	agreementID := mux.Vars(r)["agreementId"]

	if err := h.service.TriggerManualReminder(r.Context(), agreementID); err != nil {
		h.respondError(w, err)
		return
	}

	response.Success(w, map[string]string{"status": "reminder dispatched"})
}

// GatewayWebhook handles POST /api/v1/webhooks/payment-gateway
func (h *BillingHandler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "Could not read request body", err)
		return
	}

	state, err := h.service.ReconcileGatewayEvent(r.Context(), payload, r.Header.Get(gatewaySignatureHeader))
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Success(w, state)
}

// RunSweep handles POST /api/v1/sweeps (manual trigger of the daily pass)
func (h *BillingHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	var body struct {
		AsOf string `json:"as_of"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", body.AsOf)
		if err != nil {
			response.BadRequest(w, "as_of must be YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	report, err := h.service.RunDailySweep(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}

	response.Success(w, report)
}

// respondError maps the error taxonomy onto HTTP statuses.
func (h *BillingHandler) respondError(w http.ResponseWriter, err error) {
	var cooldown *apperrors.CooldownError
	if errors.As(err, &cooldown) {
		response.TooManyRequests(w, cooldown.Error(), cooldown.Remaining)
		return
	}

	var business *apperrors.BusinessError
	if errors.As(err, &business) {
		switch business.Code {
		case apperrors.ErrCodeAgreementNotFound, apperrors.ErrCodePeriodNotFound:
			response.NotFound(w, business.Message)
		case apperrors.ErrCodeAgreementExists, apperrors.ErrCodeAgreementNotActive, apperrors.ErrCodeNoOutstanding:
			response.Conflict(w, business.Message, business.Err)
		case apperrors.ErrCodeInvalidPaymentAmount, apperrors.ErrCodeInvalidDate, apperrors.ErrCodeInvalidPayload:
			response.BadRequest(w, business.Message, business.Err)
		case apperrors.ErrCodeInvalidSignature:
			response.Unauthorized(w, business.Message)
		default:
			response.InternalServerError(w, business.Message, business.Err)
		}
		return
	}

	response.InternalServerError(w, "Unexpected error", err)
}
