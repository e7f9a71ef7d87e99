package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canvasly/canvasly-backend/api/responses"
	"github.com/canvasly/canvasly-backend/api/validators"
	"github.com/canvasly/canvasly-backend/internal/checkout"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
)

type confirmSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// ConfirmCheckoutSession reconciles a completed processor session into
// ledger rows or a subscription term. Safe to call repeatedly for the
// same session.
func ConfirmCheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload confirmSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), payload.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.RequiresUserCreation {
			// 202: payment is good but the buyer has no account yet; the
			// caller must register the user and confirm again.
			responses.WriteSuccessStatus(w, http.StatusAccepted, result)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type capturePaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// CaptureOrderPayment completes an approved point-of-sale payment.
func CaptureOrderPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		paymentID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		if paymentID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required"))
			return
		}

		payment, err := svc.CaptureOrder(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := capturePaymentResponse{PaymentID: paymentID}
		if payment != nil {
			if id := payment.GetID(); id != nil {
				resp.PaymentID = *id
			}
			if status := payment.GetStatus(); status != nil {
				resp.Status = *status
			}
		}
		responses.WriteSuccess(w, resp)
	}
}
