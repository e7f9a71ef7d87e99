package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/api/responses"
	"github.com/canvasly/canvasly-backend/api/validators"
	"github.com/canvasly/canvasly-backend/internal/fulfillment"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/types"
)

type shippingRatesRequest struct {
	Destination types.Address `json:"destination" validate:"required"`
	ListingIDs  []uuid.UUID   `json:"listing_ids" validate:"required,min=1"`
}

// ShippingRates quotes carrier rates from the acting seller's origin
// address to the buyer's destination.
func ShippingRates(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		sellerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shippingRatesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetRates(r.Context(), fulfillment.RatesInput{
			SellerID:    sellerID,
			Destination: payload.Destination,
			ListingIDs:  payload.ListingIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type purchaseLabelRequest struct {
	RateID string `json:"rate_id" validate:"required"`
}

// PurchaseLabel buys the selected rate and moves the order to shipped.
func PurchaseLabel(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		sellerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload purchaseLabelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PurchaseLabel(r.Context(), fulfillment.PurchaseLabelInput{
			OrderID:  orderID,
			RateID:   payload.RateID,
			SellerID: sellerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderTracking refreshes and returns the carrier tracking state.
func OrderTracking(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PollTracking(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
