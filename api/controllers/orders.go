package controllers

import (
	"net/http"
	"strings"

	"github.com/canvasly/canvasly-backend/api/responses"
	"github.com/canvasly/canvasly-backend/api/validators"
	internalorders "github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/settlement"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/pagination"
	"github.com/google/uuid"
)

type createOrderRequest struct {
	ListingID       uuid.UUID `json:"listing_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"required,min=1"`
	ShippingAddress string    `json:"shipping_address" validate:"required"`
	PaymentRef      string    `json:"payment_ref" validate:"required,max=255"`
}

// CreateOrder writes a ledger row for an already-settled payment. The
// usual path is checkout session confirmation; this endpoint covers
// payments reconciled out of band.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			BuyerID:         buyerID,
			ListingID:       payload.ListingID,
			Quantity:        payload.Quantity,
			ShippingAddress: payload.ShippingAddress,
			PaymentRef:      payload.PaymentRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one order from the buyer's perspective.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetBuyerOrder(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// ListOrders pages the acting user's purchases, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return listOrdersBy(svc, logg, func(svc internalorders.Service, r *http.Request, actor uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
		return svc.ListBuyerOrders(r.Context(), actor, params)
	})
}

// ListSales pages the acting user's sales, newest first.
func ListSales(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return listOrdersBy(svc, logg, func(svc internalorders.Service, r *http.Request, actor uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
		return svc.ListSellerOrders(r.Context(), actor, params)
	})
}

func listOrdersBy(
	svc internalorders.Service,
	logg *logger.Logger,
	list func(internalorders.Service, *http.Request, uuid.UUID, pagination.Params) (*internalorders.OrderList, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := list(svc, r, actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// ConfirmDelivery lets the buyer acknowledge receipt, which settles the
// order and releases the seller's earnings.
func ConfirmDelivery(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmDelivery(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}
