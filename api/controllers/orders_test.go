package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	internalorders "github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/pagination"
	"github.com/canvasly/canvasly-backend/pkg/types"
)

type testOrdersService struct {
	createFn     func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	getFn        func(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	listBuyerFn  func(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error)
	listSellerFn func(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error)
}

func (s *testOrdersService) CreateOrder(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Order{}, nil
}

func (s *testOrdersService) GetBuyerOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID, buyerID)
	}
	return &models.Order{}, nil
}

func (s *testOrdersService) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	if s.listBuyerFn != nil {
		return s.listBuyerFn(ctx, buyerID, params)
	}
	return &internalorders.OrderList{}, nil
}

func (s *testOrdersService) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	if s.listSellerFn != nil {
		return s.listSellerFn(ctx, sellerID, params)
	}
	return &internalorders.OrderList{}, nil
}

type testSettlementService struct {
	confirmFn func(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
}

func (s *testSettlementService) ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, orderID, buyerID)
	}
	return &models.Order{}, nil
}

func TestCreateOrderSuccess(t *testing.T) {
	buyerID := uuid.New()
	listingID := uuid.New()
	var got internalorders.CreateOrderInput
	svc := &testOrdersService{
		createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			got = input
			return &models.Order{ID: uuid.New(), BuyerID: input.BuyerID}, nil
		},
	}

	body := `{"listing_id":"` + listingID.String() + `","quantity":2,"shipping_address":"12 Gallery Row","payment_ref":"pi_abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = asUser(req, buyerID.String())
	resp := httptest.NewRecorder()
	CreateOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.BuyerID != buyerID || got.ListingID != listingID || got.Quantity != 2 {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.PaymentRef != "pi_abc" {
		t.Fatalf("unexpected payment ref %q", got.PaymentRef)
	}
}

func TestCreateOrderRejectsMissingFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"quantity":1}`))
	req = asUser(req, uuid.NewString())
	resp := httptest.NewRecorder()
	CreateOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	body := `{"listing_id":"` + uuid.NewString() + `","quantity":1,"shipping_address":"x","payment_ref":"pi_1","bogus":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = asUser(req, uuid.NewString())
	resp := httptest.NewRecorder()
	CreateOrder(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListOrdersPassesPagination(t *testing.T) {
	buyerID := uuid.New()
	var gotParams pagination.Params
	svc := &testOrdersService{
		listBuyerFn: func(ctx context.Context, uid uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
			if uid != buyerID {
				t.Fatalf("unexpected buyer %s", uid)
			}
			gotParams = params
			return &internalorders.OrderList{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", nil)
	req = asUser(req, buyerID.String())
	resp := httptest.NewRecorder()
	ListOrders(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if gotParams.Limit != 5 || gotParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", gotParams)
	}
}

func TestListOrdersRejectsOversizedLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5000", nil)
	req = asUser(req, uuid.NewString())
	resp := httptest.NewRecorder()
	ListOrders(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListSalesUsesSellerPerspective(t *testing.T) {
	sellerID := uuid.New()
	called := false
	svc := &testOrdersService{
		listSellerFn: func(ctx context.Context, uid uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
			called = true
			if uid != sellerID {
				t.Fatalf("unexpected seller %s", uid)
			}
			return &internalorders.OrderList{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req = asUser(req, sellerID.String())
	resp := httptest.NewRecorder()
	ListSales(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK || !called {
		t.Fatalf("seller listing not invoked, status %d", resp.Code)
	}
}

func TestConfirmDeliverySuccess(t *testing.T) {
	buyerID := uuid.New()
	orderID := uuid.New()
	svc := &testSettlementService{
		confirmFn: func(ctx context.Context, oid, uid uuid.UUID) (*models.Order, error) {
			if oid != orderID || uid != buyerID {
				t.Fatalf("unexpected args %s %s", oid, uid)
			}
			return &models.Order{ID: oid}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/delivered", nil)
	req = asUser(req, buyerID.String())
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	ConfirmDelivery(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestConfirmDeliveryInvalidOrderID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/not-a-uuid/delivered", nil)
	req = asUser(req, uuid.NewString())
	req = addRouteParam(req, "orderId", "not-a-uuid")
	resp := httptest.NewRecorder()
	ConfirmDelivery(&testSettlementService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
