package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"

	"github.com/canvasly/canvasly-backend/internal/checkout"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/types"
)

type testCheckoutService struct {
	confirmFn func(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error)
	captureFn func(ctx context.Context, paymentID string) (*sq.Payment, error)
}

func (s *testCheckoutService) Confirm(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, sessionID)
	}
	return &checkout.ConfirmResult{}, nil
}

func (s *testCheckoutService) CaptureOrder(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if s.captureFn != nil {
		return s.captureFn(ctx, paymentID)
	}
	return nil, nil
}

func TestConfirmCheckoutSessionSuccess(t *testing.T) {
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error) {
			if sessionID != "cs_123" {
				t.Fatalf("unexpected session %s", sessionID)
			}
			return &checkout.ConfirmResult{TransactionID: "pi_1"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", strings.NewReader(`{"session_id":"cs_123"}`))
	resp := httptest.NewRecorder()
	ConfirmCheckoutSession(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestConfirmCheckoutSessionPendingRegistration(t *testing.T) {
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error) {
			return &checkout.ConfirmResult{
				TransactionID:        "sub_1",
				RequiresUserCreation: true,
				PlanSelection:        &checkout.SubscriptionIntent{ExternalUserID: "ext_9"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", strings.NewReader(`{"session_id":"cs_9"}`))
	resp := httptest.NewRecorder()
	ConfirmCheckoutSession(svc, testLogger())(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", resp.Code)
	}
}

func TestConfirmCheckoutSessionMissingBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	ConfirmCheckoutSession(&testCheckoutService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestConfirmCheckoutSessionSurfacesPaymentState(t *testing.T) {
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodePaymentIncomplete, "session is not paid")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/confirm", strings.NewReader(`{"session_id":"cs_1"}`))
	resp := httptest.NewRecorder()
	ConfirmCheckoutSession(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodePaymentIncomplete) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestCaptureOrderPaymentSuccess(t *testing.T) {
	id := "PAY_1"
	status := "COMPLETED"
	svc := &testCheckoutService{
		captureFn: func(ctx context.Context, paymentID string) (*sq.Payment, error) {
			if paymentID != "PAY_1" {
				t.Fatalf("unexpected payment %s", paymentID)
			}
			return &sq.Payment{ID: &id, Status: &status}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payments/PAY_1/capture", nil)
	req = addRouteParam(req, "paymentId", "PAY_1")
	resp := httptest.NewRecorder()
	CaptureOrderPayment(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data capturePaymentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != "COMPLETED" {
		t.Fatalf("unexpected status %q", envelope.Data.Status)
	}
}

func TestCaptureOrderPaymentMissingID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/payments//capture", nil)
	req = addRouteParam(req, "paymentId", "")
	resp := httptest.NewRecorder()
	CaptureOrderPayment(&testCheckoutService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
