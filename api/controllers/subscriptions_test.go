package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/internal/subscriptions"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
)

type testSubscriptionsService struct {
	activateFn  func(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error)
	cancelFn    func(ctx context.Context, userID uuid.UUID) error
	getActiveFn func(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

func (s *testSubscriptionsService) Activate(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error) {
	if s.activateFn != nil {
		return s.activateFn(ctx, input)
	}
	return &models.Subscription{}, nil
}

func (s *testSubscriptionsService) Cancel(ctx context.Context, userID uuid.UUID) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, userID)
	}
	return nil
}

func (s *testSubscriptionsService) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.getActiveFn != nil {
		return s.getActiveFn(ctx, userID)
	}
	return &models.Subscription{}, nil
}

func TestActivateSubscriptionSuccess(t *testing.T) {
	userID := uuid.New()
	var got subscriptions.ActivateInput
	svc := &testSubscriptionsService{
		activateFn: func(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error) {
			got = input
			return &models.Subscription{UserID: input.UserID, PlanID: input.PlanID}, nil
		},
	}

	body := `{"plan_id":"plan_pro","billing_period":"monthly","payment_ref":"pi_123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", strings.NewReader(body))
	req = asUser(req, userID.String())
	resp := httptest.NewRecorder()
	ActivateSubscription(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if got.UserID != userID {
		t.Fatalf("unexpected user %s", got.UserID)
	}
	if got.PlanID != "plan_pro" || got.BillingPeriod != enums.BillingPeriodMonthly || got.PaymentRef != "pi_123" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestActivateSubscriptionRejectsBadPeriod(t *testing.T) {
	body := `{"plan_id":"plan_pro","billing_period":"weekly","payment_ref":"pi_123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", strings.NewReader(body))
	req = asUser(req, uuid.NewString())
	resp := httptest.NewRecorder()
	ActivateSubscription(&testSubscriptionsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestActivateSubscriptionMissingIdentity(t *testing.T) {
	body := `{"plan_id":"plan_pro","billing_period":"monthly","payment_ref":"pi_123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", strings.NewReader(body))
	resp := httptest.NewRecorder()
	ActivateSubscription(&testSubscriptionsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCancelSubscriptionSuccess(t *testing.T) {
	userID := uuid.New()
	called := false
	svc := &testSubscriptionsService{
		cancelFn: func(ctx context.Context, uid uuid.UUID) error {
			called = true
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/cancel", nil)
	req = asUser(req, userID.String())
	resp := httptest.NewRecorder()
	CancelSubscription(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["cancelled"] {
		t.Fatal("response missing cancelled flag")
	}
}

func TestGetSubscriptionReturnsActiveTerm(t *testing.T) {
	userID := uuid.New()
	svc := &testSubscriptionsService{
		getActiveFn: func(ctx context.Context, uid uuid.UUID) (*models.Subscription, error) {
			return &models.Subscription{UserID: uid, PlanID: "plan_pro", Status: enums.SubscriptionStatusActive}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/me", nil)
	req = asUser(req, userID.String())
	resp := httptest.NewRecorder()
	GetSubscription(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data models.Subscription `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.PlanID != "plan_pro" {
		t.Fatalf("unexpected plan %q", envelope.Data.PlanID)
	}
}
