package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	stripesdk "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/subscriptions"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
)

// Processor-assigned transaction ids become payment references on
// orders and subscriptions; the columns are bounded.
const maxTransactionRefLen = 255

type sessionSource interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripesdk.CheckoutSession, error)
}

type orderWriter interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
}

type subscriptionActivator interface {
	Activate(ctx context.Context, input subscriptions.ActivateInput) (*models.Subscription, error)
}

type userDirectory interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

type paymentCapturer interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// Service reconciles asynchronous payment confirmations into ledger rows.
type Service interface {
	Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error)
	CaptureOrder(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// ConfirmResult reports what a session confirmation materialized.
//
// When RequiresUserCreation is set the buyer paid before registering:
// the caller must create the account for PlanSelection.ExternalUserID
// and invoke Confirm again. Nothing has been written yet in that case.
//
// When the session metadata describes no known purchase, only
// TransactionID and ExternalUserID are populated: the payment is
// acknowledged but no ledger rows are written.
type ConfirmResult struct {
	TransactionID        string
	ExternalUserID       string
	RequiresUserCreation bool
	PlanSelection        *SubscriptionIntent
	Subscription         *models.Subscription
	Orders               []models.Order
	SkippedListings      []uuid.UUID
}

// ServiceParams configure the checkout reconciler.
type ServiceParams struct {
	Sessions      sessionSource
	Orders        orderWriter
	Subscriptions subscriptionActivator
	Users         userDirectory
	Payments      paymentCapturer
	Logger        *logger.Logger
}

type service struct {
	sessions sessionSource
	orders   orderWriter
	subs     subscriptionActivator
	users    userDirectory
	payments paymentCapturer
	logg     *logger.Logger
}

// NewService builds the checkout reconciler.
func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("session source required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order writer required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription activator required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment capturer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		sessions: params.Sessions,
		orders:   params.Orders,
		subs:     params.Subscriptions,
		users:    params.Users,
		payments: params.Payments,
		logg:     params.Logger,
	}, nil
}

// Confirm verifies the session reached a paid state and drives the
// matching ledger write. Safe to call repeatedly for the same session:
// the extracted transaction id is the idempotency key downstream, so
// replays return the previously materialized rows.
func (s *service) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	session, err := s.sessions.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkSessionPaid(session); err != nil {
		return nil, err
	}

	txnID := transactionID(session)
	intent := parseIntent(session)

	switch intent.Kind {
	case IntentSubscription:
		return s.confirmSubscription(ctx, txnID, intent.Subscription)
	case IntentCart:
		return s.confirmCart(ctx, txnID, intent.Cart)
	default:
		// The charge is real even when the metadata is not recognizable.
		// Hand the transaction reference and payer identity back without
		// writing anything.
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id":     sessionID,
			"transaction_id": txnID,
		})
		s.logg.Warn(logCtx, "paid session metadata describes no known purchase")
		return &ConfirmResult{
			TransactionID:  txnID,
			ExternalUserID: session.Metadata[metaExternalUserID],
		}, nil
	}
}

func (s *service) confirmSubscription(ctx context.Context, txnID string, intent *SubscriptionIntent) (*ConfirmResult, error) {
	user, err := s.users.FindByExternalID(ctx, intent.ExternalUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Pay first, register second: hand the plan selection back
			// so the caller can create the account and retry.
			s.logg.Info(ctx, "subscription confirmation deferred: buyer not registered")
			return &ConfirmResult{
				TransactionID:        txnID,
				RequiresUserCreation: true,
				PlanSelection:        intent,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving buyer")
	}

	sub, err := s.subs.Activate(ctx, subscriptions.ActivateInput{
		UserID:        user.ID,
		PlanID:        intent.PlanID,
		BillingPeriod: intent.BillingPeriod,
		PaymentRef:    txnID,
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{TransactionID: txnID, Subscription: sub}, nil
}

func (s *service) confirmCart(ctx context.Context, txnID string, intent *CartIntent) (*ConfirmResult, error) {
	buyer, err := s.users.FindByExternalID(ctx, intent.ExternalUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving buyer")
	}

	result := &ConfirmResult{TransactionID: txnID}
	for _, line := range intent.Lines {
		order, err := s.orders.CreateOrder(ctx, orders.CreateOrderInput{
			BuyerID:         buyer.ID,
			ListingID:       line.ListingID,
			Quantity:        line.Quantity,
			ShippingAddress: intent.ShippingAddress,
			PaymentRef:      txnID,
		})
		if err != nil {
			// Lines that lost the inventory race or reference a missing
			// listing are skipped; the charge already happened for the
			// whole cart and the remaining lines still fulfill.
			if pkgerrors.IsCode(err, pkgerrors.CodeListingUnavailable) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"listing_id": line.ListingID.String(),
					"reason":     err.Error(),
				})
				s.logg.Info(logCtx, "cart line skipped")
				result.SkippedListings = append(result.SkippedListings, line.ListingID)
				continue
			}
			return nil, err
		}
		result.Orders = append(result.Orders, *order)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"orders_created": len(result.Orders),
		"lines_skipped":  len(result.SkippedListings),
	})
	s.logg.Info(logCtx, "checkout session reconciled")
	return result, nil
}

// CaptureOrder completes an authorized payment on the alternate
// processor. Re-invocation with an already-completed payment returns it
// unchanged.
func (s *service) CaptureOrder(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch status(payment) {
	case "COMPLETED":
		return payment, nil
	case "APPROVED":
		return s.payments.CompletePayment(ctx, paymentID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is not capturable in status %q", status(payment)))
	}
}

// checkSessionPaid enforces the paid/complete requirement per mode.
func checkSessionPaid(session *stripesdk.CheckoutSession) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment processor returned no session")
	}
	if session.Mode == stripesdk.CheckoutSessionModeSubscription {
		if session.Status != stripesdk.CheckoutSessionStatusComplete {
			return pkgerrors.New(pkgerrors.CodePaymentIncomplete, "checkout session is not complete")
		}
		if session.Subscription == nil || !subscriptionCurrent(session.Subscription.Status) {
			return pkgerrors.New(pkgerrors.CodePaymentIncomplete, "recurring agreement is not active")
		}
		return nil
	}
	switch session.PaymentStatus {
	case stripesdk.CheckoutSessionPaymentStatusPaid, stripesdk.CheckoutSessionPaymentStatusNoPaymentRequired:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodePaymentIncomplete, "checkout session is not paid")
	}
}

func subscriptionCurrent(status stripesdk.SubscriptionStatus) bool {
	return status == stripesdk.SubscriptionStatusActive || status == stripesdk.SubscriptionStatusTrialing
}

// transactionID picks the stable processor reference for idempotency:
// the recurring-agreement id when present, else the payment id, else
// the session id itself.
func transactionID(session *stripesdk.CheckoutSession) string {
	var id string
	switch {
	case session.Subscription != nil && session.Subscription.ID != "":
		id = session.Subscription.ID
	case session.PaymentIntent != nil && session.PaymentIntent.ID != "":
		id = session.PaymentIntent.ID
	default:
		id = session.ID
	}
	if len(id) > maxTransactionRefLen {
		id = id[:maxTransactionRefLen]
	}
	return id
}

func status(payment *sq.Payment) string {
	if payment == nil || payment.GetStatus() == nil {
		return ""
	}
	return *payment.GetStatus()
}
