package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/users"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/metrics"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentProcessor interface {
	GetPaymentIntent(ctx context.Context, intentID string) (*stripesdk.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*stripesdk.PaymentIntent, error)
	CreateTransfer(ctx context.Context, p stripe.TransferParams) (*stripesdk.Transfer, error)
}

// Service releases held funds once the buyer confirms delivery.
type Service interface {
	ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
}

// OrderDeliveredEvent is appended to the outbox when delivery settles.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
}

// SellerPayoutEvent records that a transfer was initiated for the order.
type SellerPayoutEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    uuid.UUID `json:"seller_id"`
	AmountCents int64     `json:"amount_cents"`
	TransferRef string    `json:"transfer_ref"`
}

// ServiceParams configure the settlement service.
type ServiceParams struct {
	Orders   orders.Repository
	Users    users.Repository
	Payments paymentProcessor
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Pipeline *metrics.PipelineMetrics
	Currency string
	Now      func() time.Time
}

type service struct {
	orders   orders.Repository
	users    users.Repository
	payments paymentProcessor
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	pipeline *metrics.PipelineMetrics
	currency string
	now      func() time.Time
}

// NewService builds the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		orders:   params.Orders,
		users:    params.Users,
		payments: params.Payments,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		pipeline: params.Pipeline,
		currency: currency,
		now:      now,
	}, nil
}

// ConfirmDelivery captures the held payment, pays the seller their
// earnings, and transitions the order to delivered. Safe under
// at-least-once invocation: an already-delivered order is returned
// unchanged and the transfer reference is write-once.
func (s *service) ConfirmDelivery(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and buyer id required")
	}

	order, err := s.orders.FindForBuyer(ctx, orderID, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}

	if order.Status == enums.OrderStatusDelivered {
		return order, nil
	}
	if order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusShipped {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %q cannot be confirmed delivered", order.Status))
	}

	// Money movement must run to completion even if the caller goes
	// away mid-flight; an interrupted capture leaves funds ambiguous.
	moneyCtx := context.WithoutCancel(ctx)

	if err := s.capturePayment(moneyCtx, order); err != nil {
		return nil, err
	}

	transferRef, err := s.payoutSeller(moneyCtx, order)
	if err != nil {
		return nil, err
	}

	deliveredAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		updates := map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": deliveredAt,
		}
		if transferRef != "" {
			updates["transfer_ref"] = transferRef
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording delivery")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderDeliveredEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
			},
		}); err != nil {
			return err
		}

		if transferRef == "" {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerPayoutRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: SellerPayoutEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				SellerID:    order.SellerID,
				AmountCents: order.SellerEarningsCents,
				TransferRef: transferRef,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusDelivered
	order.DeliveredAt = &deliveredAt
	if transferRef != "" {
		order.TransferRef = &transferRef
	}

	s.pipeline.IncSettlements()
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "delivery confirmed")
	return order, nil
}

// capturePayment completes a still-held authorization. Direct orders
// and subscription-backed references carry no capturable intent and
// are skipped.
func (s *service) capturePayment(ctx context.Context, order *models.Order) error {
	if !strings.HasPrefix(order.PaymentRef, "pi_") {
		return nil
	}
	intent, err := s.payments.GetPaymentIntent(ctx, order.PaymentRef)
	if err != nil {
		return err
	}
	if intent.Status != stripesdk.PaymentIntentStatusRequiresCapture {
		return nil
	}
	if _, err := s.payments.CapturePaymentIntent(ctx, order.PaymentRef); err != nil {
		return err
	}
	return nil
}

// payoutSeller transfers the seller's earnings once per order. Returns
// the transfer reference to record, or empty when no transfer applies.
func (s *service) payoutSeller(ctx context.Context, order *models.Order) (string, error) {
	if order.SellerEarningsCents <= 0 || order.TransferRef != nil {
		return "", nil
	}

	seller, err := s.users.FindByID(ctx, order.SellerID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving seller")
	}
	if seller.PayoutAccountID == nil || *seller.PayoutAccountID == "" {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "seller has no payout account; earnings held")
		return "", nil
	}

	tr, err := s.payments.CreateTransfer(ctx, stripe.TransferParams{
		AmountCents:    order.SellerEarningsCents,
		Currency:       s.currency,
		Destination:    *seller.PayoutAccountID,
		TransferGroup:  order.OrderNumber,
		IdempotencyKey: "settle-" + order.ID.String(),
	})
	if err != nil {
		return "", err
	}
	return tr.ID, nil
}
