package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/outbox/idempotency"
)

const pipelineNotificationConsumer = "pipeline-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and fans them out as in-app
// notifications to the affected buyer or seller.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the pipeline notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	handler, ok := handlers[eventType]
	if !ok {
		c.logg.Debug(logCtx, "skipping unhandled event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, pipelineNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := handler(envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, pipelineNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	if notification == nil {
		return processResult{ack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "notification write failed", err)
		_ = c.idempotency.Delete(ctx, pipelineNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "notification created")
	return processResult{ack: true}
}

type handlerFunc func(data json.RawMessage) (*models.Notification, error)

var handlers = map[enums.OutboxEventType]handlerFunc{
	enums.EventOrderCreated:          handleOrderCreated,
	enums.EventOrderShipped:          handleOrderShipped,
	enums.EventOrderDelivered:        handleOrderDelivered,
	enums.EventSellerPayoutRecorded:  handleSellerPayout,
	enums.EventSubscriptionActivated: handleSubscriptionActivated,
	enums.EventSubscriptionExpired:   handleSubscriptionExpired,
}

type orderCreatedPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    uuid.UUID `json:"seller_id"`
	TotalCents  int64     `json:"total_cents"`
}

func handleOrderCreated(data json.RawMessage) (*models.Notification, error) {
	var payload orderCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id missing")
	}
	return &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationOrderPaid,
		Title:   "New sale",
		Message: fmt.Sprintf("Order %s has been placed and paid ($%.2f).", payload.OrderNumber, float64(payload.TotalCents)/100),
		Link:    stringPtr(fmt.Sprintf("/seller/orders/%s", payload.OrderID)),
	}, nil
}

type orderShippedPayload struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url"`
}

func handleOrderShipped(data json.RawMessage) (*models.Notification, error) {
	var payload orderShippedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("buyer id missing")
	}
	link := payload.TrackingURL
	if link == "" {
		link = fmt.Sprintf("/orders/%s", payload.OrderID)
	}
	return &models.Notification{
		UserID:  payload.BuyerID,
		Type:    enums.NotificationOrderShipped,
		Title:   "Your order shipped",
		Message: fmt.Sprintf("Order %s shipped via %s, tracking %s.", payload.OrderNumber, payload.Carrier, payload.TrackingNumber),
		Link:    stringPtr(link),
	}, nil
}

type orderDeliveredPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    uuid.UUID `json:"seller_id"`
}

func handleOrderDelivered(data json.RawMessage) (*models.Notification, error) {
	var payload orderDeliveredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id missing")
	}
	return &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationOrderDelivered,
		Title:   "Delivery confirmed",
		Message: fmt.Sprintf("The buyer confirmed delivery of order %s.", payload.OrderNumber),
		Link:    stringPtr(fmt.Sprintf("/seller/orders/%s", payload.OrderID)),
	}, nil
}

type sellerPayoutPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    uuid.UUID `json:"seller_id"`
	AmountCents int64     `json:"amount_cents"`
}

func handleSellerPayout(data json.RawMessage) (*models.Notification, error) {
	var payload sellerPayoutPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.SellerID == uuid.Nil {
		return nil, fmt.Errorf("seller id missing")
	}
	return &models.Notification{
		UserID:  payload.SellerID,
		Type:    enums.NotificationPayoutSent,
		Title:   "Payout on the way",
		Message: fmt.Sprintf("$%.2f from order %s has been sent to your payout account.", float64(payload.AmountCents)/100, payload.OrderNumber),
		Link:    stringPtr(fmt.Sprintf("/seller/orders/%s", payload.OrderID)),
	}, nil
}

type subscriptionActivatedPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         string    `json:"plan_id"`
}

func handleSubscriptionActivated(data json.RawMessage) (*models.Notification, error) {
	var payload subscriptionActivatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationSubscriptionActive,
		Title:   "Subscription active",
		Message: fmt.Sprintf("Your %s subscription is now active.", payload.PlanID),
		Link:    stringPtr("/account/subscription"),
	}, nil
}

type subscriptionExpiredPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
}

func handleSubscriptionExpired(data json.RawMessage) (*models.Notification, error) {
	var payload subscriptionExpiredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return &models.Notification{
		UserID:  payload.UserID,
		Type:    enums.NotificationSubscriptionLapsed,
		Title:   "Subscription expired",
		Message: "Your seller subscription has expired and your listings were paused. Renew to relist.",
		Link:    stringPtr("/account/subscription"),
	}, nil
}

func stringPtr(value string) *string {
	return &value
}
