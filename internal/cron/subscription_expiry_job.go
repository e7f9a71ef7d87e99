package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/listings"
	"github.com/canvasly/canvasly-backend/internal/subscriptions"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SubscriptionExpiredEvent is appended to the outbox for each lapsed term.
type SubscriptionExpiredEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         string    `json:"plan_id"`
	EndDate        time.Time `json:"end_date"`
}

// SubscriptionExpiryJobParams configures the expiration sweep.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Subscriptions subscriptions.Repository
	Listings      listings.Repository
	Outbox        outboxPublisher
	Now           func() time.Time
}

// NewSubscriptionExpiryJob builds the subscription expiration sweep.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionExpiryJob{
		logg:     params.Logger,
		db:       params.DB,
		subs:     params.Subscriptions,
		listings: params.Listings,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg     *logger.Logger
	db       txRunner
	subs     subscriptions.Repository
	listings listings.Repository
	outbox   outboxPublisher
	now      func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

// Run marks every lapsed subscription expired in one bulk update, then
// pauses the affected sellers' active listings. Per-user failures are
// collected and logged without aborting the remaining batch.
func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	lapsed, err := j.subs.FindLapsed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find lapsed subscriptions: %w", err)
	}
	if len(lapsed) == 0 {
		j.logg.Info(ctx, "no lapsed subscriptions")
		return nil
	}

	ids := make([]uuid.UUID, 0, len(lapsed))
	userSet := map[uuid.UUID]bool{}
	for _, sub := range lapsed {
		ids = append(ids, sub.ID)
		userSet[sub.UserID] = true
	}

	expired, err := j.subs.MarkExpired(ctx, ids)
	if err != nil {
		return fmt.Errorf("mark subscriptions expired: %w", err)
	}

	var errs error
	deactivated := int64(0)
	for _, sub := range lapsed {
		if err := j.expireUser(ctx, sub, &deactivated); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", sub.UserID, err))
		}
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"lapsed":               len(lapsed),
		"expired":              expired,
		"users":                len(userSet),
		"listings_deactivated": deactivated,
	})
	j.logg.Info(reportCtx, "subscription expiry sweep complete")
	return errs
}

func (j *subscriptionExpiryJob) expireUser(ctx context.Context, sub models.Subscription, deactivated *int64) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := j.listings.WithTx(tx).DeactivateActiveBySellers(ctx, []uuid.UUID{sub.UserID})
		if err != nil {
			return fmt.Errorf("deactivate listings: %w", err)
		}
		*deactivated += affected

		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionExpired,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Version:       1,
			Data: SubscriptionExpiredEvent{
				SubscriptionID: sub.ID,
				UserID:         sub.UserID,
				PlanID:         sub.PlanID,
				EndDate:        sub.EndDate,
			},
		})
	})
}
