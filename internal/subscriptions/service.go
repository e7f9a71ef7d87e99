package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/canvasly/canvasly-backend/pkg/db"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/metrics"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines subscription lifecycle operations.
type Service interface {
	Activate(ctx context.Context, input ActivateInput) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) error
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// ActivateInput carries everything needed to start or renew a term.
type ActivateInput struct {
	UserID        uuid.UUID
	PlanID        string
	BillingPeriod enums.BillingPeriod
	PaymentRef    string
}

// SubscriptionActivatedEvent is appended to the outbox on activation.
type SubscriptionActivatedEvent struct {
	SubscriptionID uuid.UUID           `json:"subscription_id"`
	UserID         uuid.UUID           `json:"user_id"`
	PlanID         string              `json:"plan_id"`
	BillingPeriod  enums.BillingPeriod `json:"billing_period"`
	EndDate        time.Time           `json:"end_date"`
}

// ServiceParams configure the subscription service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Pipeline *metrics.PipelineMetrics
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	pipeline *metrics.PipelineMetrics
	now      func() time.Time
}

// NewService builds the subscription activator.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
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
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		pipeline: params.Pipeline,
		now:      now,
	}, nil
}

// Activate expires any prior active term and appends a new one. Safe
// under at-least-once delivery: the payment reference is the
// idempotency key.
func (s *service) Activate(ctx context.Context, input ActivateInput) (*models.Subscription, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PlanID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id required")
	}
	if !input.BillingPeriod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing period must be monthly or yearly")
	}
	if input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	if existing, err := s.repo.FindByPaymentRef(ctx, input.PaymentRef); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking payment reference")
	} else if existing != nil {
		return existing, nil
	}

	var sub *models.Subscription
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription plan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading plan")
		}
		if plan.Status != enums.PlanStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription plan is not active")
		}

		if _, err := repo.ExpireCurrentForUser(ctx, input.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expiring prior subscription")
		}

		start := s.now().UTC()
		row := &models.Subscription{
			UserID:        input.UserID,
			PlanID:        plan.ID,
			BillingPeriod: input.BillingPeriod,
			Status:        enums.SubscriptionStatusActive,
			StartDate:     start,
			EndDate:       endDateFor(start, input.BillingPeriod),
			AutoRenew:     true,
			PaymentRef:    input.PaymentRef,
		}
		created, err := repo.Create(ctx, row)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_subscriptions_payment_ref") {
				existing, ferr := repo.FindByPaymentRef(ctx, input.PaymentRef)
				if ferr == nil && existing != nil {
					sub = existing
					return nil
				}
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting subscription")
		}
		sub = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionActivated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   created.ID,
			Version:       1,
			Data: SubscriptionActivatedEvent{
				SubscriptionID: created.ID,
				UserID:         created.UserID,
				PlanID:         created.PlanID,
				BillingPeriod:  created.BillingPeriod,
				EndDate:        created.EndDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.pipeline.IncSubscriptionsActivated()
	logCtx := s.logg.WithUserID(ctx, sub.UserID.String())
	s.logg.Info(logCtx, "subscription activated")
	return sub, nil
}

// Cancel clears renewal; the paid term keeps running until end_date and
// the expiration sweep retires it.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	affected, err := s.repo.ClearAutoRenew(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling subscription")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription to cancel")
	}
	logCtx := s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(logCtx, "subscription cancelled")
	return nil
}

func (s *service) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	sub, err := s.repo.FindActiveByUser(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return sub, nil
}

func endDateFor(start time.Time, period enums.BillingPeriod) time.Time {
	if period == enums.BillingPeriodYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
