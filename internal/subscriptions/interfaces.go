package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
)

// Repository defines persistence operations for subscriptions and plans.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPlan(ctx context.Context, planID string) (*models.SubscriptionPlan, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	ExpireCurrentForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ClearAutoRenew(ctx context.Context, userID uuid.UUID) (int64, error)
	FindLapsed(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
	MarkExpired(ctx context.Context, ids []uuid.UUID) (int64, error)
}
