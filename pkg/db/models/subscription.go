package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/enums"
)

// Subscription is one billing term for a user. At most one row per user may be
// active with end_date in the future; activation expires any prior active row
// rather than mutating it. PaymentRef carries a unique index backing the
// checkout reconciler's idempotency.
type Subscription struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID        string                   `gorm:"column:plan_id;not null"`
	BillingPeriod enums.BillingPeriod      `gorm:"column:billing_period;type:billing_period;not null"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       time.Time                `gorm:"column:end_date;not null;index"`
	AutoRenew     bool                     `gorm:"column:auto_renew;not null;default:true"`
	PaymentRef    string                   `gorm:"column:payment_ref;not null;uniqueIndex:ux_subscriptions_payment_ref"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
