package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/canvasly/canvasly-backend/pkg/enums"
)

// SubscriptionPlan captures the local metadata for a seller subscription plan.
type SubscriptionPlan struct {
	ID           string           `gorm:"column:id;primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	Status       enums.PlanStatus `gorm:"column:status;type:plan_status;not null"`
	MonthlyPrice decimal.Decimal  `gorm:"column:monthly_price;type:numeric(12,2);not null"`
	YearlyPrice  decimal.Decimal  `gorm:"column:yearly_price;type:numeric(12,2);not null"`
	CurrencyCode string           `gorm:"column:currency_code;not null;default:'USD'"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
