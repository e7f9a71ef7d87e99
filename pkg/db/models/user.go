package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/types"
)

// User resolves buyer/seller identity for the pipeline. SalesCount and
// RevenueCents are best-effort dashboard aggregates; they may be recomputed
// from orders at any time and carry no transactional guarantee.
type User struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ExternalID      string         `gorm:"column:external_id;not null;uniqueIndex:ux_users_external_id"`
	Email           string         `gorm:"column:email;not null"`
	DisplayName     string         `gorm:"column:display_name;not null"`
	PayoutAccountID *string        `gorm:"column:payout_account_id"`
	OriginAddress   *types.Address `gorm:"column:origin_address;type:jsonb;serializer:json"`
	SalesCount      int64          `gorm:"column:sales_count;not null;default:0"`
	RevenueCents    int64          `gorm:"column:revenue_cents;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
