package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/enums"
	"github.com/canvasly/canvasly-backend/pkg/types"
)

// Listing is a single artwork a seller offers for sale. Only the inventory
// guard flips a listing to sold; the expiration sweep may deactivate it.
type Listing struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string              `gorm:"column:title;not null"`
	PriceCents int64               `gorm:"column:price_cents;not null"`
	Status     enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:'draft'"`
	InStock    bool                `gorm:"column:in_stock;not null;default:true"`
	Parcel     *types.Parcel       `gorm:"column:parcel;type:jsonb;serializer:json"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
