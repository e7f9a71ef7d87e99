package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/canvasly/canvasly-backend/pkg/enums"
)

// Order records one buyer's purchase of one listing. Rows are created at
// status=paid (orders only exist post-payment) and are never deleted.
// OrderNumber is globally unique; (PaymentRef, ListingID) is unique so a
// replayed checkout confirmation cannot materialize a cart line twice while
// one payment may still cover several listings.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	BuyerID     uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	ListingID   uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index;uniqueIndex:ux_orders_payment_ref_listing"`
	Quantity    int       `gorm:"column:quantity;not null;default:1"`

	UnitPriceCents      int64 `gorm:"column:unit_price_cents;not null"`
	TotalCents          int64 `gorm:"column:total_cents;not null"`
	PlatformFeeCents    int64 `gorm:"column:platform_fee_cents;not null"`
	SellerEarningsCents int64 `gorm:"column:seller_earnings_cents;not null"`

	Status       enums.OrderStatus  `gorm:"column:status;type:order_status;not null;default:'paid'"`
	ReturnStatus enums.ReturnStatus `gorm:"column:return_status;type:return_status;not null;default:'none'"`

	ShippingAddress string  `gorm:"column:shipping_address;type:text;not null"`
	PaymentRef      string  `gorm:"column:payment_ref;not null;index;uniqueIndex:ux_orders_payment_ref_listing"`
	TransferRef     *string `gorm:"column:transfer_ref"`

	Carrier           *string              `gorm:"column:carrier"`
	TrackingNumber    *string              `gorm:"column:tracking_number"`
	TrackingURL       *string              `gorm:"column:tracking_url"`
	LabelURL          *string              `gorm:"column:label_url"`
	ShippingTxnID     *string              `gorm:"column:shipping_txn_id"`
	ShippingCostCents *int64               `gorm:"column:shipping_cost_cents"`
	TrackingStatus    enums.TrackingStatus `gorm:"column:tracking_status;type:tracking_status;not null;default:'unknown'"`

	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
