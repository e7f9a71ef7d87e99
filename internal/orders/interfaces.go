package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	"github.com/canvasly/canvasly-backend/pkg/pagination"
)

// Repository defines persistence operations for the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForBuyer(ctx context.Context, id, buyerID uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) ([]models.Order, error)
	FindByPaymentRefAndListing(ctx context.Context, paymentRef string, listingID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateTrackingStatus(ctx context.Context, id uuid.UUID, status enums.TrackingStatus) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error)
}

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Items      []models.Order
	NextCursor *string
}
