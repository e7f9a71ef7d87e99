package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
)

// Guard owns the purchasability transition on listings. Reserve is the
// only code path that flips a listing to sold.
type Guard struct {
	db *gorm.DB
}

// NewGuard builds an inventory guard bound to the provided DB.
func NewGuard(db *gorm.DB) (*Guard, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Guard{db: db}, nil
}

// WithTx returns a guard bound to the transaction.
func (g *Guard) WithTx(tx *gorm.DB) *Guard {
	if tx == nil {
		return g
	}
	return &Guard{db: tx}
}

// Reserve atomically flips an active, in-stock listing to sold. The
// conditional UPDATE is the race guard: of two concurrent buyers exactly
// one observes RowsAffected == 1. Losers get ListingUnavailable.
func (g *Guard) Reserve(ctx context.Context, listingID uuid.UUID) error {
	if listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}

	res := g.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND in_stock = ?", listingID, enums.ListingStatusActive, true).
		Updates(map[string]any{
			"status":   enums.ListingStatusSold,
			"in_stock": false,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving listing")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// Zero rows touched: either the listing is gone or it lost the race.
	var listing models.Listing
	err := g.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking listing state")
	}
	return pkgerrors.New(pkgerrors.CodeListingUnavailable, "listing is not available for purchase")
}
