package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
)

// Repository resolves buyer/seller identity and best-effort seller
// aggregates for the order pipeline.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	IncrementSellerTotals(ctx context.Context, sellerID uuid.UUID, salesDelta int64, revenueDeltaCents int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// IncrementSellerTotals bumps the dashboard aggregates. Callers treat
// failures as best-effort; the counters can be recomputed from orders.
func (r *repository) IncrementSellerTotals(ctx context.Context, sellerID uuid.UUID, salesDelta int64, revenueDeltaCents int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{
			"sales_count":   gorm.Expr("sales_count + ?", salesDelta),
			"revenue_cents": gorm.Expr("revenue_cents + ?", revenueDeltaCents),
		}).Error
}
