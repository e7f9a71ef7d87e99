package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/fees"
	"github.com/canvasly/canvasly-backend/internal/inventory"
	"github.com/canvasly/canvasly-backend/internal/listings"
	"github.com/canvasly/canvasly-backend/internal/users"
	dbpkg "github.com/canvasly/canvasly-backend/pkg/db"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/metrics"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/pagination"
)

const orderNumberPrefix = "CNV"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines ledger-level operations beyond repository reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	GetBuyerOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error)
}

// CreateOrderInput carries everything needed to write one ledger row.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	ListingID       uuid.UUID
	Quantity        int
	ShippingAddress string
	PaymentRef      string
}

// OrderCreatedEvent is appended to the outbox when a ledger row commits.
type OrderCreatedEvent struct {
	OrderID             uuid.UUID `json:"order_id"`
	OrderNumber         string    `json:"order_number"`
	BuyerID             uuid.UUID `json:"buyer_id"`
	SellerID            uuid.UUID `json:"seller_id"`
	ListingID           uuid.UUID `json:"listing_id"`
	TotalCents          int64     `json:"total_cents"`
	PlatformFeeCents    int64     `json:"platform_fee_cents"`
	SellerEarningsCents int64     `json:"seller_earnings_cents"`
}

// ServiceParams configure the order ledger service.
type ServiceParams struct {
	Repo      Repository
	Listings  listings.Repository
	Users     users.Repository
	Guard     *inventory.Guard
	Fees      *fees.Calculator
	Tx        txRunner
	Outbox    outboxPublisher
	Logger    *logger.Logger
	Pipeline  *metrics.PipelineMetrics
	// OrderNumberFn overrides order number generation in tests.
	OrderNumberFn func() string
}

type service struct {
	repo        Repository
	listings    listings.Repository
	users       users.Repository
	guard       *inventory.Guard
	fees        *fees.Calculator
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
	pipeline    *metrics.PipelineMetrics
	orderNumber func() string
}

// NewService builds the order ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("inventory guard required")
	}
	if params.Fees == nil {
		return nil, fmt.Errorf("fee calculator required")
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
	gen := params.OrderNumberFn
	if gen == nil {
		gen = generateOrderNumber
	}
	return &service{
		repo:        params.Repo,
		listings:    params.Listings,
		users:       params.Users,
		guard:       params.Guard,
		fees:        params.Fees,
		tx:          params.Tx,
		outbox:      params.Outbox,
		logg:        params.Logger,
		pipeline:    params.Pipeline,
		orderNumber: gen,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.ShippingAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	// Replayed confirmations short-circuit to the already-written row.
	if existing, err := s.repo.FindByPaymentRefAndListing(ctx, input.PaymentRef, input.ListingID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking payment reference")
	} else if existing != nil {
		return existing, nil
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.guard.WithTx(tx).Reserve(ctx, input.ListingID); err != nil {
			return err
		}

		listing, err := s.listings.WithTx(tx).FindByID(ctx, input.ListingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
		}

		seller, err := s.users.WithTx(tx).FindByID(ctx, listing.SellerID)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "seller could not be resolved")
		}

		breakdown, err := s.fees.Compute(listing.PriceCents, input.Quantity)
		if err != nil {
			return err
		}

		row := &models.Order{
			OrderNumber:         s.orderNumber(),
			BuyerID:             input.BuyerID,
			SellerID:            seller.ID,
			ListingID:           input.ListingID,
			Quantity:            input.Quantity,
			UnitPriceCents:      breakdown.UnitPriceCents,
			TotalCents:          breakdown.TotalCents,
			PlatformFeeCents:    breakdown.PlatformFeeCents,
			SellerEarningsCents: breakdown.SellerEarningsCents,
			Status:              enums.OrderStatusPaid,
			ReturnStatus:        enums.ReturnStatusNone,
			ShippingAddress:     input.ShippingAddress,
			PaymentRef:          input.PaymentRef,
			TrackingStatus:      enums.TrackingStatusUnknown,
		}

		created, err := s.repo.WithTx(tx).Create(ctx, row)
		if err != nil {
			// Collision on the generated number gets one fresh draw.
			if dbpkg.IsUniqueViolation(err, "ux_orders_order_number") {
				row.OrderNumber = s.orderNumber()
				created, err = s.repo.WithTx(tx).Create(ctx, row)
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inserting order")
			}
		}
		order = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Data: OrderCreatedEvent{
				OrderID:             created.ID,
				OrderNumber:         created.OrderNumber,
				BuyerID:             created.BuyerID,
				SellerID:            created.SellerID,
				ListingID:           created.ListingID,
				TotalCents:          created.TotalCents,
				PlatformFeeCents:    created.PlatformFeeCents,
				SellerEarningsCents: created.SellerEarningsCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.pipeline.IncOrdersCreated()
	s.bumpSellerTotals(ctx, order)

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

// bumpSellerTotals updates dashboard aggregates. Failures are logged and
// swallowed; the counters carry no transactional guarantee.
func (s *service) bumpSellerTotals(ctx context.Context, order *models.Order) {
	if err := s.users.IncrementSellerTotals(ctx, order.SellerID, 1, order.TotalCents); err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "failed to update seller totals", err)
	}
}

func (s *service) GetBuyerOrder(ctx context.Context, orderID, buyerID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindForBuyer(ctx, orderID, buyerID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	return s.repo.ListByBuyer(ctx, buyerID, params)
}

func (s *service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	return s.repo.ListBySeller(ctx, sellerID, params)
}

// generateOrderNumber builds a human-readable order number. Collisions
// are possible; the unique index plus a single retry closes them.
func generateOrderNumber() string {
	return fmt.Sprintf("%s-%s-%06d",
		orderNumberPrefix,
		time.Now().UTC().Format("20060102150405"),
		rand.IntN(1000000),
	)
}
