package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/listings"
	"github.com/canvasly/canvasly-backend/internal/orders"
	"github.com/canvasly/canvasly-backend/internal/users"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/metrics"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/shippo"
	"github.com/canvasly/canvasly-backend/pkg/types"
)

// Carriers attach this code to shipment messages when the marketplace
// account has not registered with them; those rates cannot be bought.
const registrationRequiredCode = "carrier_account_registration_required"

// defaultParcel stands in for listings without stored dimensions.
var defaultParcel = types.Parcel{LengthIn: 20, WidthIn: 16, HeightIn: 4, WeightOz: 48}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type carrierAPI interface {
	GetRates(ctx context.Context, from, to shippo.AddressInput, parcels []shippo.ParcelInput) (*shippo.RateQuote, error)
	BuyLabel(ctx context.Context, rateID string) (*shippo.Transaction, error)
	GetTrack(ctx context.Context, carrier, trackingNumber string) (*shippo.Track, error)
}

// Service covers shipping-side order fulfillment.
type Service interface {
	GetRates(ctx context.Context, input RatesInput) (*RatesResult, error)
	PurchaseLabel(ctx context.Context, input PurchaseLabelInput) (*models.Order, error)
	PollTracking(ctx context.Context, orderID uuid.UUID) (*TrackingResult, error)
}

// RatesInput quotes shipping for a set of one seller's listings.
type RatesInput struct {
	SellerID    uuid.UUID
	Destination types.Address
	ListingIDs  []uuid.UUID
}

// RatesResult carries usable rates plus carrier diagnostics.
type RatesResult struct {
	Rates    []shippo.Rate
	Messages []shippo.Message
}

// PurchaseLabelInput buys one label for one order.
type PurchaseLabelInput struct {
	OrderID  uuid.UUID
	RateID   string
	SellerID uuid.UUID
}

// TrackingResult is the normalized tracking state for an order.
type TrackingResult struct {
	OrderID uuid.UUID
	Status  enums.TrackingStatus
	ETA     *time.Time
	Detail  string
}

// OrderShippedEvent is appended to the outbox when a label is bought.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url"`
}

// ServiceParams configure the fulfillment service.
type ServiceParams struct {
	Orders   orders.Repository
	Listings listings.Repository
	Users    users.Repository
	Carrier  carrierAPI
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Pipeline *metrics.PipelineMetrics
	Now      func() time.Time
}

type service struct {
	orders   orders.Repository
	listings listings.Repository
	users    users.Repository
	carrier  carrierAPI
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	pipeline *metrics.PipelineMetrics
	now      func() time.Time
}

// NewService builds the fulfillment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier client required")
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
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		orders:   params.Orders,
		listings: params.Listings,
		users:    params.Users,
		carrier:  params.Carrier,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		pipeline: params.Pipeline,
		now:      now,
	}, nil
}

// GetRates quotes shipping from the seller's origin address to the
// destination. A seller without an origin address gets an empty rate
// list with an explanatory message, not an error.
func (s *service) GetRates(ctx context.Context, input RatesInput) (*RatesResult, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if len(input.ListingIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one listing required")
	}
	if input.Destination.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination address required")
	}

	seller, err := s.users.FindByID(ctx, input.SellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving seller")
	}
	if seller.OriginAddress == nil || seller.OriginAddress.IsZero() {
		return &RatesResult{
			Messages: []shippo.Message{{Text: "seller has no origin address on file"}},
		}, nil
	}

	rows, err := s.listings.FindByIDs(ctx, input.ListingIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listings")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listings not found")
	}

	parcels := make([]shippo.ParcelInput, 0, len(rows))
	for _, listing := range rows {
		parcel := defaultParcel
		if listing.Parcel != nil {
			parcel = *listing.Parcel
		}
		parcels = append(parcels, parcelInput(parcel))
	}

	quote, err := s.carrier.GetRates(ctx, addressInput(*seller.OriginAddress), addressInput(input.Destination), parcels)
	if err != nil {
		return nil, err
	}

	return &RatesResult{
		Rates:    filterRegistrationFlagged(quote.Rates, quote.Messages),
		Messages: quote.Messages,
	}, nil
}

// PurchaseLabel buys the selected rate for a paid order and moves it to
// shipped. One label per order: a second purchase attempt fails.
func (s *service) PurchaseLabel(ctx context.Context, input PurchaseLabelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil || input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and seller id required")
	}
	if input.RateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate id required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.SellerID != input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another seller")
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("label cannot be purchased for order in status %q", order.Status))
	}
	if order.TrackingNumber != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already has a shipping label")
	}

	// Label purchases are paid API calls; let an in-flight one finish
	// and record its result even if the caller disconnects.
	txn, err := s.carrier.BuyLabel(context.WithoutCancel(ctx), input.RateID)
	if err != nil {
		return nil, err
	}

	costCents := rateAmountCents(txn.Rate.Amount)
	shippedAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":              enums.OrderStatusShipped,
			"shipped_at":          shippedAt,
			"carrier":             txn.Rate.Provider,
			"tracking_number":     txn.TrackingNumber,
			"tracking_url":        txn.TrackingURL,
			"label_url":           txn.LabelURL,
			"shipping_txn_id":     txn.ObjectID,
			"shipping_cost_cents": costCents,
			"tracking_status":     enums.TrackingStatusPreTransit,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording label purchase")
		}

		// Buyer notification rides the outbox; a failure here is logged
		// and must not void a label that was already paid for.
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: OrderShippedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				BuyerID:        order.BuyerID,
				Carrier:        txn.Rate.Provider,
				TrackingNumber: txn.TrackingNumber,
				TrackingURL:    txn.TrackingURL,
			},
		}); err != nil {
			s.logg.Error(ctx, "shipped notification enqueue failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusShipped
	order.ShippedAt = &shippedAt
	order.Carrier = &txn.Rate.Provider
	order.TrackingNumber = &txn.TrackingNumber
	order.TrackingURL = &txn.TrackingURL
	order.LabelURL = &txn.LabelURL
	order.ShippingTxnID = &txn.ObjectID
	order.ShippingCostCents = &costCents
	order.TrackingStatus = enums.TrackingStatusPreTransit

	s.pipeline.IncLabelsPurchased()
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "shipping label purchased")
	return order, nil
}

// PollTracking refreshes the order's tracking state from the carrier.
// Carrier-side failures degrade to the last persisted status so
// tracking display never blocks.
func (s *service) PollTracking(ctx context.Context, orderID uuid.UUID) (*TrackingResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.Carrier == nil || order.TrackingNumber == nil {
		return &TrackingResult{OrderID: order.ID, Status: order.TrackingStatus}, nil
	}

	track, err := s.carrier.GetTrack(ctx, *order.Carrier, *order.TrackingNumber)
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Warn(logCtx, "tracking poll failed; serving persisted status")
		return &TrackingResult{OrderID: order.ID, Status: order.TrackingStatus}, nil
	}

	result := &TrackingResult{OrderID: order.ID, Status: order.TrackingStatus, ETA: track.ETA}
	if track.TrackingStatus != nil {
		result.Status = enums.NormalizeTrackingStatus(track.TrackingStatus.Status)
		result.Detail = track.TrackingStatus.StatusDetails
	}

	if result.Status != order.TrackingStatus {
		if err := s.orders.UpdateTrackingStatus(ctx, order.ID, result.Status); err != nil {
			s.logg.Error(ctx, "persisting tracking status failed", err)
		}
	}
	return result, nil
}

// filterRegistrationFlagged drops rates from providers flagged as
// needing carrier registration, unless that would leave nothing to
// offer; then the unfiltered list is returned as a degraded fallback.
func filterRegistrationFlagged(rates []shippo.Rate, messages []shippo.Message) []shippo.Rate {
	flagged := map[string]bool{}
	for _, msg := range messages {
		if msg.Code == registrationRequiredCode && msg.Source != "" {
			flagged[msg.Source] = true
		}
	}
	if len(flagged) == 0 {
		return rates
	}
	usable := make([]shippo.Rate, 0, len(rates))
	for _, rate := range rates {
		if !flagged[rate.Provider] {
			usable = append(usable, rate)
		}
	}
	if len(usable) == 0 {
		return rates
	}
	return usable
}

func addressInput(a types.Address) shippo.AddressInput {
	return shippo.AddressInput{
		Name:    a.Name,
		Street1: a.Street1,
		Street2: a.Street2,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
		Phone:   a.Phone,
	}
}

func parcelInput(p types.Parcel) shippo.ParcelInput {
	return shippo.ParcelInput{
		Length:       formatDim(p.LengthIn),
		Width:        formatDim(p.WidthIn),
		Height:       formatDim(p.HeightIn),
		DistanceUnit: "in",
		Weight:       formatDim(p.WeightOz),
		MassUnit:     "oz",
	}
}

func formatDim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// rateAmountCents converts the carrier's decimal amount string to
// cents, rounding half up. Unparseable amounts record as zero.
func rateAmountCents(amount string) int64 {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
