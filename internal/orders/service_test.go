package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/internal/fees"
	"github.com/canvasly/canvasly-backend/internal/inventory"
	"github.com/canvasly/canvasly-backend/internal/listings"
	"github.com/canvasly/canvasly-backend/internal/users"
	"github.com/canvasly/canvasly-backend/pkg/config"
	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
	"github.com/canvasly/canvasly-backend/pkg/pagination"
)

type stubTxRunner struct {
	db *gorm.DB
}

func (r stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (o *recordingOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

type ledgerFixture struct {
	db      *gorm.DB
	service Service
	outbox  *recordingOutbox
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Listing{}, &models.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	guard, err := inventory.NewGuard(db)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	calc, err := fees.NewCalculator(config.FeeConfig{PlatformFeeCents: 1000, Currency: "usd"})
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	ob := &recordingOutbox{}
	logg := logger.New(logger.Options{ServiceName: "orders-test", Level: zerolog.ErrorLevel})

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(db),
		Listings: listings.NewRepository(db),
		Users:    users.NewRepository(db),
		Guard:    guard,
		Fees:     calc,
		Tx:       stubTxRunner{db: db},
		Outbox:   ob,
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &ledgerFixture{db: db, service: svc, outbox: ob}
}

func (f *ledgerFixture) seedSellerAndListing(t *testing.T, priceCents int64) (models.User, models.Listing) {
	t.Helper()
	seller := models.User{
		ID:          uuid.New(),
		ExternalID:  "ext_" + uuid.NewString(),
		Email:       "seller@example.com",
		DisplayName: "Seller",
	}
	if err := f.db.Create(&seller).Error; err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	listing := models.Listing{
		ID:         uuid.New(),
		SellerID:   seller.ID,
		Title:      "Blue Field Study",
		PriceCents: priceCents,
		Status:     enums.ListingStatusActive,
		InStock:    true,
	}
	if err := f.db.Create(&listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return seller, listing
}

func TestCreateOrderMoneyInvariants(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	_, listing := f.seedSellerAndListing(t, 10000)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "1 Main St, Springfield",
		PaymentRef:      "pi_" + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.TotalCents != 10000 {
		t.Fatalf("total = %d, want 10000", order.TotalCents)
	}
	if order.PlatformFeeCents != 1000 || order.SellerEarningsCents != 9000 {
		t.Fatalf("split = %d/%d, want 1000/9000", order.PlatformFeeCents, order.SellerEarningsCents)
	}
	if order.TotalCents != order.UnitPriceCents*int64(order.Quantity) {
		t.Fatalf("total != unit * quantity")
	}
	if order.PlatformFeeCents+order.SellerEarningsCents != order.TotalCents {
		t.Fatalf("fee + earnings != total")
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", order.Status)
	}
	if order.OrderNumber == "" {
		t.Fatalf("order number not generated")
	}

	var gotListing models.Listing
	if err := f.db.First(&gotListing, "id = ?", listing.ID).Error; err != nil {
		t.Fatalf("load listing: %v", err)
	}
	if gotListing.Status != enums.ListingStatusSold || gotListing.InStock {
		t.Fatalf("listing not reserved: %+v", gotListing)
	}

	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order_created event, got %+v", f.outbox.events)
	}
}

func TestCreateOrderUpdatesSellerTotals(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	seller, listing := f.seedSellerAndListing(t, 5000)

	if _, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_" + uuid.NewString(),
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	var got models.User
	if err := f.db.First(&got, "id = ?", seller.ID).Error; err != nil {
		t.Fatalf("load seller: %v", err)
	}
	if got.SalesCount != 1 || got.RevenueCents != 5000 {
		t.Fatalf("seller totals = %d/%d, want 1/5000", got.SalesCount, got.RevenueCents)
	}
}

func TestCreateOrderReplaySamePaymentRef(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	_, listing := f.seedSellerAndListing(t, 10000)

	input := CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_replayed",
	}
	first, err := f.service.CreateOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// A replayed confirmation returns the prior row, no new write.
	second, err := f.service.CreateOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a second order")
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("order count = %d, want 1", count)
	}
}

func TestCreateOrderUnavailableListing(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	_, listing := f.seedSellerAndListing(t, 10000)

	// First buyer takes the listing.
	if _, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_first",
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_second",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeListingUnavailable) {
		t.Fatalf("expected ListingUnavailable, got %v", err)
	}
}

func TestCreateOrderConcurrentBuyers(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	_, listing := f.seedSellerAndListing(t, 10000)

	const buyers = 4
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateOrder(context.Background(), CreateOrderInput{
				BuyerID:         uuid.New(),
				ListingID:       listing.ID,
				Quantity:        1,
				ShippingAddress: "addr",
				PaymentRef:      fmt.Sprintf("pi_racer_%d", i),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning buyer, got %d", wins)
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("order count = %d, want 1", count)
	}
}

func TestCreateOrderSellerMissing(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)

	// Listing whose seller row does not exist.
	listing := models.Listing{
		ID:         uuid.New(),
		SellerID:   uuid.New(),
		Title:      "Orphaned",
		PriceCents: 10000,
		Status:     enums.ListingStatusActive,
		InStock:    true,
	}
	if err := f.db.Create(&listing).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_orphan",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NotFound for unresolvable seller, got %v", err)
	}

	// The reservation must roll back with the failed order.
	var gotListing models.Listing
	if err := f.db.First(&gotListing, "id = ?", listing.ID).Error; err != nil {
		t.Fatalf("load listing: %v", err)
	}
	if gotListing.Status != enums.ListingStatusActive || !gotListing.InStock {
		t.Fatalf("reservation leaked outside failed transaction: %+v", gotListing)
	}
}

func TestCreateOrderNegativeEarningsAllowed(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	_, listing := f.seedSellerAndListing(t, 500)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID:         uuid.New(),
		ListingID:       listing.ID,
		Quantity:        1,
		ShippingAddress: "addr",
		PaymentRef:      "pi_cheap",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.SellerEarningsCents != -500 {
		t.Fatalf("earnings = %d, want -500", order.SellerEarningsCents)
	}
	if order.PlatformFeeCents+order.SellerEarningsCents != order.TotalCents {
		t.Fatalf("split does not sum to total")
	}

	// The negative split must survive the insert, not just the calculation.
	var persisted models.Order
	if err := f.db.First(&persisted, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if persisted.SellerEarningsCents != -500 {
		t.Fatalf("persisted earnings = %d, want -500", persisted.SellerEarningsCents)
	}
}

func TestListBuyerOrdersPaginates(t *testing.T) {
	t.Parallel()
	f := newLedgerFixture(t)
	buyer := uuid.New()

	for i := 0; i < 3; i++ {
		_, listing := f.seedSellerAndListing(t, 10000)
		if _, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
			BuyerID:         buyer,
			ListingID:       listing.ID,
			Quantity:        1,
			ShippingAddress: "addr",
			PaymentRef:      fmt.Sprintf("pi_page_%d", i),
		}); err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
	}

	page, err := f.service.ListBuyerOrders(context.Background(), buyer, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == nil {
		t.Fatalf("expected 2 items and a cursor, got %d items cursor=%v", len(page.Items), page.NextCursor)
	}
}
