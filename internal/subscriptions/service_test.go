package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/canvasly/canvasly-backend/pkg/db/models"
	"github.com/canvasly/canvasly-backend/pkg/enums"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
	"github.com/canvasly/canvasly-backend/pkg/logger"
	"github.com/canvasly/canvasly-backend/pkg/outbox"
)

type stubTxRunner struct {
	db *gorm.DB
}

func (r stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (o *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type subsFixture struct {
	db      *gorm.DB
	service Service
	outbox  *recordingOutbox
	now     time.Time
}

func newSubsFixture(t *testing.T) *subsFixture {
	t.Helper()
	dsn := "file:subs_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SubscriptionPlan{}, &models.Subscription{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	ob := &recordingOutbox{}
	logg := logger.New(logger.Options{ServiceName: "subs-test", Level: zerolog.ErrorLevel})
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Tx:     stubTxRunner{db: db},
		Outbox: ob,
		Logger: logg,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &subsFixture{db: db, service: svc, outbox: ob, now: now}
}

func (f *subsFixture) seedPlan(t *testing.T, status enums.PlanStatus) models.SubscriptionPlan {
	t.Helper()
	plan := models.SubscriptionPlan{
		ID:           "plan_" + uuid.NewString(),
		Name:         "Studio",
		Status:       status,
		MonthlyPrice: decimal.NewFromFloat(9.99),
		YearlyPrice:  decimal.NewFromFloat(99.00),
		CurrencyCode: "USD",
	}
	if err := f.db.Create(&plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func TestActivateMonthlyTerm(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	sub, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_abc",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if !sub.EndDate.Equal(f.now.AddDate(0, 1, 0)) {
		t.Fatalf("end date = %s, want now + 1 month", sub.EndDate)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSubscriptionActivated {
		t.Fatalf("expected one activation event, got %+v", f.outbox.events)
	}
}

func TestActivateYearlyTerm(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)

	sub, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        uuid.New(),
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodYearly,
		PaymentRef:    "sub_year",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !sub.EndDate.Equal(f.now.AddDate(1, 0, 0)) {
		t.Fatalf("end date = %s, want now + 1 year", sub.EndDate)
	}
}

func TestActivateSupersedesPriorTerm(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	first, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_first",
	})
	if err != nil {
		t.Fatalf("first activate: %v", err)
	}

	second, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_second",
	})
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}

	var prior models.Subscription
	if err := f.db.First(&prior, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load prior: %v", err)
	}
	if prior.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("prior status = %s, want expired", prior.Status)
	}

	var activeCount int64
	f.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", user, enums.SubscriptionStatusActive).
		Count(&activeCount)
	if activeCount != 1 {
		t.Fatalf("active rows = %d, want 1", activeCount)
	}
	if second.StartDate != prior.StartDate && second.ID == prior.ID {
		t.Fatalf("activation mutated the prior row")
	}
}

func TestActivateIdempotentByPaymentRef(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	input := ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_replayed",
	}
	first, err := f.service.Activate(context.Background(), input)
	if err != nil {
		t.Fatalf("first activate: %v", err)
	}
	second, err := f.service.Activate(context.Background(), input)
	if err != nil {
		t.Fatalf("replay activate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new subscription")
	}

	var count int64
	f.db.Model(&models.Subscription{}).Count(&count)
	if count != 1 {
		t.Fatalf("subscription count = %d, want 1", count)
	}
}

func TestActivateUnknownPlan(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)

	_, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        uuid.New(),
		PlanID:        "plan_missing",
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_x",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestActivateRetiredPlan(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusRetired)

	_, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        uuid.New(),
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_y",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected StateConflict, got %v", err)
	}
}

func TestCancelKeepsAccessUntilEndDate(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	sub, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_cancel",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := f.service.Cancel(context.Background(), user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var got models.Subscription
	if err := f.db.First(&got, "id = ?", sub.ID).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if got.AutoRenew {
		t.Fatalf("auto renew still set")
	}
	if got.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	// Historical dates are never shortened.
	if !got.EndDate.Equal(sub.EndDate) {
		t.Fatalf("cancel changed end date")
	}
}

func TestGetActiveAfterCancelKeepsAccess(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	sub, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_keep",
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := f.service.Cancel(context.Background(), user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// A month of paid access remains; the term must stay retrievable.
	got, err := f.service.GetActive(context.Background(), user)
	if err != nil {
		t.Fatalf("get active after cancel: %v", err)
	}
	if got.ID != sub.ID {
		t.Fatalf("retrieved id = %s, want %s", got.ID, sub.ID)
	}
	if got.AutoRenew {
		t.Fatalf("auto renew still set after cancel")
	}
	if !got.EndDate.Equal(sub.EndDate) {
		t.Fatalf("cancel shortened the term")
	}
}

func TestActivateSupersedesCancelledTerm(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)
	plan := f.seedPlan(t, enums.PlanStatusActive)
	user := uuid.New()

	first, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodYearly,
		PaymentRef:    "sub_old_year",
	})
	if err != nil {
		t.Fatalf("first activate: %v", err)
	}
	if err := f.service.Cancel(context.Background(), user); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second, err := f.service.Activate(context.Background(), ActivateInput{
		UserID:        user,
		PlanID:        plan.ID,
		BillingPeriod: enums.BillingPeriodMonthly,
		PaymentRef:    "sub_new_month",
	})
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}

	var prior models.Subscription
	if err := f.db.First(&prior, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load prior: %v", err)
	}
	if prior.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("cancelled term status = %s, want expired", prior.Status)
	}

	// The cancelled yearly term ends later than the new monthly one;
	// retrieval must still resolve to the new term.
	got, err := f.service.GetActive(context.Background(), user)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("retrieved id = %s, want new term %s", got.ID, second.ID)
	}
}

func TestCancelWithoutActiveTerm(t *testing.T) {
	t.Parallel()
	f := newSubsFixture(t)

	err := f.service.Cancel(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
