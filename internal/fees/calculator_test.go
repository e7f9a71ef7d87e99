package fees

import (
	"testing"

	"github.com/canvasly/canvasly-backend/pkg/config"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(config.FeeConfig{PlatformFeeCents: 1000, Currency: "usd"})
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	return calc
}

func TestComputeStandardSplit(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	// $100 listing, quantity 1 -> $10 fee, $90 to the seller.
	got, err := calc.Compute(10000, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.TotalCents != 10000 {
		t.Fatalf("total = %d, want 10000", got.TotalCents)
	}
	if got.PlatformFeeCents != 1000 {
		t.Fatalf("fee = %d, want 1000", got.PlatformFeeCents)
	}
	if got.SellerEarningsCents != 9000 {
		t.Fatalf("earnings = %d, want 9000", got.SellerEarningsCents)
	}
}

func TestComputeInvariantsHold(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	cases := []struct {
		unit int64
		qty  int
	}{
		{10000, 1},
		{150, 3},
		{999999, 7},
		{1, 1},
	}
	for _, tc := range cases {
		got, err := calc.Compute(tc.unit, tc.qty)
		if err != nil {
			t.Fatalf("compute(%d, %d): %v", tc.unit, tc.qty, err)
		}
		if got.TotalCents != tc.unit*int64(tc.qty) {
			t.Errorf("compute(%d, %d): total %d != unit*qty", tc.unit, tc.qty, got.TotalCents)
		}
		if got.PlatformFeeCents+got.SellerEarningsCents != got.TotalCents {
			t.Errorf("compute(%d, %d): fee %d + earnings %d != total %d",
				tc.unit, tc.qty, got.PlatformFeeCents, got.SellerEarningsCents, got.TotalCents)
		}
	}
}

func TestComputeNegativeEarningsPreserved(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	// A $5 sale is below the $10 platform fee; the split must not clamp.
	got, err := calc.Compute(500, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got.SellerEarningsCents != -500 {
		t.Fatalf("earnings = %d, want -500", got.SellerEarningsCents)
	}
	if got.PlatformFeeCents+got.SellerEarningsCents != got.TotalCents {
		t.Fatalf("split does not sum to total")
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	calc := newTestCalculator(t)

	if _, err := calc.Compute(0, 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero price: expected validation error, got %v", err)
	}
	if _, err := calc.Compute(-100, 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("negative price: expected validation error, got %v", err)
	}
	if _, err := calc.Compute(100, 0); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero quantity: expected validation error, got %v", err)
	}
}

func TestNewCalculatorRejectsNegativeFee(t *testing.T) {
	t.Parallel()
	if _, err := NewCalculator(config.FeeConfig{PlatformFeeCents: -1}); err == nil {
		t.Fatalf("expected error for negative fee")
	}
}
