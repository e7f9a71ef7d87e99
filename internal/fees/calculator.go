package fees

import (
	"fmt"

	"github.com/canvasly/canvasly-backend/pkg/config"
	pkgerrors "github.com/canvasly/canvasly-backend/pkg/errors"
)

// Breakdown is the revenue split for one order line. All amounts are
// integer cents. SellerEarningsCents may be negative when the total is
// below the platform fee; downstream accounting relies on
// PlatformFeeCents + SellerEarningsCents == TotalCents holding exactly.
type Breakdown struct {
	UnitPriceCents      int64
	Quantity            int
	TotalCents          int64
	PlatformFeeCents    int64
	SellerEarningsCents int64
}

// Calculator computes order totals under the flat per-line fee policy.
type Calculator struct {
	platformFeeCents int64
	currency         string
}

// NewCalculator builds a calculator from the configured fee policy.
func NewCalculator(cfg config.FeeConfig) (*Calculator, error) {
	if cfg.PlatformFeeCents < 0 {
		return nil, fmt.Errorf("platform fee must not be negative")
	}
	return &Calculator{
		platformFeeCents: cfg.PlatformFeeCents,
		currency:         cfg.Currency,
	}, nil
}

// Currency reports the configured settlement currency.
func (c *Calculator) Currency() string {
	return c.currency
}

// Compute returns the fee breakdown for a line of quantity items at
// unitPriceCents each.
func (c *Calculator) Compute(unitPriceCents int64, quantity int) (Breakdown, error) {
	if unitPriceCents <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be positive")
	}
	if quantity <= 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	total := unitPriceCents * int64(quantity)
	return Breakdown{
		UnitPriceCents:      unitPriceCents,
		Quantity:            quantity,
		TotalCents:          total,
		PlatformFeeCents:    c.platformFeeCents,
		SellerEarningsCents: total - c.platformFeeCents,
	}, nil
}
