package pricing

import (
	"slices"

	"github.com/shopspring/decimal"
)

// AllowedDiscounts lists the percentages offered by the quote form. The engine itself
// accepts any percentage.
var AllowedDiscounts = []int{0, 5, 10, 15, 20}

// IsAllowedDiscount reports whether pct is one of AllowedDiscounts.
func IsAllowedDiscount(pct int) bool {
	return slices.Contains(AllowedDiscounts, pct)
}

// Discount is the outcome of applying a percentage to the recurring base.
type Discount struct {
	BaseHT     Money
	Percentage decimal.Decimal
	AmountHT   Money
	FinalHT    Money
}

// ApplyDiscount takes pct percent off base. Out-of-range percentages are computed
// through unchanged.
func ApplyDiscount(base Money, pct decimal.Decimal) Discount {
	amount := Zero
	if !pct.IsZero() {
		amount = base.Percent(pct)
	}
	return Discount{
		BaseHT:     base,
		Percentage: pct,
		AmountHT:   amount,
		FinalHT:    base.Sub(amount),
	}
}
