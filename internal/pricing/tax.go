package pricing

import "github.com/shopspring/decimal"

// DefaultTaxRate is the standard VAT percentage applied when a quote does not set one.
var DefaultTaxRate = decimal.NewFromInt(20)

// ToTTC converts a pre-tax amount into a tax-inclusive one.
func ToTTC(ht Money, rate decimal.Decimal) Money {
	return ht.Add(ht.Percent(rate))
}

// ToHT reverses ToTTC. Division is carried to decimal.DivisionPrecision digits so
// the round trip is exact to the cent.
func ToHT(ttc Money, rate decimal.Decimal) Money {
	factor := decimal.NewFromInt(1).Add(rate.Div(hundred))
	if factor.IsZero() {
		return ttc
	}
	return Money{d: ttc.d.Div(factor)}
}
