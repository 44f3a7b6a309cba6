package pricing

import (
	"slices"

	"github.com/shopspring/decimal"
)

// EngagementDurations lists the commitment lengths, in months, offered on a quote.
var EngagementDurations = []int{6, 12, 24, 36}

// IsAllowedEngagement reports whether months is one of EngagementDurations.
func IsAllowedEngagement(months int) bool {
	return slices.Contains(EngagementDurations, months)
}

// Input is the full snapshot of what drives a quote price. Callers rebuild it on every
// change and call Calculate again; nothing is carried between calls.
type Input struct {
	Formula             *Formula
	Lines               []Line
	DiscountPercentage  decimal.Decimal
	TaxRate             decimal.Decimal
	EngagementMonths    int
	OneTimeInstallation bool
}

// Amount pairs a pre-tax figure with its tax-inclusive counterpart.
type Amount struct {
	HT  Money
	TTC Money
}

// Summary is the computed billing view of a quote. It is derived, never stored.
type Summary struct {
	Formula             FormulaCost
	Lines               []NormalizedLine
	EquipmentSubtotalHT Money
	Discount            Discount
	DiscountTTC         Money
	Recurring           Amount
	FirstMonth          Amount
	TotalEngagement     Amount
	TaxRate             decimal.Decimal
	EngagementMonths    int
	OneTimeInstallation bool
}

// Calculate prices a quote. It is a total function: missing formula, empty lines and
// zero rates all produce a valid (possibly zero) summary.
//
// The three billing moments are views of the same figures:
//   - recurring: (recurring formula + equipment) minus discount
//   - first month: recurring, plus installation when it is billed once
//   - engagement: recurring × months, plus installation once when it is billed once
func Calculate(in Input) Summary {
	months := in.EngagementMonths
	if months < 0 {
		months = 0
	}
	rate := in.TaxRate
	if rate.IsNegative() {
		rate = decimal.Zero
	}

	formula := AggregateFormula(in.Formula, in.OneTimeInstallation)
	lines, equipment := NormalizeLines(in.Lines)
	discount := ApplyDiscount(formula.RecurringHT.Add(equipment), in.DiscountPercentage)

	recurring := discount.FinalHT
	oneTime := Zero
	if in.OneTimeInstallation {
		oneTime = formula.InstallationHT
	}
	firstMonth := recurring.Add(oneTime)
	total := recurring.MulInt(months).Add(oneTime)

	return Summary{
		Formula:             formula,
		Lines:               lines,
		EquipmentSubtotalHT: equipment,
		Discount:            discount,
		DiscountTTC:         ToTTC(discount.AmountHT, rate),
		Recurring:           Amount{HT: recurring, TTC: ToTTC(recurring, rate)},
		FirstMonth:          Amount{HT: firstMonth, TTC: ToTTC(firstMonth, rate)},
		TotalEngagement:     Amount{HT: total, TTC: ToTTC(total, rate)},
		TaxRate:             rate,
		EngagementMonths:    months,
		OneTimeInstallation: in.OneTimeInstallation,
	}
}
