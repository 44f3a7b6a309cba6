package pricing

// Option is a priced add-on attached to a formula.
type Option struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	PriceHT Money  `json:"priceHT"`
}

// Formula is a snapshot of a pricing bundle as it was when the quote was made.
type Formula struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	InstallationPrice Money    `json:"installationPrice"`
	MaintenancePrice  Money    `json:"maintenancePrice"`
	HotlinePrice      Money    `json:"hotlinePrice"`
	Options           []Option `json:"options"`
}

// FormulaCost is the aggregated value of a formula.
type FormulaCost struct {
	// TotalHT is installation + maintenance + hotline + options, for display only.
	TotalHT Money
	// RecurringHT is what repeats every billing period.
	RecurringHT    Money
	InstallationHT Money
	OptionsHT      Money
}

// AggregateFormula sums the fixed components of f. When installation is billed once it
// is taken out of the recurring amount. A nil formula costs nothing.
func AggregateFormula(f *Formula, oneTimeInstallation bool) FormulaCost {
	if f == nil {
		return FormulaCost{}
	}
	installation := nonNegative(f.InstallationPrice)
	options := Zero
	for _, opt := range f.Options {
		options = options.Add(nonNegative(opt.PriceHT))
	}
	total := installation.
		Add(nonNegative(f.MaintenancePrice)).
		Add(nonNegative(f.HotlinePrice)).
		Add(options)
	recurring := total
	if oneTimeInstallation {
		recurring = total.Sub(installation)
	}
	return FormulaCost{
		TotalHT:        total,
		RecurringHT:    recurring,
		InstallationHT: installation,
		OptionsHT:      options,
	}
}
