package pricing

// AmountView is the rendered form of an Amount.
type AmountView struct {
	HT  string `json:"ht"`
	TTC string `json:"ttc"`
}

// LineView is the rendered form of a NormalizedLine.
type LineView struct {
	EquipmentID       string `json:"equipmentId"`
	Name              string `json:"name"`
	UnitPriceHT       string `json:"unitPriceHT"`
	Quantity          int    `json:"quantity"`
	FirstUnitFree     bool   `json:"firstUnitFree"`
	EffectiveQuantity int    `json:"effectiveQuantity"`
	TotalHT           string `json:"totalHT"`
}

// SummaryView is what both the live preview and the quote detail render. Every amount is
// rounded half-up to two decimals here and nowhere else.
type SummaryView struct {
	FormulaTotalHT      string     `json:"formulaTotalHT"`
	RecurringFormulaHT  string     `json:"recurringFormulaHT"`
	InstallationHT      string     `json:"installationHT"`
	OptionsHT           string     `json:"optionsHT"`
	Lines               []LineView `json:"lines"`
	EquipmentSubtotalHT string     `json:"equipmentSubtotalHT"`
	DiscountBaseHT      string     `json:"discountBaseHT"`
	DiscountPercentage  string     `json:"discountPercentage"`
	Discount            AmountView `json:"discount"`
	Recurring           AmountView `json:"recurring"`
	FirstMonth          AmountView `json:"firstMonth"`
	TotalEngagement     AmountView `json:"totalEngagement"`
	TaxRate             string     `json:"taxRate"`
	EngagementMonths    int        `json:"engagementMonths"`
	OneTimeInstallation bool       `json:"oneTimeInstallation"`
}

// View renders s for presentation.
func (s Summary) View() SummaryView {
	lines := make([]LineView, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, LineView{
			EquipmentID:       l.EquipmentID,
			Name:              l.Name,
			UnitPriceHT:       l.UnitPrice.Display(),
			Quantity:          l.Quantity,
			FirstUnitFree:     l.FirstUnitFree,
			EffectiveQuantity: l.EffectiveQuantity,
			TotalHT:           l.TotalHT.Display(),
		})
	}
	return SummaryView{
		FormulaTotalHT:      s.Formula.TotalHT.Display(),
		RecurringFormulaHT:  s.Formula.RecurringHT.Display(),
		InstallationHT:      s.Formula.InstallationHT.Display(),
		OptionsHT:           s.Formula.OptionsHT.Display(),
		Lines:               lines,
		EquipmentSubtotalHT: s.EquipmentSubtotalHT.Display(),
		DiscountBaseHT:      s.Discount.BaseHT.Display(),
		DiscountPercentage:  s.Discount.Percentage.String(),
		Discount:            AmountView{HT: s.Discount.AmountHT.Display(), TTC: s.DiscountTTC.Display()},
		Recurring:           viewAmount(s.Recurring),
		FirstMonth:          viewAmount(s.FirstMonth),
		TotalEngagement:     viewAmount(s.TotalEngagement),
		TaxRate:             s.TaxRate.String(),
		EngagementMonths:    s.EngagementMonths,
		OneTimeInstallation: s.OneTimeInstallation,
	}
}

func viewAmount(a Amount) AmountView {
	return AmountView{HT: a.HT.Display(), TTC: a.TTC.Display()}
}
