package pricing

// Line is an equipment selection on a quote. UnitPrice is copied from the catalog when
// the line is added and is never looked up again.
type Line struct {
	EquipmentID   string `json:"equipmentId"`
	Name          string `json:"name"`
	UnitPrice     Money  `json:"unitPrice"`
	Quantity      int    `json:"quantity"`
	FirstUnitFree bool   `json:"firstUnitFree"`
}

// BilledQuantity returns the number of units invoiced for the line. The free unit only
// applies when more than one unit is ordered: a single unit is always billed.
func (l Line) BilledQuantity() int {
	qty := l.Quantity
	if qty < 1 {
		qty = 1
	}
	if l.FirstUnitFree && qty > 1 {
		return qty - 1
	}
	return qty
}

// NormalizedLine is a line with its billable quantity and pre-tax total resolved.
type NormalizedLine struct {
	Line
	EffectiveQuantity int   `json:"effectiveQuantity"`
	TotalHT           Money `json:"totalHT"`
}

// NormalizeLines resolves billable quantities and returns the equipment subtotal HT.
func NormalizeLines(lines []Line) ([]NormalizedLine, Money) {
	out := make([]NormalizedLine, 0, len(lines))
	subtotal := Zero
	for _, l := range lines {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		l.UnitPrice = nonNegative(l.UnitPrice)
		qty := l.BilledQuantity()
		total := l.UnitPrice.MulInt(qty)
		out = append(out, NormalizedLine{Line: l, EffectiveQuantity: qty, TotalHT: total})
		subtotal = subtotal.Add(total)
	}
	return out, subtotal
}
