package quote

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// Raw is a form value kept exactly as typed. JSON strings and numbers are both accepted;
// conversion happens through the pricing parsers only.
type Raw string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*r = Raw(s)
	return nil
}

func (r Raw) String() string { return strings.TrimSpace(string(r)) }

// Bool reads a checkbox-style value. Blank and unrecognised values yield def.
func (r Raw) Bool(def bool) bool {
	v, ok := parseFlag(r.String())
	if !ok {
		return def
	}
	return v
}

func parseFlag(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// LineForm is one equipment row of the quote form. UnitPrice overrides the catalog price
// when set.
type LineForm struct {
	EquipmentID   string `json:"equipmentId" validate:"required,uuid"`
	UnitPrice     Raw    `json:"unitPrice" validate:"omitempty,amount"`
	Quantity      Raw    `json:"quantity" validate:"required,quantity"`
	FirstUnitFree Raw    `json:"firstUnitFree" validate:"omitempty,flag"`
}

// Form is the quote editor payload, shared by the live preview and the submission.
type Form struct {
	CompanyID           string     `json:"companyId" validate:"required"`
	InterlocutorID      string     `json:"interlocutorId"`
	FormulaID           string     `json:"formulaId" validate:"required,uuid"`
	Lines               []LineForm `json:"lines" validate:"dive"`
	Discount            Raw        `json:"discount" validate:"omitempty,discount"`
	TaxRate             Raw        `json:"taxRate" validate:"omitempty,taxrate"`
	EngagementMonths    Raw        `json:"engagementMonths" validate:"required,engagement"`
	OneTimeInstallation Raw        `json:"oneTimeInstallation" validate:"omitempty,flag"`
}

// DiscountPercentage coerces the discount field.
func (f Form) DiscountPercentage() decimal.Decimal {
	return pricing.ParsePercent(f.Discount.String())
}

// TaxRateOr coerces the tax rate field, falling back to def when it is blank. Text that
// is not a number reads as 0%.
func (f Form) TaxRateOr(def decimal.Decimal) decimal.Decimal {
	if f.TaxRate.String() == "" {
		return def
	}
	return pricing.ParsePercent(f.TaxRate.String())
}

// Engagement coerces the engagement field; anything outside the offered durations falls
// back to DefaultEngagementMonths.
func (f Form) Engagement() int {
	n, err := strconv.Atoi(f.EngagementMonths.String())
	if err != nil || !pricing.IsAllowedEngagement(n) {
		return DefaultEngagementMonths
	}
	return n
}

// InstallationOnce reports the installation policy. It defaults to billing once.
func (f Form) InstallationOnce() bool {
	return f.OneTimeInstallation.Bool(true)
}

// EquipmentIDs lists the distinct equipment referenced by the lines, in order.
func (f Form) EquipmentIDs() []string {
	seen := make(map[string]struct{}, len(f.Lines))
	ids := make([]string, 0, len(f.Lines))
	for _, l := range f.Lines {
		id := strings.TrimSpace(l.EquipmentID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// EquipmentInfo is the catalog data a line needs.
type EquipmentInfo struct {
	Name    string
	PriceHT pricing.Money
}

// ToInput converts the form into a pricing input. Lines whose equipment is absent from
// catalog are dropped; a nil formula prices as zero.
func (f Form) ToInput(formula *pricing.Formula, catalog map[string]EquipmentInfo, defaultTax decimal.Decimal) pricing.Input {
	lines := make([]pricing.Line, 0, len(f.Lines))
	for _, l := range f.Lines {
		id := strings.TrimSpace(l.EquipmentID)
		info, ok := catalog[id]
		if !ok {
			continue
		}
		price := info.PriceHT
		if l.UnitPrice.String() != "" {
			price = pricing.ParseMoney(l.UnitPrice.String())
		}
		lines = append(lines, pricing.Line{
			EquipmentID:   id,
			Name:          info.Name,
			UnitPrice:     price,
			Quantity:      pricing.ParseQuantity(l.Quantity.String()),
			FirstUnitFree: l.FirstUnitFree.Bool(false),
		})
	}
	return pricing.Input{
		Formula:             formula,
		Lines:               lines,
		DiscountPercentage:  f.DiscountPercentage(),
		TaxRate:             f.TaxRateOr(defaultTax),
		EngagementMonths:    f.Engagement(),
		OneTimeInstallation: f.InstallationOnce(),
	}
}
