package quote

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// DefaultEngagementMonths is what the form preselects.
const DefaultEngagementMonths = 12

// Quote is a persisted commercial proposal. Formula and line prices are copies taken at
// creation time; later catalog edits never change an existing quote.
type Quote struct {
	ID                  uuid.UUID
	Reference           string
	CompanyID           string
	InterlocutorID      string
	CreatedBy           string
	Formula             *pricing.Formula
	Lines               []pricing.Line
	DiscountPercentage  decimal.Decimal
	TaxRate             decimal.Decimal
	EngagementMonths    int
	OneTimeInstallation bool
	CreatedAt           time.Time
}

// Input rebuilds the pricing input from the stored snapshot.
func (q Quote) Input() pricing.Input {
	return pricing.Input{
		Formula:             q.Formula,
		Lines:               q.Lines,
		DiscountPercentage:  q.DiscountPercentage,
		TaxRate:             q.TaxRate,
		EngagementMonths:    q.EngagementMonths,
		OneTimeInstallation: q.OneTimeInstallation,
	}
}

// Summary prices the quote.
func (q Quote) Summary() pricing.Summary {
	return pricing.Calculate(q.Input())
}

// FormulaName returns the snapshotted formula name, or "" when none was chosen.
func (q Quote) FormulaName() string {
	if q.Formula == nil {
		return ""
	}
	return q.Formula.Name
}

// Detail is the read model served by the detail endpoint and the exports.
type Detail struct {
	ID                  string              `json:"id"`
	Reference           string              `json:"reference"`
	CompanyID           string              `json:"companyId"`
	InterlocutorID      string              `json:"interlocutorId,omitempty"`
	CreatedBy           string              `json:"createdBy,omitempty"`
	Formula             *pricing.Formula    `json:"formula"`
	Lines               []pricing.Line      `json:"lines"`
	DiscountPercentage  string              `json:"discountPercentage"`
	TaxRate             string              `json:"taxRate"`
	EngagementMonths    int                 `json:"engagementMonths"`
	OneTimeInstallation bool                `json:"oneTimeInstallation"`
	CreatedAt           time.Time           `json:"createdAt"`
	Summary             pricing.SummaryView `json:"summary"`
}

// ListItem is one row of the quote list.
type ListItem struct {
	ID                 string    `json:"id"`
	Reference          string    `json:"reference"`
	CompanyID          string    `json:"companyId"`
	FormulaName        string    `json:"formulaName"`
	EngagementMonths   int       `json:"engagementMonths"`
	FirstMonthTTC      string    `json:"firstMonthTTC"`
	TotalEngagementTTC string    `json:"totalEngagementTTC"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ListItem
	Total int64
	Page  int
	Limit int
}

func toDetail(q Quote) Detail {
	lines := q.Lines
	if lines == nil {
		lines = []pricing.Line{}
	}
	return Detail{
		ID:                  q.ID.String(),
		Reference:           q.Reference,
		CompanyID:           q.CompanyID,
		InterlocutorID:      q.InterlocutorID,
		CreatedBy:           q.CreatedBy,
		Formula:             q.Formula,
		Lines:               lines,
		DiscountPercentage:  q.DiscountPercentage.String(),
		TaxRate:             q.TaxRate.String(),
		EngagementMonths:    q.EngagementMonths,
		OneTimeInstallation: q.OneTimeInstallation,
		CreatedAt:           q.CreatedAt,
		Summary:             q.Summary().View(),
	}
}

func toListItem(q Quote) ListItem {
	s := q.Summary()
	return ListItem{
		ID:                 q.ID.String(),
		Reference:          q.Reference,
		CompanyID:          q.CompanyID,
		FormulaName:        q.FormulaName(),
		EngagementMonths:   q.EngagementMonths,
		FirstMonthTTC:      s.FirstMonth.TTC.Display(),
		TotalEngagementTTC: s.TotalEngagement.TTC.Display(),
		CreatedAt:          q.CreatedAt,
	}
}
