package quote

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// Export content types.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type summaryRow struct {
	label string
	ht    string
	ttc   string
}

func summaryRows(s pricing.SummaryView) []summaryRow {
	return []summaryRow{
		{label: "Discount (" + s.DiscountPercentage + "%)", ht: s.Discount.HT, ttc: s.Discount.TTC},
		{label: "Monthly", ht: s.Recurring.HT, ttc: s.Recurring.TTC},
		{label: "First month", ht: s.FirstMonth.HT, ttc: s.FirstMonth.TTC},
		{label: fmt.Sprintf("Total over %d months", s.EngagementMonths), ht: s.TotalEngagement.HT, ttc: s.TotalEngagement.TTC},
	}
}

// ExportPDF renders the quote as a one-page A4 document.
func ExportPDF(d Detail) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).
		WithTopMargin(12).
		WithRightMargin(12).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
			Size:    7,
		}).
		Build()

	m := maroto.New(cfg)
	addPDFHeader(m, d)
	addPDFFormula(m, d)
	addPDFLines(m, d.Summary)
	addPDFSummary(m, d.Summary)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate quote pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

var (
	grey      = &props.Color{Red: 90, Green: 90, Blue: 90}
	headerBg  = &props.Cell{BackgroundColor: &props.Color{Red: 33, Green: 37, Blue: 41}}
	headerTxt = props.Text{Size: 8, Style: fontstyle.Bold, Color: &props.Color{Red: 255, Green: 255, Blue: 255}}
	cellLeft  = props.Text{Size: 8, Align: align.Left}
	cellRight = props.Text{Size: 8, Align: align.Right}
)

func addPDFHeader(m core.Maroto, d Detail) {
	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(text.New("Quote "+d.Reference, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center})),
		),
		row.New(7).Add(
			col.New(6).Add(text.New("Company: "+d.CompanyID, props.Text{Size: 9, Color: grey})),
			col.New(6).Add(text.New("Date: "+d.CreatedAt.Format("2006-01-02"), props.Text{Size: 9, Align: align.Right, Color: grey})),
		),
		row.New(4),
	)
}

func addPDFFormula(m core.Maroto, d Detail) {
	if d.Formula == nil {
		return
	}
	s := d.Summary
	right := headerTxt
	right.Align = align.Right
	m.AddRows(
		row.New(7).Add(
			col.New(8).Add(text.New("Formula "+d.Formula.Name, headerTxt)).WithStyle(headerBg),
			col.New(4).Add(text.New("HT", right)).WithStyle(headerBg),
		),
		row.New(6).Add(
			col.New(8).Add(text.New("Installation", cellLeft)),
			col.New(4).Add(text.New(s.InstallationHT, cellRight)),
		),
		row.New(6).Add(
			col.New(8).Add(text.New("Recurring services and options", cellLeft)),
			col.New(4).Add(text.New(s.RecurringFormulaHT, cellRight)),
		),
		row.New(4),
	)
}

func addPDFLines(m core.Maroto, s pricing.SummaryView) {
	if len(s.Lines) == 0 {
		return
	}
	right := headerTxt
	right.Align = align.Right
	m.AddRows(row.New(7).Add(
		col.New(6).Add(text.New("Equipment", headerTxt)).WithStyle(headerBg),
		col.New(2).Add(text.New("Unit HT", right)).WithStyle(headerBg),
		col.New(2).Add(text.New("Billed qty", right)).WithStyle(headerBg),
		col.New(2).Add(text.New("Total HT", right)).WithStyle(headerBg),
	))
	for _, l := range s.Lines {
		name := l.Name
		if l.FirstUnitFree && l.EffectiveQuantity < l.Quantity {
			name += " (first unit free)"
		}
		m.AddRows(row.New(6).Add(
			col.New(6).Add(text.New(name, cellLeft)),
			col.New(2).Add(text.New(l.UnitPriceHT, cellRight)),
			col.New(2).Add(text.New(fmt.Sprintf("%d / %d", l.EffectiveQuantity, l.Quantity), cellRight)),
			col.New(2).Add(text.New(l.TotalHT, cellRight)),
		))
	}
	m.AddRows(row.New(4))
}

func addPDFSummary(m core.Maroto, s pricing.SummaryView) {
	bold := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	right := headerTxt
	right.Align = align.Right
	m.AddRows(row.New(7).Add(
		col.New(6).Add(text.New("Summary (VAT "+s.TaxRate+"%)", headerTxt)).WithStyle(headerBg),
		col.New(3).Add(text.New("HT", right)).WithStyle(headerBg),
		col.New(3).Add(text.New("TTC", right)).WithStyle(headerBg),
	))
	for _, r := range summaryRows(s) {
		m.AddRows(row.New(6).Add(
			col.New(6).Add(text.New(r.label, cellLeft)),
			col.New(3).Add(text.New(r.ht, cellRight)),
			col.New(3).Add(text.New(r.ttc, bold)),
		))
	}
}

// ExportXLSX renders the quote as a single-sheet workbook with numeric cells.
func ExportXLSX(d Detail) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := d.Reference
	if sheet == "" {
		sheet = "Quote"
	}
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	for colName, width := range map[string]float64{"A": 40, "B": 14, "C": 14, "D": 14} {
		if err := f.SetColWidth(sheet, colName, colName, width); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", colName, err)
		}
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create bold style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}

	w := sheetWriter{f: f, sheet: sheet, money: moneyStyle, bold: boldStyle}
	w.text(1, "A", "Quote "+d.Reference, true)
	w.text(2, "A", "Company", false)
	w.text(2, "B", d.CompanyID, false)
	w.text(3, "A", "Date", false)
	w.text(3, "B", d.CreatedAt.Format("2006-01-02"), false)

	r := 5
	s := d.Summary
	if d.Formula != nil {
		w.text(r, "A", "Formula "+d.Formula.Name, true)
		w.text(r, "B", "HT", true)
		w.amount(r+1, "B", s.InstallationHT)
		w.text(r+1, "A", "Installation", false)
		w.text(r+2, "A", "Recurring services and options", false)
		w.amount(r+2, "B", s.RecurringFormulaHT)
		r += 4
	}

	if len(s.Lines) > 0 {
		w.text(r, "A", "Equipment", true)
		w.text(r, "B", "Unit HT", true)
		w.text(r, "C", "Billed qty", true)
		w.text(r, "D", "Total HT", true)
		for _, l := range s.Lines {
			r++
			w.text(r, "A", l.Name, false)
			w.amount(r, "B", l.UnitPriceHT)
			w.count(r, "C", l.EffectiveQuantity)
			w.amount(r, "D", l.TotalHT)
		}
		r += 2
	}

	w.text(r, "A", "Summary (VAT "+s.TaxRate+"%)", true)
	w.text(r, "B", "HT", true)
	w.text(r, "C", "TTC", true)
	for _, sr := range summaryRows(s) {
		r++
		w.text(r, "A", sr.label, false)
		w.amount(r, "B", sr.ht)
		w.amount(r, "C", sr.ttc)
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter keeps the first cell error so the layout code stays linear.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	money int
	bold  int
	err   error
}

func (w *sheetWriter) text(r int, c, value string, bold bool) {
	cell := c + strconv.Itoa(r)
	w.set(w.f.SetCellStr(w.sheet, cell, value))
	if bold {
		w.set(w.f.SetCellStyle(w.sheet, cell, cell, w.bold))
	}
}

func (w *sheetWriter) amount(r int, c, value string) {
	cell := c + strconv.Itoa(r)
	d, err := decimal.NewFromString(value)
	if err != nil {
		w.set(fmt.Errorf("amount %s: %w", cell, err))
		return
	}
	w.set(w.f.SetCellFloat(w.sheet, cell, d.InexactFloat64(), 2, 64))
	w.set(w.f.SetCellStyle(w.sheet, cell, cell, w.money))
}

func (w *sheetWriter) count(r int, c string, value int) {
	w.set(w.f.SetCellValue(w.sheet, c+strconv.Itoa(r), value))
}

func (w *sheetWriter) set(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}
