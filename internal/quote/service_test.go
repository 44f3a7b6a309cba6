package quote

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/obs"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

type serviceFixture struct {
	svc       *Service
	repo      *fakeRepo
	catalog   *fakeCatalog
	publisher *capturePublisher
	metrics   *obs.QuoteMetrics
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	fx := serviceFixture{
		repo:      newFakeRepo(),
		catalog:   newFakeCatalog(),
		publisher: &capturePublisher{},
		metrics:   obs.NewQuoteMetrics("test", prometheus.NewRegistry()),
	}
	svc, err := NewService(ServiceConfig{
		Repository:      fx.repo,
		Catalog:         fx.catalog,
		Events:          fx.publisher,
		Metrics:         fx.metrics,
		DefaultTaxRate:  pricing.DefaultTaxRate,
		ReferencePrefix: "DEV",
		Now:             fixedClock(),
		NewID:           sequentialIDs(),
	})
	require.NoError(t, err)
	fx.svc = svc
	return fx
}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	fields, ok := details["fields"].([]FieldError)
	require.True(t, ok)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	require.Contains(t, names, field)
}

func pair(ht, ttc string) [2]string { return [2]string{ht, ttc} }

func TestPreviewReferenceScenario(t *testing.T) {
	fx := newServiceFixture(t)

	view, err := fx.svc.Preview(context.Background(), referenceForm())
	require.NoError(t, err)
	require.Equal(t, "70.00", view.RecurringFormulaHT)
	require.Equal(t, "80.00", view.EquipmentSubtotalHT)
	require.Equal(t, "150.00", view.DiscountBaseHT)
	require.Equal(t, "15.00", view.Discount.HT)
	require.Equal(t, pair("135.00", "162.00"), pair(view.Recurring.HT, view.Recurring.TTC))
	require.Equal(t, pair("235.00", "282.00"), pair(view.FirstMonth.HT, view.FirstMonth.TTC))
	require.Equal(t, pair("1720.00", "2064.00"), pair(view.TotalEngagement.HT, view.TotalEngagement.TTC))
	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Previews.WithLabelValues(formulaID)))
}

func TestPreviewNeverRejectsTypedInput(t *testing.T) {
	fx := newServiceFixture(t)

	form := Form{
		FormulaID: "not-a-uuid",
		Lines: []LineForm{
			{EquipmentID: phoneID, Quantity: "abc", UnitPrice: "7,5"},
			{EquipmentID: "ffffffff-ffff-4fff-bfff-ffffffffffff", Quantity: "2"},
		},
		Discount:         "NaN",
		TaxRate:          "",
		EngagementMonths: "",
	}
	view, err := fx.svc.Preview(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, "0.00", view.FormulaTotalHT)
	require.Len(t, view.Lines, 1)
	require.Equal(t, 1, view.Lines[0].Quantity)
	require.Equal(t, "7.50", view.Lines[0].TotalHT)
	require.Equal(t, "0", view.DiscountPercentage)
	require.Equal(t, "20", view.TaxRate)
	require.Equal(t, DefaultEngagementMonths, view.EngagementMonths)
	require.Equal(t, "9.00", view.Recurring.TTC)
	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Previews.WithLabelValues("none")))
}

func TestPreviewSurfacesCatalogFailures(t *testing.T) {
	fx := newServiceFixture(t)
	fx.catalog.err = errors.New("connection refused")

	_, err := fx.svc.Preview(context.Background(), referenceForm())
	require.Error(t, err)
}

func TestCreatePersistsSnapshotAndPublishes(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	detail, err := fx.svc.Create(ctx, "user-1", referenceForm())
	require.NoError(t, err)
	require.Regexp(t, `^DEV-202610-[0-9A-F]{6}$`, detail.Reference)
	require.Equal(t, "user-1", detail.CreatedBy)
	require.Equal(t, "282.00", detail.Summary.FirstMonth.TTC)
	require.Equal(t, "2064.00", detail.Summary.TotalEngagement.TTC)
	require.Len(t, detail.Lines, 1)
	require.Equal(t, "Routeur", detail.Lines[0].Name)

	require.Len(t, fx.publisher.events, 1)
	require.Equal(t, detail.ID, fx.publisher.events[0].QuoteID)
	require.Equal(t, "2064.00", fx.publisher.events[0].TotalEngagementTTC)
	require.Equal(t, 1.0, testutil.ToFloat64(fx.metrics.Created))

	// Later catalog edits must not change the stored quote.
	fx.catalog.formulas[formulaID].MaintenancePrice = pricing.MoneyFromInt(500)
	fx.catalog.formulas[formulaID] = &pricing.Formula{ID: formulaID, Name: "Sérénité", MaintenancePrice: pricing.MoneyFromInt(999)}
	router := fx.catalog.equipment[routerID]
	router.PriceHT = pricing.MoneyFromInt(400)
	fx.catalog.equipment[routerID] = router

	again, err := fx.svc.Get(ctx, detail.ID)
	require.NoError(t, err)
	require.Equal(t, "2064.00", again.Summary.TotalEngagement.TTC)
	require.Equal(t, "40.00", again.Summary.Lines[0].UnitPriceHT)
}

func TestCreateValidatesSubmission(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		field  string
		mutate func(*Form)
	}{
		{"missing company", "companyId", func(f *Form) { f.CompanyID = "" }},
		{"missing formula", "formulaId", func(f *Form) { f.FormulaID = "" }},
		{"discount not offered", "discount", func(f *Form) { f.Discount = "12" }},
		{"tax rate above 100", "taxRate", func(f *Form) { f.TaxRate = "120" }},
		{"tax rate with three decimals", "taxRate", func(f *Form) { f.TaxRate = "5.555" }},
		{"engagement not offered", "engagementMonths", func(f *Form) { f.EngagementMonths = "18" }},
		{"installation flag garbage", "oneTimeInstallation", func(f *Form) { f.OneTimeInstallation = "maybe" }},
		{"zero quantity", "lines[0].quantity", func(f *Form) { f.Lines[0].Quantity = "0" }},
		{"quantity above int column", "lines[0].quantity", func(f *Form) { f.Lines[0].Quantity = "2147483648" }},
		{"negative price", "lines[0].unitPrice", func(f *Form) { f.Lines[0].UnitPrice = "-4" }},
		{"sub-cent price", "lines[0].unitPrice", func(f *Form) { f.Lines[0].UnitPrice = "10.125" }},
		{"price above numeric column", "lines[0].unitPrice", func(f *Form) { f.Lines[0].UnitPrice = "10000000000" }},
		{"free unit flag garbage", "lines[0].firstUnitFree", func(f *Form) { f.Lines[0].FirstUnitFree = "sometimes" }},
		{"equipment not a uuid", "lines[0].equipmentId", func(f *Form) { f.Lines[0].EquipmentID = "router" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := referenceForm()
			tc.mutate(&form)
			_, err := fx.svc.Create(ctx, "user-1", form)
			requireValidationField(t, err, tc.field)
		})
	}
	require.Empty(t, fx.repo.quotes)
	require.Empty(t, fx.publisher.events)
}

func TestCreateAcceptsColumnBounds(t *testing.T) {
	fx := newServiceFixture(t)

	form := referenceForm()
	form.Lines[0].UnitPrice = "9999999999.99"
	form.Lines[0].Quantity = "2147483647"
	form.TaxRate = "5.50"
	_, err := fx.svc.Create(context.Background(), "user-1", form)
	require.NoError(t, err)
}

func TestCreateSummaryMatchesStoredQuote(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	const cableID = "c4b1d2e3-5f60-4a7b-8c9d-0e1f2a3b4c05"
	fx.catalog.equipment[cableID] = catalog.Equipment{ID: cableID, Name: "Câble", PriceHT: pricing.MustMoney("10.125")}
	fx.catalog.formulas[formulaID].Options = []pricing.Option{{ID: "opt", Name: "Astreinte", PriceHT: pricing.MustMoney("3.333")}}

	form := referenceForm()
	form.Lines = append(form.Lines, LineForm{EquipmentID: cableID, Quantity: "2"})
	form.TaxRate = "5.55"

	created, err := fx.svc.Create(ctx, "user-1", form)
	require.NoError(t, err)
	require.Equal(t, "10.13", created.Summary.Lines[1].UnitPriceHT)

	read, err := fx.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Summary, read.Summary)

	require.Len(t, fx.publisher.events, 1)
	require.Equal(t, read.Summary.FirstMonth.TTC, fx.publisher.events[0].FirstMonthTTC)
	require.Equal(t, read.Summary.TotalEngagement.TTC, fx.publisher.events[0].TotalEngagementTTC)
}

func TestCreateRejectsUnknownCatalogEntries(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	form := referenceForm()
	form.FormulaID = "ffffffff-ffff-4fff-bfff-ffffffffffff"
	_, err := fx.svc.Create(ctx, "user-1", form)
	requireValidationField(t, err, "formulaId")

	form = referenceForm()
	form.Lines = append(form.Lines, LineForm{EquipmentID: "ffffffff-ffff-4fff-bfff-ffffffffffff", Quantity: "1"})
	_, err = fx.svc.Create(ctx, "user-1", form)
	requireValidationField(t, err, "lines[1].equipmentId")
}

func TestCreateMapsDuplicateReferenceToConflict(t *testing.T) {
	fx := newServiceFixture(t)
	fx.repo.insertErr = ErrDuplicateReference

	_, err := fx.svc.Create(context.Background(), "user-1", referenceForm())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestListGetDelete(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	first, err := fx.svc.Create(ctx, "user-1", referenceForm())
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, "user-1", referenceForm())
	require.NoError(t, err)

	page, err := fx.svc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, "282.00", page.Items[0].FirstMonthTTC)
	require.Equal(t, "Sérénité", page.Items[0].FormulaName)

	require.NoError(t, fx.svc.Delete(ctx, first.ID))
	_, err = fx.svc.Get(ctx, first.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	err = fx.svc.Delete(ctx, first.ID)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	_, err = fx.svc.Get(ctx, "garbage")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}
