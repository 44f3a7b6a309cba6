package quote

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/events"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

const (
	formulaID = "0b6f4c1e-7a5f-4a8e-9d61-3b2f6a1d9c01"
	routerID  = "5a0c2c1d-44f3-4cc7-8d6a-2a9b7e3f1e02"
	phoneID   = "9e3d7b2a-1c4f-4f0e-a7d8-6b5c4a3e2d03"
)

type fakeCatalog struct {
	formulas  map[string]*pricing.Formula
	equipment map[string]catalog.Equipment
	err       error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		formulas: map[string]*pricing.Formula{
			formulaID: {
				ID:                formulaID,
				Name:              "Sérénité",
				InstallationPrice: pricing.MoneyFromInt(100),
				MaintenancePrice:  pricing.MoneyFromInt(50),
				HotlinePrice:      pricing.MoneyFromInt(20),
				Options:           []pricing.Option{},
			},
		},
		equipment: map[string]catalog.Equipment{
			routerID: {ID: routerID, Name: "Routeur", PriceHT: pricing.MoneyFromInt(40)},
			phoneID:  {ID: phoneID, Name: "Téléphone", PriceHT: pricing.MustMoney("12.50")},
		},
	}
}

func (f *fakeCatalog) GetFormula(_ context.Context, id string) (*pricing.Formula, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.BadRequest("formulaId", "formulaId must be a valid UUID", err)
	}
	formula, ok := f.formulas[id]
	if !ok {
		return nil, common.NotFound("formula not found", pgx.ErrNoRows)
	}
	return formula, nil
}

func (f *fakeCatalog) GetEquipment(_ context.Context, id string) (catalog.Equipment, error) {
	if f.err != nil {
		return catalog.Equipment{}, f.err
	}
	item, ok := f.equipment[id]
	if !ok {
		return catalog.Equipment{}, common.NotFound("equipment not found", pgx.ErrNoRows)
	}
	return item, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	quotes    map[uuid.UUID]Quote
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{quotes: map[uuid.UUID]Quote{}}
}

func (r *fakeRepo) Insert(_ context.Context, q Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.quotes {
		if existing.Reference == q.Reference {
			return ErrDuplicateReference
		}
	}
	stored, err := atColumnScale(q)
	if err != nil {
		return err
	}
	r.quotes[q.ID] = stored
	return nil
}

// atColumnScale mirrors what Postgres keeps of a quote: NUMERIC(x,2) columns round to
// cents and the formula snapshot goes through its JSON encoding.
func atColumnScale(q Quote) (Quote, error) {
	if q.Formula != nil {
		raw, err := json.Marshal(q.Formula)
		if err != nil {
			return Quote{}, err
		}
		var f pricing.Formula
		if err := json.Unmarshal(raw, &f); err != nil {
			return Quote{}, err
		}
		q.Formula = &f
	}
	lines := make([]pricing.Line, len(q.Lines))
	for i, l := range q.Lines {
		l.UnitPrice = pricing.NewMoney(l.UnitPrice.Decimal().Round(2))
		lines[i] = l
	}
	q.Lines = lines
	q.DiscountPercentage = q.DiscountPercentage.Round(2)
	q.TaxRate = q.TaxRate.Round(2)
	return q, nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return Quote{}, pgx.ErrNoRows
	}
	return q, nil
}

func (r *fakeRepo) List(_ context.Context, limit, offset int) ([]Quote, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]Quote, 0, len(r.quotes))
	for _, q := range r.quotes {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := min(offset, len(all))
	end := min(start+limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotes[id]; !ok {
		return false, nil
	}
	delete(r.quotes, id)
	return true, nil
}

type capturePublisher struct {
	events []events.QuoteCreated
}

func (c *capturePublisher) QuoteCreated(_ context.Context, p events.QuoteCreated) error {
	c.events = append(c.events, p)
	return nil
}

// sequentialIDs yields predictable, distinct uuids.
func sequentialIDs() func() uuid.UUID {
	var n byte
	return func() uuid.UUID {
		n++
		var id uuid.UUID
		id[0] = n
		id[6] = 0x40
		id[8] = 0x80
		return id
	}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC) }
}

func referenceForm() Form {
	return Form{
		CompanyID: "company-1",
		FormulaID: formulaID,
		Lines: []LineForm{
			{EquipmentID: routerID, Quantity: "3", FirstUnitFree: "true"},
		},
		Discount:            "10",
		TaxRate:             "20",
		EngagementMonths:    "12",
		OneTimeInstallation: "true",
	}
}
