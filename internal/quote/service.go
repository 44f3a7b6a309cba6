package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/events"
	"github.com/noah-isme/crm-quotes/internal/obs"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// Repository persists quotes.
type Repository interface {
	Insert(ctx context.Context, q Quote) error
	Get(ctx context.Context, id uuid.UUID) (Quote, error)
	List(ctx context.Context, limit, offset int) ([]Quote, int64, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Catalog resolves the formula and equipment referenced by a form.
type Catalog interface {
	GetFormula(ctx context.Context, id string) (*pricing.Formula, error)
	GetEquipment(ctx context.Context, id string) (catalog.Equipment, error)
}

// EventPublisher announces persisted quotes.
type EventPublisher interface {
	QuoteCreated(ctx context.Context, payload events.QuoteCreated) error
}

// Service implements the quote use cases on top of the pricing engine.
type Service struct {
	repo            Repository
	catalog         Catalog
	events          EventPublisher
	validate        *validator.Validate
	metrics         *obs.QuoteMetrics
	defaultTax      decimal.Decimal
	referencePrefix string
	defaultLimit    int
	maxLimit        int
	now             func() time.Time
	newID           func() uuid.UUID
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Repository      Repository
	Catalog         Catalog
	Events          EventPublisher
	Validator       *validator.Validate
	Metrics         *obs.QuoteMetrics
	DefaultTaxRate  decimal.Decimal
	ReferencePrefix string
	DefaultLimit    int
	MaxLimit        int
	Now             func() time.Time
	NewID           func() uuid.UUID
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("quote: repository is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("quote: catalog is required")
	}
	s := &Service{
		repo:            cfg.Repository,
		catalog:         cfg.Catalog,
		events:          cfg.Events,
		validate:        cfg.Validator,
		metrics:         cfg.Metrics,
		defaultTax:      cfg.DefaultTaxRate,
		referencePrefix: cfg.ReferencePrefix,
		defaultLimit:    cfg.DefaultLimit,
		maxLimit:        cfg.MaxLimit,
		now:             cfg.Now,
		newID:           cfg.NewID,
	}
	if s.validate == nil {
		s.validate = NewValidator()
	}
	if s.defaultLimit < 1 {
		s.defaultLimit = 20
	}
	if s.maxLimit < 1 {
		s.maxLimit = 100
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s, nil
}

// Preview prices a form as typed. It never rejects input: unknown formula or equipment is
// priced as absent and malformed numbers coerce to zero. Only catalog failures surface.
func (s *Service) Preview(ctx context.Context, form Form) (pricing.SummaryView, error) {
	var formula *pricing.Formula
	if id := strings.TrimSpace(form.FormulaID); id != "" {
		f, err := s.catalog.GetFormula(ctx, id)
		switch {
		case err == nil:
			formula = f
		case !isLookupMiss(err):
			return pricing.SummaryView{}, err
		}
	}
	infos, _, err := s.resolveEquipment(ctx, form)
	if err != nil {
		return pricing.SummaryView{}, err
	}
	in := form.ToInput(formula, infos, s.defaultTax)
	if formula != nil {
		s.metrics.ObservePreview(formula.ID)
	} else {
		s.metrics.ObservePreview("")
	}
	return pricing.Calculate(in).View(), nil
}

// Create validates and persists a quote, snapshotting catalog prices.
func (s *Service) Create(ctx context.Context, actor string, form Form) (Detail, error) {
	if err := ValidateForm(s.validate, form); err != nil {
		return Detail{}, err
	}
	formula, err := s.catalog.GetFormula(ctx, form.FormulaID)
	if err != nil {
		if isLookupMiss(err) {
			return Detail{}, invalidField("formulaId", "exists", err)
		}
		return Detail{}, err
	}
	infos, missing, err := s.resolveEquipment(ctx, form)
	if err != nil {
		return Detail{}, err
	}
	if len(missing) > 0 {
		return Detail{}, invalidField(missing[0], "exists", nil)
	}

	snapshot := *formula
	snapshot.Options = slices.Clone(formula.Options)
	in := atStorageScale(form.ToInput(&snapshot, infos, s.defaultTax))
	now := s.now().UTC()
	id := s.newID()
	q := Quote{
		ID:                  id,
		Reference:           NewReference(s.referencePrefix, id, now),
		CompanyID:           strings.TrimSpace(form.CompanyID),
		InterlocutorID:      strings.TrimSpace(form.InterlocutorID),
		CreatedBy:           actor,
		Formula:             &snapshot,
		Lines:               in.Lines,
		DiscountPercentage:  in.DiscountPercentage,
		TaxRate:             in.TaxRate,
		EngagementMonths:    in.EngagementMonths,
		OneTimeInstallation: in.OneTimeInstallation,
		CreatedAt:           now,
	}
	if err := s.repo.Insert(ctx, q); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return Detail{}, common.NewAppError("CONFLICT", "quote reference already exists", http.StatusConflict, err)
		}
		return Detail{}, fmt.Errorf("create quote: %w", err)
	}

	detail := toDetail(q)
	summary := q.Summary()
	s.metrics.ObserveCreated(summary.TotalEngagement.TTC.Decimal().InexactFloat64())
	if s.events != nil {
		err := s.events.QuoteCreated(ctx, events.QuoteCreated{
			QuoteID:            detail.ID,
			Reference:          q.Reference,
			CompanyID:          q.CompanyID,
			CreatedBy:          actor,
			FirstMonthTTC:      summary.FirstMonth.TTC.Display(),
			TotalEngagementTTC: summary.TotalEngagement.TTC.Display(),
			CreatedAt:          now,
		})
		if err != nil {
			obs.Ctx(ctx).Warn().Err(err).Str("quote_id", detail.ID).Msg("publish quote created")
		}
	}
	return detail, nil
}

// atStorageScale rounds every stored figure to the scale of its column so the summary
// returned by Create is the one Get will recompute.
func atStorageScale(in pricing.Input) pricing.Input {
	if f := in.Formula; f != nil {
		f.InstallationPrice = f.InstallationPrice.Round2()
		f.MaintenancePrice = f.MaintenancePrice.Round2()
		f.HotlinePrice = f.HotlinePrice.Round2()
		for i := range f.Options {
			f.Options[i].PriceHT = f.Options[i].PriceHT.Round2()
		}
	}
	for i := range in.Lines {
		in.Lines[i].UnitPrice = in.Lines[i].UnitPrice.Round2()
	}
	in.DiscountPercentage = in.DiscountPercentage.Round(2)
	in.TaxRate = in.TaxRate.Round(2)
	return in
}

// Get loads a quote and recomputes its summary from the stored snapshot.
func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	qid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return Detail{}, common.NotFound("quote not found", err)
	}
	q, err := s.repo.Get(ctx, qid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NotFound("quote not found", err)
		}
		return Detail{}, fmt.Errorf("get quote: %w", err)
	}
	return toDetail(q), nil
}

// List returns a page of quotes with their headline figures.
func (s *Service) List(ctx context.Context, page, limit int) (ListResult, error) {
	page = max(page, 1)
	if limit < 1 {
		limit = s.defaultLimit
	}
	limit = min(limit, s.maxLimit)
	quotes, total, err := s.repo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list quotes: %w", err)
	}
	items := make([]ListItem, 0, len(quotes))
	for _, q := range quotes {
		items = append(items, toListItem(q))
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Delete removes a quote and its lines.
func (s *Service) Delete(ctx context.Context, id string) error {
	qid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return common.NotFound("quote not found", err)
	}
	deleted, err := s.repo.Delete(ctx, qid)
	if err != nil {
		return err
	}
	if !deleted {
		return common.NotFound("quote not found", nil)
	}
	return nil
}

// resolveEquipment looks up every referenced equipment once. It returns the found items
// and the form paths of lines whose equipment does not exist.
func (s *Service) resolveEquipment(ctx context.Context, form Form) (map[string]EquipmentInfo, []string, error) {
	infos := make(map[string]EquipmentInfo, len(form.Lines))
	absent := make(map[string]struct{})
	for _, id := range form.EquipmentIDs() {
		item, err := s.catalog.GetEquipment(ctx, id)
		if err != nil {
			if isLookupMiss(err) {
				absent[id] = struct{}{}
				continue
			}
			return nil, nil, err
		}
		infos[id] = EquipmentInfo{Name: item.Name, PriceHT: item.PriceHT}
	}
	var missing []string
	for i, l := range form.Lines {
		if _, ok := absent[strings.TrimSpace(l.EquipmentID)]; ok {
			missing = append(missing, fmt.Sprintf("lines[%d].equipmentId", i))
		}
	}
	return infos, missing, nil
}

func isLookupMiss(err error) bool {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.HTTPStatus == http.StatusNotFound || appErr.HTTPStatus == http.StatusBadRequest
}

func invalidField(field, rule string, err error) *common.AppError {
	return &common.AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "quote form is invalid",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
		Details:    map[string]any{"fields": []FieldError{{Field: field, Rule: rule}}},
	}
}
