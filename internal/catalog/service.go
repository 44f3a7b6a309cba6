package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

type queryProvider interface {
	ListFormulas(ctx context.Context) ([]FormulaRow, error)
	GetFormula(ctx context.Context, id pgtype.UUID) (FormulaRow, error)
	ListOptions(ctx context.Context, formulaIDs []pgtype.UUID) ([]OptionRow, error)
	CountEquipment(ctx context.Context, q string) (int64, error)
	ListEquipment(ctx context.Context, arg ListEquipmentParams) ([]EquipmentRow, error)
	GetEquipment(ctx context.Context, id pgtype.UUID) (EquipmentRow, error)
}

// Service resolves formulas and equipment for the quote editor, with a read-through cache.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// Equipment is a catalog item that can be put on a quote line.
type Equipment struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	PriceHT pricing.Money `json:"priceHT"`
}

// EquipmentListParams captures filters for equipment listing.
type EquipmentListParams struct {
	Query string
	Page  int
	Limit int
}

// EquipmentListResult contains list data and pagination metadata.
type EquipmentListResult struct {
	Items []Equipment
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseEquipmentParams normalises raw query values into typed filters.
func (s *Service) ParseEquipmentParams(values url.Values) (EquipmentListParams, error) {
	params := EquipmentListParams{
		Query: strings.TrimSpace(values.Get("q")),
		Page:  1,
		Limit: s.defaultLimit,
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(limit, s.maxLimit)
	}
	return params, nil
}

// ListFormulas returns every formula with its options.
func (s *Service) ListFormulas(ctx context.Context) ([]pricing.Formula, error) {
	rows, err := s.queries.ListFormulas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list formulas: %w", err)
	}
	if len(rows) == 0 {
		return []pricing.Formula{}, nil
	}
	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	options, err := s.queries.ListOptions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list formula options: %w", err)
	}
	byFormula := make(map[string][]pricing.Option, len(rows))
	for _, o := range options {
		key := uuidString(o.FormulaID)
		byFormula[key] = append(byFormula[key], toOption(o))
	}
	result := make([]pricing.Formula, 0, len(rows))
	for _, row := range rows {
		result = append(result, toFormula(row, byFormula[uuidString(row.ID)]))
	}
	return result, nil
}

// GetFormula returns the formula with its options. Missing formulas yield a 404 AppError.
func (s *Service) GetFormula(ctx context.Context, id string) (*pricing.Formula, error) {
	pgID, err := parseID("formulaId", id)
	if err != nil {
		return nil, err
	}
	key := formulaCacheKey(uuidString(pgID))
	if s.cache != nil {
		var cached pricing.Formula
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return &cached, nil
		}
	}
	row, err := s.queries.GetFormula(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("formula not found", err)
		}
		return nil, fmt.Errorf("get formula: %w", err)
	}
	options, err := s.queries.ListOptions(ctx, []pgtype.UUID{row.ID})
	if err != nil {
		return nil, fmt.Errorf("list formula options: %w", err)
	}
	opts := make([]pricing.Option, 0, len(options))
	for _, o := range options {
		opts = append(opts, toOption(o))
	}
	formula := toFormula(row, opts)
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, formula)
	}
	return &formula, nil
}

// ListEquipment returns a page of equipment matching the filter.
func (s *Service) ListEquipment(ctx context.Context, params EquipmentListParams) (EquipmentListResult, error) {
	total, err := s.queries.CountEquipment(ctx, params.Query)
	if err != nil {
		return EquipmentListResult{}, fmt.Errorf("count equipment: %w", err)
	}
	offset := max(int32((params.Page-1)*params.Limit), 0)
	rows, err := s.queries.ListEquipment(ctx, ListEquipmentParams{
		Q:           params.Query,
		OffsetValue: offset,
		LimitValue:  int32(params.Limit),
	})
	if err != nil {
		return EquipmentListResult{}, fmt.Errorf("list equipment: %w", err)
	}
	items := make([]Equipment, 0, len(rows))
	for _, row := range rows {
		items = append(items, toEquipment(row))
	}
	return EquipmentListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetEquipment returns one equipment item. Missing items yield a 404 AppError.
func (s *Service) GetEquipment(ctx context.Context, id string) (Equipment, error) {
	pgID, err := parseID("equipmentId", id)
	if err != nil {
		return Equipment{}, err
	}
	key := equipmentCacheKey(uuidString(pgID))
	if s.cache != nil {
		var cached Equipment
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	row, err := s.queries.GetEquipment(ctx, pgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Equipment{}, common.NotFound("equipment not found", err)
		}
		return Equipment{}, fmt.Errorf("get equipment: %w", err)
	}
	item := toEquipment(row)
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, item)
	}
	return item, nil
}

// Invalidate drops cached formulas and equipment after the catalog changed.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePrefix(ctx, "catalog:")
}

func toFormula(row FormulaRow, options []pricing.Option) pricing.Formula {
	if options == nil {
		options = []pricing.Option{}
	}
	return pricing.Formula{
		ID:                uuidString(row.ID),
		Name:              row.Name,
		InstallationPrice: pricing.NewMoney(row.InstallationPrice),
		MaintenancePrice:  pricing.NewMoney(row.MaintenancePrice),
		HotlinePrice:      pricing.NewMoney(row.HotlinePrice),
		Options:           options,
	}
}

func toOption(row OptionRow) pricing.Option {
	return pricing.Option{ID: uuidString(row.ID), Name: row.Name, PriceHT: pricing.NewMoney(row.PriceHT)}
}

func toEquipment(row EquipmentRow) Equipment {
	return Equipment{ID: uuidString(row.ID), Name: row.Name, PriceHT: pricing.NewMoney(row.PriceHT)}
}

func formulaCacheKey(id string) string {
	return "catalog:formula:" + id
}

func equipmentCacheKey(id string) string {
	return "catalog:equipment:" + id
}

func parseID(field, raw string) (pgtype.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, common.BadRequest(field, field+" must be a valid UUID", err)
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
