package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// FormulaRow is a formulas table row.
type FormulaRow struct {
	ID                pgtype.UUID
	Name              string
	InstallationPrice decimal.Decimal
	MaintenancePrice  decimal.Decimal
	HotlinePrice      decimal.Decimal
	UpdatedAt         time.Time
}

// OptionRow is a formula_options table row.
type OptionRow struct {
	ID        pgtype.UUID
	FormulaID pgtype.UUID
	Name      string
	PriceHT   decimal.Decimal
}

// EquipmentRow is an equipment table row.
type EquipmentRow struct {
	ID      pgtype.UUID
	Name    string
	PriceHT decimal.Decimal
}

// ListEquipmentParams filters and pages the equipment catalog.
type ListEquipmentParams struct {
	Q           string
	OffsetValue int32
	LimitValue  int32
}

// Store runs catalog queries against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const listFormulas = `
SELECT id, name, installation_price, maintenance_price, hotline_price, updated_at
FROM formulas
ORDER BY name`

// ListFormulas returns every formula ordered by name.
func (s *Store) ListFormulas(ctx context.Context) ([]FormulaRow, error) {
	rows, err := s.pool.Query(ctx, listFormulas)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanFormula)
}

const getFormula = `
SELECT id, name, installation_price, maintenance_price, hotline_price, updated_at
FROM formulas
WHERE id = $1`

// GetFormula returns a single formula or pgx.ErrNoRows.
func (s *Store) GetFormula(ctx context.Context, id pgtype.UUID) (FormulaRow, error) {
	rows, err := s.pool.Query(ctx, getFormula, id)
	if err != nil {
		return FormulaRow{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanFormula)
}

const listOptions = `
SELECT id, formula_id, name, price_ht
FROM formula_options
WHERE formula_id = ANY($1::uuid[])
ORDER BY formula_id, position, name`

// ListOptions returns the options attached to the given formulas.
func (s *Store) ListOptions(ctx context.Context, formulaIDs []pgtype.UUID) ([]OptionRow, error) {
	rows, err := s.pool.Query(ctx, listOptions, formulaIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OptionRow, error) {
		var o OptionRow
		err := row.Scan(&o.ID, &o.FormulaID, &o.Name, &o.PriceHT)
		return o, err
	})
}

const countEquipment = `
SELECT count(*)
FROM equipment
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%')`

// CountEquipment counts equipment matching q.
func (s *Store) CountEquipment(ctx context.Context, q string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, countEquipment, optionalString(q)).Scan(&total)
	return total, err
}

const listEquipment = `
SELECT id, name, price_ht
FROM equipment
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%')
ORDER BY name
OFFSET $2 LIMIT $3`

// ListEquipment pages through equipment matching the filter.
func (s *Store) ListEquipment(ctx context.Context, arg ListEquipmentParams) ([]EquipmentRow, error) {
	rows, err := s.pool.Query(ctx, listEquipment, optionalString(arg.Q), arg.OffsetValue, arg.LimitValue)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEquipment)
}

const getEquipment = `
SELECT id, name, price_ht
FROM equipment
WHERE id = $1`

// GetEquipment returns a single equipment item or pgx.ErrNoRows.
func (s *Store) GetEquipment(ctx context.Context, id pgtype.UUID) (EquipmentRow, error) {
	rows, err := s.pool.Query(ctx, getEquipment, id)
	if err != nil {
		return EquipmentRow{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanEquipment)
}

func scanFormula(row pgx.CollectableRow) (FormulaRow, error) {
	var f FormulaRow
	err := row.Scan(&f.ID, &f.Name, &f.InstallationPrice, &f.MaintenancePrice, &f.HotlinePrice, &f.UpdatedAt)
	return f, err
}

func scanEquipment(row pgx.CollectableRow) (EquipmentRow, error) {
	var e EquipmentRow
	err := row.Scan(&e.ID, &e.Name, &e.PriceHT)
	return e, err
}

func optionalString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
