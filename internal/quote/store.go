package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/crm-quotes/internal/pricing"
)

// ErrDuplicateReference is returned when the generated reference is already taken.
var ErrDuplicateReference = errors.New("quote: duplicate reference")

// Store persists quotes and their lines in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertQuote = `
INSERT INTO quotes (
    id, reference, company_id, interlocutor_id, created_by, formula_id, formula_snapshot,
    discount_percentage, tax_rate, engagement_months, one_time_installation, created_at
) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8::numeric, $9::numeric, $10, $11, $12)`

const insertLine = `
INSERT INTO quote_lines (quote_id, position, equipment_id, name, unit_price, quantity, first_unit_free)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`

// Insert writes q and its lines atomically.
func (s *Store) Insert(ctx context.Context, q Quote) error {
	snapshot, formulaID, err := encodeFormula(q.Formula)
	if err != nil {
		return err
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, insertQuote,
		q.ID, q.Reference, q.CompanyID, q.InterlocutorID, q.CreatedBy, formulaID, snapshot,
		q.DiscountPercentage.String(), q.TaxRate.String(), q.EngagementMonths, q.OneTimeInstallation, q.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert quote: %w", err)
	}

	if len(q.Lines) > 0 {
		batch := &pgx.Batch{}
		for i, l := range q.Lines {
			batch.Queue(insertLine, q.ID, i, l.EquipmentID, l.Name, l.UnitPrice.Decimal().String(), l.Quantity, l.FirstUnitFree)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert quote lines: %w", err)
		}
	}
	return tx.Commit(ctx)
}

const quoteColumns = `id, reference, company_id, COALESCE(interlocutor_id, ''), COALESCE(created_by, ''),
    formula_snapshot, discount_percentage::text, tax_rate::text, engagement_months, one_time_installation, created_at`

// Get loads a quote with its lines, or pgx.ErrNoRows.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Quote, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	if err != nil {
		return Quote{}, err
	}
	q, err := pgx.CollectExactlyOneRow(rows, scanQuote)
	if err != nil {
		return Quote{}, err
	}
	lines, err := s.lines(ctx, []uuid.UUID{q.ID})
	if err != nil {
		return Quote{}, err
	}
	q.Lines = lines[q.ID]
	return q, nil
}

// List returns a page of quotes, newest first, and the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Quote, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM quotes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quotes: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes ORDER BY created_at DESC, id OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}
	quotes, err := pgx.CollectRows(rows, scanQuote)
	if err != nil {
		return nil, 0, fmt.Errorf("list quotes: %w", err)
	}
	if len(quotes) == 0 {
		return quotes, total, nil
	}
	ids := make([]uuid.UUID, 0, len(quotes))
	for _, q := range quotes {
		ids = append(ids, q.ID)
	}
	lines, err := s.lines(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range quotes {
		quotes[i].Lines = lines[quotes[i].ID]
	}
	return quotes, total, nil
}

// Delete removes a quote; its lines go with it. It reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete quote: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) lines(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]pricing.Line, error) {
	rows, err := s.pool.Query(ctx, `
SELECT quote_id, equipment_id, name, unit_price::text, quantity, first_unit_free
FROM quote_lines
WHERE quote_id = ANY($1)
ORDER BY quote_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("list quote lines: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]pricing.Line, len(ids))
	for rows.Next() {
		var (
			quoteID uuid.UUID
			price   string
			l       pricing.Line
		)
		if err := rows.Scan(&quoteID, &l.EquipmentID, &l.Name, &price, &l.Quantity, &l.FirstUnitFree); err != nil {
			return nil, fmt.Errorf("scan quote line: %w", err)
		}
		l.UnitPrice = pricing.MustMoney(price)
		out[quoteID] = append(out[quoteID], l)
	}
	return out, rows.Err()
}

func scanQuote(row pgx.CollectableRow) (Quote, error) {
	var (
		q        Quote
		snapshot []byte
		discount string
		taxRate  string
		created  time.Time
	)
	if err := row.Scan(&q.ID, &q.Reference, &q.CompanyID, &q.InterlocutorID, &q.CreatedBy,
		&snapshot, &discount, &taxRate, &q.EngagementMonths, &q.OneTimeInstallation, &created); err != nil {
		return Quote{}, err
	}
	if len(snapshot) > 0 {
		var f pricing.Formula
		if err := json.Unmarshal(snapshot, &f); err != nil {
			return Quote{}, fmt.Errorf("decode formula snapshot: %w", err)
		}
		q.Formula = &f
	}
	q.DiscountPercentage = decimal.RequireFromString(discount)
	q.TaxRate = decimal.RequireFromString(taxRate)
	q.CreatedAt = created
	return q, nil
}

func encodeFormula(f *pricing.Formula) ([]byte, *uuid.UUID, error) {
	if f == nil {
		return nil, nil, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, nil, fmt.Errorf("encode formula snapshot: %w", err)
	}
	var id *uuid.UUID
	if parsed, err := uuid.Parse(f.ID); err == nil {
		id = &parsed
	}
	return data, id, nil
}
