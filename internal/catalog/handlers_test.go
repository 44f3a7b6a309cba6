package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/pricing"
)

const (
	serenityID = "11111111-1111-1111-1111-111111111111"
	comfortID  = "22222222-2222-2222-2222-222222222222"
	optionID   = "33333333-3333-3333-3333-333333333333"
	routerID   = "44444444-4444-4444-4444-444444444444"
	phoneID    = "55555555-5555-5555-5555-555555555555"
)

type formulasResponse struct {
	Data []pricing.Formula `json:"data"`
}

type formulaResponse struct {
	Data pricing.Formula `json:"data"`
}

type equipmentListResponse struct {
	Data       []catalog.Equipment `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T, queries *fakeCatalogQueries, cache *catalog.Cache) http.Handler {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        cache,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	r := chi.NewRouter()
	catalog.NewHandler(catalog.HandlerConfig{Service: svc}).Routes(r)
	return r
}

func TestCatalogHandlers(t *testing.T) {
	router := newRouter(t, newFakeCatalogQueries(t), nil)

	t.Run("formulas", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/formulas", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp formulasResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		require.Equal(t, "Confort", resp.Data[0].Name)
		require.Empty(t, resp.Data[0].Options)
		require.Equal(t, "Sérénité", resp.Data[1].Name)
		require.Len(t, resp.Data[1].Options, 1)
		require.Equal(t, "20.00", resp.Data[1].Options[0].PriceHT.Display())
	})

	t.Run("formula detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/formulas/"+serenityID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp formulaResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, serenityID, resp.Data.ID)
		require.Equal(t, "100.00", resp.Data.InstallationPrice.Display())
		require.Equal(t, "50.00", resp.Data.MaintenancePrice.Display())
		require.Equal(t, "0.00", resp.Data.HotlinePrice.Display())
	})

	t.Run("formula not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/formulas/99999999-9999-9999-9999-999999999999", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("invalid formula id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/formulas/not-a-uuid", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "formulaId", resp.Error.Details["field"])
	})

	t.Run("equipment list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/equipment?limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))
		var resp equipmentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Routeur", resp.Data[0].Name)
		require.Equal(t, 1, resp.Pagination.PerPage)
		require.Equal(t, 2, resp.Pagination.TotalItems)
	})

	t.Run("equipment search", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/equipment?q=t%C3%A9l", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp equipmentListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Téléphone", resp.Data[0].Name)
	})

	t.Run("invalid page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/equipment?page=0", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("equipment detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/equipment/"+phoneID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"priceHT":"40.00"`)
	})
}

func TestCatalogFormulaCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	queries := newFakeCatalogQueries(t)
	cache := catalog.NewCache(client, time.Minute)
	svc, err := catalog.NewService(catalog.ServiceConfig{Queries: queries, Cache: cache})
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.GetFormula(ctx, serenityID)
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:formula:"+serenityID))

	second, err := svc.GetFormula(ctx, serenityID)
	require.NoError(t, err)
	require.Equal(t, 1, queries.formulaCalls)
	require.Equal(t, first.Name, second.Name)
	require.True(t, first.MaintenancePrice.Equal(second.MaintenancePrice))
	require.Len(t, second.Options, 1)

	require.NoError(t, svc.Invalidate(ctx))
	require.False(t, mr.Exists("catalog:formula:"+serenityID))

	_, err = svc.GetFormula(ctx, serenityID)
	require.NoError(t, err)
	require.Equal(t, 2, queries.formulaCalls)
}

type fakeCatalogQueries struct {
	formulas     map[string]catalog.FormulaRow
	options      []catalog.OptionRow
	equipment    []catalog.EquipmentRow
	formulaCalls int
}

func newFakeCatalogQueries(t *testing.T) *fakeCatalogQueries {
	t.Helper()
	return &fakeCatalogQueries{
		formulas: map[string]catalog.FormulaRow{
			serenityID: {
				ID:                mustUUID(t, serenityID),
				Name:              "Sérénité",
				InstallationPrice: decimal.NewFromInt(100),
				MaintenancePrice:  decimal.NewFromInt(50),
			},
			comfortID: {
				ID:                mustUUID(t, comfortID),
				Name:              "Confort",
				InstallationPrice: decimal.NewFromInt(80),
				MaintenancePrice:  decimal.NewFromInt(30),
				HotlinePrice:      decimal.NewFromInt(10),
			},
		},
		options: []catalog.OptionRow{{
			ID:        mustUUID(t, optionID),
			FormulaID: mustUUID(t, serenityID),
			Name:      "Sauvegarde",
			PriceHT:   decimal.NewFromInt(20),
		}},
		equipment: []catalog.EquipmentRow{
			{ID: mustUUID(t, routerID), Name: "Routeur", PriceHT: decimal.NewFromInt(25)},
			{ID: mustUUID(t, phoneID), Name: "Téléphone", PriceHT: decimal.NewFromInt(40)},
		},
	}
}

func (f *fakeCatalogQueries) ListFormulas(context.Context) ([]catalog.FormulaRow, error) {
	rows := make([]catalog.FormulaRow, 0, len(f.formulas))
	for _, row := range f.formulas {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

func (f *fakeCatalogQueries) GetFormula(_ context.Context, id pgtype.UUID) (catalog.FormulaRow, error) {
	f.formulaCalls++
	row, ok := f.formulas[uuidString(id)]
	if !ok {
		return catalog.FormulaRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (f *fakeCatalogQueries) ListOptions(_ context.Context, ids []pgtype.UUID) ([]catalog.OptionRow, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[uuidString(id)] = struct{}{}
	}
	var rows []catalog.OptionRow
	for _, o := range f.options {
		if _, ok := wanted[uuidString(o.FormulaID)]; ok {
			rows = append(rows, o)
		}
	}
	return rows, nil
}

func (f *fakeCatalogQueries) CountEquipment(_ context.Context, q string) (int64, error) {
	return int64(len(f.filterEquipment(q))), nil
}

func (f *fakeCatalogQueries) ListEquipment(_ context.Context, arg catalog.ListEquipmentParams) ([]catalog.EquipmentRow, error) {
	rows := f.filterEquipment(arg.Q)
	start := min(int(arg.OffsetValue), len(rows))
	end := min(start+int(arg.LimitValue), len(rows))
	return rows[start:end], nil
}

func (f *fakeCatalogQueries) GetEquipment(_ context.Context, id pgtype.UUID) (catalog.EquipmentRow, error) {
	for _, row := range f.equipment {
		if uuidString(row.ID) == uuidString(id) {
			return row, nil
		}
	}
	return catalog.EquipmentRow{}, pgx.ErrNoRows
}

func (f *fakeCatalogQueries) filterEquipment(q string) []catalog.EquipmentRow {
	var rows []catalog.EquipmentRow
	for _, row := range f.equipment {
		if q == "" || strings.Contains(strings.ToLower(row.Name), strings.ToLower(q)) {
			rows = append(rows, row)
		}
	}
	return rows
}

func mustUUID(t *testing.T, raw string) pgtype.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return pgtype.UUID{Bytes: id, Valid: true}
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
