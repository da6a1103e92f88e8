package directory

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE D_EMPRESAS (
		CNPJ_C02 TEXT PRIMARY KEY,
		NUMERO_WHATSAPP_GRUPO TEXT,
		XNOME_C03 TEXT
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO D_EMPRESAS VALUES
		('12345678000190', '120363142926103927', 'Comercial Centro LTDA'),
		('98765432000110', NULL, 'Sem Grupo ME'),
		('11222333000181', '  ', 'Grupo Vazio SA')`)
	require.NoError(t, err)

	store, err := NewStore(db, Config{Driver: "sqlite"})
	require.NoError(t, err)
	return store
}

func TestLookupByTaxID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	company, err := store.LookupByTaxID(ctx, "12345678000190")
	require.NoError(t, err)
	assert.Equal(t, Company{TaxID: "12345678000190", Name: "Comercial Centro LTDA", Destination: "120363142926103927"}, company)

	_, err = store.LookupByTaxID(ctx, "00000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	company, err = store.LookupByTaxID(ctx, "98765432000110")
	assert.ErrorIs(t, err, ErrNoDestination)
	assert.Equal(t, "Sem Grupo ME", company.Name)

	_, err = store.LookupByTaxID(ctx, "11222333000181")
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestListPingCheckTable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	companies, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 3)
	assert.Equal(t, "Comercial Centro LTDA", companies[0].Name)

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.CheckTable(ctx))
}

func TestCheckTableReportsMissingColumn(t *testing.T) {
	base := openTestStore(t)

	store, err := NewStore(base.db, Config{Driver: "sqlite", NameColumn: "RAZAO"})
	require.NoError(t, err)
	err = store.CheckTable(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAZAO")
}

func TestNewStoreRejectsUnsafeIdentifiers(t *testing.T) {
	_, err := NewStore(nil, Config{Table: "D_EMPRESAS; DROP TABLE x"})
	assert.Error(t, err)

	store, err := NewStore(nil, Config{Driver: "postgresql", Table: "erp.D_EMPRESAS"})
	require.NoError(t, err)
	assert.Contains(t, store.lookupQuery, "FROM erp.D_EMPRESAS WHERE CNPJ_C02 = $1")
}

func TestNormalizeDriver(t *testing.T) {
	assert.Equal(t, "pgx", NormalizeDriver(""))
	assert.Equal(t, "pgx", NormalizeDriver("PostgreSQL"))
	assert.Equal(t, "postgres", NormalizeDriver("pq"))
	assert.Equal(t, "sqlite", NormalizeDriver("sqlite3"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "sqlite"})
	assert.Error(t, err)
}
