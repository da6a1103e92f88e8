package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "erp.db")

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE D_EMPRESAS (CNPJ_C02 TEXT, NUMERO_WHATSAPP_GRUPO TEXT, XNOME_C03 TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO D_EMPRESAS VALUES ('12345678000190', '120363041234567890', 'Comercio Exemplo'), ('98765432000110', NULL, 'Sem Grupo')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reports := filepath.Join(dir, "relatorios")
	reportDir := filepath.Join(reports, "ERP_12345678000190_VENDAS_COMERCIO")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "RelatorioVendas.jpg"), []byte("\xff\xd8\xff\xe0jpeg"), 0o644))

	t.Setenv("DIRECTORY_DB_DRIVER", "sqlite")
	t.Setenv("DIRECTORY_DB_DSN", dsn)
	t.Setenv("REPORTS_BASE_PATH", reports)
	t.Setenv("REPORT_FILENAME", "RelatorioVendas.jpg")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTestConnection(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "test-connection")

	require.NoError(t, err)
	assert.Contains(t, out, "connected (sqlite)")
}

func TestCheckTable(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "check-table")
	require.NoError(t, err)
	assert.Contains(t, out, "D_EMPRESAS(CNPJ_C02, NUMERO_WHATSAPP_GRUPO, XNOME_C03)")

	t.Setenv("DIRECTORY_NAME_COLUMN", "RAZAO_SOCIAL")
	_, err = run(t, "check-table")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "lookup", "12.345.678/0001-90")
	require.NoError(t, err)
	assert.Contains(t, out, "Comercio Exemplo")
	assert.Contains(t, out, "120363041234567890")
	assert.Contains(t, out, "RelatorioVendas.jpg")

	out, err = run(t, "lookup", "98765432000110")
	require.NoError(t, err)
	assert.Contains(t, out, "Sem Grupo")
	assert.Contains(t, out, "✗")

	_, err = run(t, "lookup", "11111111000111")
	assert.Error(t, err)

	_, err = run(t, "lookup", "123")
	assert.Error(t, err)
}

func TestReports(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "reports")

	require.NoError(t, err)
	assert.Contains(t, out, "12345678000190")
	assert.Contains(t, out, "1 report(s)")
}

func TestCompaniesJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "companies", "--json")
	require.NoError(t, err)

	var companies []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &companies), out)
	require.Len(t, companies, 2)
	assert.Equal(t, "Comercio Exemplo", companies[0]["razao_social"])
}

func TestMissingDSN(t *testing.T) {
	t.Setenv("DIRECTORY_DB_DSN", "")

	_, err := run(t, "test-connection")

	assert.EqualError(t, err, "DIRECTORY_DB_DSN is not set")
}
