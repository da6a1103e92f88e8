package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T, at *time.Time) *Journal {
	t.Helper()
	j, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	j.now = func() time.Time { return *at }
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalWritesDailyFiles(t *testing.T) {
	now := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)
	j := openTestJournal(t, &now)

	j.Success("Relatorio enviado", map[string]interface{}{"cnpj": "12345678000190", "message": "shadowed"})
	now = now.Add(time.Hour)
	j.Error("Falha no envio", nil)

	_, err := os.Stat(filepath.Join(j.Dir(), "erp-whatsapp-2024-05-10.log"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(j.Dir(), "erp-whatsapp-2024-05-11.log"))
	require.NoError(t, err)

	entries, err := j.Recent(24)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ERROR", entries[0]["level"])
	assert.Equal(t, "Falha no envio", entries[0]["message"])
	assert.Equal(t, "SUCCESS", entries[1]["level"])
	assert.Equal(t, "12345678000190", entries[1]["cnpj"])
	assert.Equal(t, "shadowed", entries[1]["data.message"])
	assert.Equal(t, "Relatorio enviado", entries[1]["message"])
}

func TestJournalRecentWindow(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	j := openTestJournal(t, &now)

	j.Info("old", nil)
	now = now.Add(3 * time.Hour)
	j.Warn("new", nil)

	entries, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0]["message"])

	entries, err = j.Recent(0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestJournalSkipsGarbage(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	j := openTestJournal(t, &now)
	j.Info("valid", nil)

	path := filepath.Join(j.Dir(), "erp-whatsapp-2024-05-10.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := j.Recent(24)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJournalClean(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	j := openTestJournal(t, &now)

	oldPath := filepath.Join(j.Dir(), "erp-whatsapp-2024-03-01.log")
	require.NoError(t, os.WriteFile(oldPath, []byte("{}\n"), 0o644))
	old := now.AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(oldPath, old, old))

	other := filepath.Join(j.Dir(), "keep.txt")
	require.NoError(t, os.WriteFile(other, nil, 0o644))
	require.NoError(t, os.Chtimes(other, old, old))

	j.Info("fresh", nil)

	removed, err := j.Clean(30)
	require.NoError(t, err)
	assert.Equal(t, []string{"erp-whatsapp-2024-03-01.log"}, removed)
	assert.FileExists(t, other)
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	j.Info("console only", nil)
	entries, err := j.Recent(1)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.NoError(t, j.Close())
}

func TestMaskDestination(t *testing.T) {
	assert.Equal(t, "55379147xxxx@c.us", MaskDestination("553791470016@c.us"))
	assert.Equal(t, "55379147xxxx", MaskDestination("553791470016"))
	assert.Equal(t, "123", MaskDestination("123"))
}
