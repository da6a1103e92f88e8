package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest JPEG header mimetype recognises
var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func writeReport(t *testing.T, s *Store, taxID string, data []byte) string {
	t.Helper()
	dir, err := s.EnsureDir(taxID)
	require.NoError(t, err)
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLocate(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	path := writeReport(t, s, "12345678000190", jpegBytes)

	a, err := s.Locate("12345678000190")
	require.NoError(t, err)
	assert.Equal(t, path, a.Path)
	assert.Equal(t, int64(len(jpegBytes)), a.Size)
	assert.False(t, a.ModifiedAt.IsZero())
	assert.Equal(t, filepath.Join(s.Base(), "ERP_12345678000190_VENDAS_COMERCIO", "RelatorioVendas.jpg"), s.Path("12345678000190"))
}

func TestLocateMissingAndEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), "")

	_, err := s.Locate("98765432000110")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, s.Path("98765432000110"), ExpectedPath(err))

	writeReport(t, s, "11222333000181", nil)
	_, err = s.Locate("11222333000181")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestInfoAndRead(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	writeReport(t, s, "12345678000190", jpegBytes)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	info, err := s.Info("12345678000190")
	require.NoError(t, err)
	assert.Equal(t, "11 B", info.SizeFormatted)
	assert.Equal(t, ".jpg", info.Extension)
	assert.Equal(t, "RelatorioVendas.jpg", info.Filename)
	assert.Contains(t, info.ModifiedAgo, "ago")

	data, mediaType, err := s.Read(info.Artifact)
	require.NoError(t, err)
	assert.Equal(t, jpegBytes, data)
	assert.Equal(t, "image/jpeg", mediaType)
}

func TestList(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	writeReport(t, s, "22222222000122", jpegBytes)
	writeReport(t, s, "11111111000111", jpegBytes)
	writeReport(t, s, "33333333000133", nil)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Base(), "ERP_44444444000144_VENDAS_COMERCIO"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Base(), "outra_pasta"), 0o755))

	reports, err := s.List()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "11111111000111", reports[0].TaxID)
	assert.Equal(t, "22222222000122", reports[1].TaxID)
}

func TestListMissingBase(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"), "")
	_, err := s.List()
	assert.Error(t, err)
}

func TestCustomFilenameCannotEscape(t *testing.T) {
	s := NewStore("/srv/relatorios", "../../etc/passwd")
	assert.Equal(t, filepath.Join("/srv/relatorios", "ERP_1_VENDAS_COMERCIO", "passwd"), s.Path("1"))
}
