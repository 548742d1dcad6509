package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIPSingle(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"online_retail_II.csv": "Invoice\n536365\n"})
	dest := t.TempDir()

	path, err := ExtractZIPSingle(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "online_retail_II.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Invoice\n536365\n", string(data))
}

func TestExtractZIPSingle_NestedPath(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"data/retail.csv": "x"})
	dest := t.TempDir()

	path, err := ExtractZIPSingle(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "data", "retail.csv"), path)
}

func TestExtractZIPSingle_IgnoresMetadata(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"retail.xlsx":            "x",
		"__MACOSX/._retail.xlsx": "meta",
		"sub/.DS_Store":          "meta",
	})

	path, err := ExtractZIPSingle(zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "retail.xlsx", filepath.Base(path))
}

func TestExtractZIPSingle_MultipleFiles(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"a.csv": "1", "b.csv": "2"})

	_, err := ExtractZIPSingle(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1 file, got 2")
}

func TestExtractZIPSingle_Empty(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{})

	_, err := ExtractZIPSingle(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 0")
}

func TestExtractZIPSingle_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../evil.csv": "x"})

	_, err := ExtractZIPSingle(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIPSingle_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIPSingle(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}
