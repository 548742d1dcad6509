package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIPSingle extracts the one data file of an archive into destDir and
// returns its path. Directories and archiver metadata (__MACOSX/, .DS_Store)
// are ignored; any other number of files than one is an error.
func ExtractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || isArchiveMetadata(f.Name) {
			continue
		}
		files = append(files, f)
	}

	if len(files) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	return extractZIPEntry(files[0], destDir)
}

func isArchiveMetadata(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || path.Base(name) == ".DS_Store"
}

// extractZIPEntry writes f below destDir, rejecting paths that escape it.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return "", eris.Wrap(err, "zip: write file")
	}
	if err := out.Close(); err != nil {
		return "", eris.Wrap(err, "zip: close file")
	}

	return destPath, nil
}
