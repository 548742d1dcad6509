package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrFormat marks input whose bytes were read but cannot be parsed as a table.
var ErrFormat = eris.New("malformed table")

// Downloader fetches a remote file.
type Downloader interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether location is a URL this package can download.
func IsRemote(location string) bool {
	switch Scheme(location) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

// Scheme returns the lowercased URL scheme of location, or "" for plain paths.
func Scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(location[:i])
}

// RemoteFileName returns the last path element of a URL, used to keep the
// original extension of downloaded files.
func RemoteFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "download"
	}
	name := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// copyToFile writes body to path and returns the number of bytes written.
func copyToFile(body io.Reader, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}

	n, err := io.Copy(file, body)
	if err != nil {
		_ = file.Close()
		return n, eris.Wrap(err, "write file")
	}
	if err := file.Close(); err != nil {
		return n, eris.Wrap(err, "close file")
	}

	return n, nil
}
