// Package fetcher downloads reference data from federal sources (Census,
// CMS, USDA ERS) over HTTP and FTP, with streaming CSV parsing and ZIP
// extraction for shapefile archives.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote reference files.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// must close it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
