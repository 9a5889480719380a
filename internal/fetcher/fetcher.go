// Package fetcher downloads pages and exports from remote hosts and reads
// header-named CSV data.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and replaces the file at path with the
	// response body. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// FetchPage fetches the URL, following redirects, and returns the body
	// as text.
	FetchPage(ctx context.Context, url string) (string, error)
}
