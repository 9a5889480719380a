// Package journalcsv keeps the per-journal article exports that map DOIs to
// publication years. Exports live as <ISSN>.csv files in one directory and
// are parsed at most once per process unless a refetch is requested.
package journalcsv

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/fetcher"
)

// Column names of the SpringerLink article export.
const (
	ColumnDOI  = "Item DOI"
	ColumnYear = "Publication Year"
)

// Exporter downloads the article export of a journal to path.
type Exporter interface {
	DownloadJournalCSV(ctx context.Context, journalID, path string) error
}

// CheckDir fails unless dir exists and is a directory.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return eris.Errorf("journal csv directory %s not found", dir)
		}
		return eris.Wrapf(err, "journal csv directory %s", dir)
	}
	if !info.IsDir() {
		return eris.Errorf("journal csv directory %s is not a directory", dir)
	}
	return nil
}

// Cache holds the parsed exports of the journals seen in this run.
type Cache struct {
	dir      string
	exporter Exporter
	journals map[string]map[string]string
}

// New creates a Cache reading from dir and downloading through exporter.
func New(dir string, exporter Exporter) *Cache {
	return &Cache{dir: dir, exporter: exporter, journals: make(map[string]map[string]string)}
}

// Path returns the location of the export of issn.
func (c *Cache) Path(issn string) string {
	return filepath.Join(c.dir, issn+".csv")
}

// Loaded reports whether the export of issn has been parsed in this run.
func (c *Cache) Loaded(issn string) bool {
	_, ok := c.journals[issn]
	return ok
}

// Lookup returns the year of doi from an already loaded export.
func (c *Cache) Lookup(issn, doi string) (string, bool) {
	year, ok := c.journals[issn][doi]
	return year, ok
}

// JournalDOIs loads the DOI to publication year mapping of issn. The export
// is downloaded first when no local copy exists or refetch is set. On error
// any previously loaded mapping is kept.
func (c *Cache) JournalDOIs(ctx context.Context, issn, journalID string, refetch bool) (map[string]string, error) {
	path := c.Path(issn)

	_, statErr := os.Stat(path)
	if refetch || errors.Is(statErr, fs.ErrNotExist) {
		zap.L().Info("fetching article csv table",
			zap.String("issn", issn), zap.String("journal_id", journalID), zap.Bool("refetch", refetch))
		if err := c.exporter.DownloadJournalCSV(ctx, journalID, path); err != nil {
			return nil, eris.Wrapf(err, "journalcsv: fetch %s", issn)
		}
	}

	dois, err := readExport(path)
	if err != nil {
		return nil, eris.Wrapf(err, "journalcsv: read %s", issn)
	}
	c.journals[issn] = dois
	return dois, nil
}

func readExport(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	records, err := fetcher.ReadAllRecords(f, fetcher.CSVOptions{
		LazyQuotes: true,
		TrimSpace:  true,
		Required:   []string{ColumnDOI, ColumnYear},
	})
	if err != nil {
		return nil, err
	}
	dois := make(map[string]string, len(records))
	for _, rec := range records {
		doi, year := rec.Get(ColumnDOI), rec.Get(ColumnYear)
		// A row without a year counts as not exported.
		if doi == "" || year == "" {
			continue
		}
		dois[doi] = year
	}
	return dois, nil
}
