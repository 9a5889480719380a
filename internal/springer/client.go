package springer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/fetcher"
	"github.com/openapc/openapc-cli/internal/lookup"
	"github.com/openapc/openapc-cli/internal/resilience"
)

// Prefixes whose DOI suffix embeds the journal id at characters [9,14).
var embeddedIDPrefixes = []string{
	"10.1007/s",
	"10.3758/s",
	"10.1245/s",
	"10.1617/s",
	"10.1186/s",
}

// landingPagePrefix marks the European Physical Journal family, whose journal
// id is only found on the DOI landing page.
const landingPagePrefix = "10.1140"

// Options configures a Client.
type Options struct {
	BaseURL        string
	DOIResolverURL string
	CSVStartYear   int
	Retry          resilience.RetryConfig
	// Budget is charged one unit before every network request. Nil means
	// unlimited.
	Budget *lookup.Budget
	// Now overrides the clock used for the CSV export end year.
	Now func() time.Time
}

// Client talks to SpringerLink and the DOI resolver. It keeps a per-process
// cache of journal ids that needed a landing page lookup.
type Client struct {
	fetch fetcher.Fetcher
	opts  Options
	ids   map[string]string
}

// NewClient creates a Client using f for all requests.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://link.springer.com"
	}
	if opts.DOIResolverURL == "" {
		opts.DOIResolverURL = "https://doi.org"
	}
	if opts.CSVStartYear == 0 {
		opts.CSVStartYear = 2015
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = resilience.RetryUnless(
			lookup.ErrBudgetExhausted,
			ErrInvalidJournalID,
			context.Canceled,
			context.DeadlineExceeded,
		)
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("springer", "search_stats")
	}
	return &Client{fetch: f, opts: opts, ids: make(map[string]string)}
}

// JournalIDFromDOI derives the journal id from DOIs that embed it. It
// reports false for every other DOI.
func JournalIDFromDOI(doi string) (string, bool) {
	for _, p := range embeddedIDPrefixes {
		if strings.HasPrefix(doi, p) && len(doi) >= 14 {
			return strings.TrimLeft(doi[9:14], "0"), true
		}
	}
	return "", false
}

// Resolve maps doi to its SpringerLink journal id. Embedded ids need no I/O.
// EPJ DOIs are looked up on their landing page once per ISSN; pass an empty
// issn to bypass the cache.
func (c *Client) Resolve(ctx context.Context, doi, issn string) (string, error) {
	if id, ok := JournalIDFromDOI(doi); ok {
		return id, nil
	}
	if !strings.HasPrefix(doi, landingPagePrefix) {
		return "", eris.Wrapf(ErrUnsupportedDOI, "springer: resolve %s", doi)
	}

	if issn != "" {
		if id, ok := c.ids[issn]; ok {
			return id, nil
		}
	}

	if err := c.opts.Budget.Spend(); err != nil {
		return "", err
	}

	zap.L().Info("no local journal id extraction possible, analysing landing page",
		zap.String("doi", doi))

	page, err := c.fetch.FetchPage(ctx, DOIURL(c.opts.DOIResolverURL, doi))
	if err != nil {
		return "", eris.Wrapf(err, "springer: fetch landing page of %s", doi)
	}
	id, err := ParseJournalID(page)
	if err != nil {
		return "", eris.Wrapf(err, "springer: resolve %s", doi)
	}

	zap.L().Info("journal id found", zap.String("doi", doi), zap.String("journal_id", id))
	if issn != "" {
		c.ids[issn] = id
	}
	return id, nil
}

// Stats fetches the article count of a journal for one publication year,
// restricted to open access articles when oa is set. A failed fetch or an
// unparseable page is retried according to the configured retry policy.
func (c *Client) Stats(ctx context.Context, journalID, year string, oa bool) (SearchStats, error) {
	if !ValidJournalID(journalID) {
		return SearchStats{}, eris.Wrapf(ErrInvalidJournalID, "springer: journal id %q is not a number", journalID)
	}
	if err := c.opts.Budget.Spend(); err != nil {
		return SearchStats{}, err
	}

	url := SearchURL(c.opts.BaseURL, journalID, year, oa)
	zap.L().Debug("querying search stats", zap.String("url", url))

	return resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) (SearchStats, error) {
		page, err := c.fetch.FetchPage(ctx, url)
		if err != nil {
			return SearchStats{}, eris.Wrapf(err, "springer: fetch %s", url)
		}
		stats, err := ParseSearchStats(page)
		if err != nil {
			return SearchStats{}, eris.Wrapf(err, "springer: scrape %s", url)
		}
		return stats, nil
	})
}

// DownloadJournalCSV stores the open access article export of a journal at
// path, replacing any existing file only once the download succeeded.
func (c *Client) DownloadJournalCSV(ctx context.Context, journalID, path string) error {
	if !ValidJournalID(journalID) {
		return eris.Wrapf(ErrInvalidJournalID, "springer: journal id %q is not a number", journalID)
	}
	if err := c.opts.Budget.Spend(); err != nil {
		return err
	}

	url := CSVExportURL(c.opts.BaseURL, journalID, c.opts.CSVStartYear, c.opts.Now().Year())
	n, err := c.fetch.DownloadToFile(ctx, url, path)
	if err != nil {
		return eris.Wrapf(err, "springer: download journal csv %s", journalID)
	}
	zap.L().Debug("journal csv downloaded",
		zap.String("journal_id", journalID), zap.String("path", path), zap.Int64("bytes", n))
	return nil
}
