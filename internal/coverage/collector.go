// Package coverage drives the collection of journal coverage statistics for
// the DOIs of an offsetting dataset and reports on the collected data.
package coverage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/cache"
	"github.com/openapc/openapc-cli/internal/errlog"
	"github.com/openapc/openapc-cli/internal/lookup"
	"github.com/openapc/openapc-cli/internal/springer"
)

// DefaultPublisher is the only publisher whose records are looked up.
const DefaultPublisher = "Springer Nature"

// JournalResolver maps a DOI to the publisher's journal id.
type JournalResolver interface {
	Resolve(ctx context.Context, doi, issn string) (string, error)
}

// DOISource provides the DOI to publication year mapping of a journal.
type DOISource interface {
	Loaded(issn string) bool
	Lookup(issn, doi string) (string, bool)
	JournalDOIs(ctx context.Context, issn, journalID string, refetch bool) (map[string]string, error)
}

// StatsSource fetches article counts of a journal for one year.
type StatsSource interface {
	Stats(ctx context.Context, journalID, year string, oa bool) (springer.SearchStats, error)
}

// YearState describes how the publication year of a record was found.
type YearState string

const (
	YearCacheHit   YearState = "cache_hit"
	YearCSVHit     YearState = "csv_hit"
	YearCSVRefetch YearState = "csv_refetch"
	YearUnresolved YearState = "unresolved"
)

// Options configures a Collector.
type Options struct {
	// RunID identifies the run in logs and sinks. Generated when empty.
	RunID     string
	Publisher string
	// Budget limits network lookups. Nil means unlimited.
	Budget *lookup.Budget
	// Sinks receive the error log at the end of every run.
	Sinks []errlog.Sink
}

// Collector walks offsetting records and fills the caches of a Bundle.
// It is single threaded; caches are only touched from Run.
type Collector struct {
	caches   *cache.Bundle
	resolver JournalResolver
	dois     DOISource
	stats    StatsSource
	errs     *errlog.Log
	opts     Options
}

// New creates a Collector.
func New(caches *cache.Bundle, resolver JournalResolver, dois DOISource, stats StatsSource, errs *errlog.Log, opts Options) *Collector {
	if opts.Publisher == "" {
		opts.Publisher = DefaultPublisher
	}
	if opts.Budget == nil {
		opts.Budget = lookup.Unlimited()
	}
	if errs == nil {
		errs = errlog.New()
	}
	return &Collector{
		caches:   caches,
		resolver: resolver,
		dois:     dois,
		stats:    stats,
		errs:     errs,
		opts:     opts,
	}
}

// Errors returns the error log of the collector.
func (c *Collector) Errors() *errlog.Log {
	return c.errs
}

// Run processes every record of input. The caches are persisted and the
// error log is flushed on every return path, including budget exhaustion,
// cancellation and unreadable input. Only input and persist failures are
// returned as errors; lookup failures end up in the error log.
func (c *Collector) Run(ctx context.Context, input io.Reader) (sum *Summary, err error) {
	runID := c.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	sum = &Summary{
		RunID:      runID,
		Started:    time.Now(),
		MaxLookups: c.opts.Budget.Max(),
		YearStates: make(map[YearState]int),
	}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	log.Info("coverage: starting run", zap.String("publisher", c.opts.Publisher), zap.Int("max_lookups", sum.MaxLookups))

	defer func() {
		sum.Finished = time.Now()
		sum.Lookups = c.opts.Budget.Used()
		sum.Errors = c.errs.Len()
		sum.DOIsCached = c.caches.DOICount()

		if perr := c.caches.Persist(); perr != nil {
			perr = eris.Wrap(perr, "coverage: persist caches")
			if err == nil {
				err = perr
			} else {
				log.Error("coverage: persist caches", zap.Error(perr))
			}
		}
		if ferr := c.errs.Flush(c.opts.Sinks...); ferr != nil {
			log.Warn("coverage: flush error log", zap.Error(ferr))
		}
		log.Info("coverage: run finished",
			zap.Int("records", sum.Records),
			zap.Int("lookups", sum.Lookups),
			zap.Int("errors", sum.Errors),
			zap.Int("dois_cached", sum.DOIsCached),
			zap.Bool("budget_exhausted", sum.BudgetExhausted),
			zap.Bool("cancelled", sum.Cancelled),
		)
	}()

	reader, err := NewRecordReader(input)
	if err != nil {
		return sum, eris.Wrap(err, "coverage: read input")
	}

	for {
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}
		if c.opts.Budget.Exhausted() {
			sum.BudgetExhausted = true
			log.Info("coverage: maximum number of lookups performed")
			break
		}

		rec, rerr := reader.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return sum, eris.Wrap(rerr, "coverage: read input")
		}
		sum.Records++

		if rec.Publisher != c.opts.Publisher {
			sum.Skipped++
			continue
		}

		if perr := c.process(ctx, rec, sum); perr != nil {
			if errors.Is(perr, lookup.ErrBudgetExhausted) {
				sum.BudgetExhausted = true
				log.Info("coverage: maximum number of lookups performed")
			} else {
				sum.Cancelled = true
			}
			break
		}
		sum.Processed++
	}

	return sum, nil
}

// process runs one record through id resolution, year resolution and stats
// lookup. A non-nil error means the run has to stop.
func (c *Collector) process(ctx context.Context, rec Record, sum *Summary) error {
	log := zap.L().With(
		zap.String("issn", rec.ISSN),
		zap.String("journal", rec.Title),
		zap.String("doi", rec.DOI),
	)

	journalID, err := c.resolver.Resolve(ctx, rec.DOI, rec.ISSN)
	if err != nil {
		if c.mustStop(ctx, err) {
			return err
		}
		c.record(resolveKind(err), rec, "journal id resolution failed", err)
		journalID = ""
	}

	year, state, err := c.resolveYear(ctx, rec, journalID, log)
	if err != nil {
		return err
	}
	sum.YearStates[state]++

	return c.ensureStats(ctx, rec, journalID, year, sum, log)
}

func (c *Collector) resolveYear(ctx context.Context, rec Record, journalID string, log *zap.Logger) (string, YearState, error) {
	if year, ok := c.caches.PubDate(rec.ISSN, rec.DOI); ok {
		log.Debug("coverage: DOI already cached", zap.String("year", year))
		return year, YearCacheHit, nil
	}

	state := YearCSVHit
	if !c.dois.Loaded(rec.ISSN) {
		log.Info("coverage: journal not in temp cache, repopulating")
		if _, err := c.dois.JournalDOIs(ctx, rec.ISSN, journalID, false); err != nil {
			if c.mustStop(ctx, err) {
				return "", "", err
			}
			c.record(errlog.KindFetchFailed, rec, "journal csv unavailable", err)
			return rec.Period, YearUnresolved, nil
		}
	}

	year, ok := c.dois.Lookup(rec.ISSN, rec.DOI)
	if !ok {
		state = YearCSVRefetch
		log.Info("coverage: DOI not found in journal csv, re-fetching")
		if _, err := c.dois.JournalDOIs(ctx, rec.ISSN, journalID, true); err != nil {
			if c.mustStop(ctx, err) {
				return "", "", err
			}
			c.record(errlog.KindFetchFailed, rec, "journal csv refetch failed", err)
			return rec.Period, YearUnresolved, nil
		}
		if year, ok = c.dois.Lookup(rec.ISSN, rec.DOI); !ok {
			c.record(errlog.KindDOINotFound, rec, "DOI not found in SpringerLink data", nil)
			return rec.Period, YearUnresolved, nil
		}
	}

	c.caches.SetPubDate(rec.ISSN, rec.DOI, year)
	if year == rec.Period {
		log.Info("coverage: DOI found, publication year same as offsetting period", zap.String("year", year))
	} else {
		log.Warn("coverage: DOI found, publication year DIFFERENT from offsetting period",
			zap.String("year", year), zap.String("period", rec.Period))
	}
	return year, state, nil
}

func (c *Collector) ensureStats(ctx context.Context, rec Record, journalID, year string, sum *Summary, log *zap.Logger) error {
	for _, oa := range []bool{false, true} {
		have := c.caches.HasTotal(rec.ISSN, year)
		what := "total"
		if oa {
			have = c.caches.HasOA(rec.ISSN, year)
			what = "oa"
		}
		if have {
			continue
		}
		if journalID == "" {
			log.Debug("coverage: no journal id, skipping stats", zap.String("year", year), zap.String("count", what))
			continue
		}

		log.Info("coverage: no cached article count, querying SpringerLink",
			zap.String("year", year), zap.String("count", what))
		stats, err := c.stats.Stats(ctx, journalID, year, oa)
		if err != nil {
			if c.mustStop(ctx, err) {
				return err
			}
			c.record(errlog.KindStatsFailed, rec, "article count lookup failed for "+what+" "+year, err)
			continue
		}

		if oa {
			c.caches.SetOA(rec.ISSN, year, stats.Count)
		} else {
			c.caches.SetTotal(rec.ISSN, year, stats.Count)
		}
		sum.StatsFetched++
		log.Info("coverage: article count stored",
			zap.String("year", year), zap.String("count", what),
			zap.Int("articles", stats.Count), zap.String("springer_title", stats.Title))
	}
	return nil
}

func (c *Collector) mustStop(ctx context.Context, err error) bool {
	return errors.Is(err, lookup.ErrBudgetExhausted) || ctx.Err() != nil
}

func (c *Collector) record(kind errlog.Kind, rec Record, msg string, err error) {
	c.errs.Record(errlog.Entry{
		Kind:    kind,
		ISSN:    rec.ISSN,
		DOI:     rec.DOI,
		Title:   rec.Title,
		Message: msg,
		Err:     err,
	})
}

func resolveKind(err error) errlog.Kind {
	switch {
	case errors.Is(err, springer.ErrUnsupportedDOI):
		return errlog.KindUnsupportedDOI
	case errors.Is(err, springer.ErrPatternNotFound):
		return errlog.KindScrapeMiss
	default:
		return errlog.KindFetchFailed
	}
}
