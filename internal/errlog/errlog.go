// Package errlog accumulates per-record lookup failures during a coverage run
// and reports them through sinks at shutdown.
package errlog

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a recorded failure.
type Kind string

const (
	KindUnsupportedDOI Kind = "unsupported_doi"
	KindScrapeMiss     Kind = "scrape_miss"
	KindDOINotFound    Kind = "doi_not_found"
	KindFetchFailed    Kind = "fetch_failed"
	KindStatsFailed    Kind = "stats_failed"
)

// Entry is one recorded failure.
type Entry struct {
	Kind    Kind
	ISSN    string
	DOI     string
	Title   string
	Message string
	Err     error
	At      time.Time
}

// Text returns the message followed by the underlying error, if any.
func (e Entry) Text() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Sink receives the accumulated entries at shutdown.
type Sink interface {
	Write(entries []Entry) error
}

// Log is an append-only list of entries. Each entry is also logged through
// zap when it is recorded.
type Log struct {
	entries []Entry
	now     func() time.Time
}

// New returns an empty Log.
func New() *Log {
	return &Log{now: time.Now}
}

// Record appends e, stamping it with the current time if unset.
func (l *Log) Record(e Entry) {
	if e.At.IsZero() {
		e.At = l.now()
	}
	l.entries = append(l.entries, e)

	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("issn", e.ISSN),
		zap.String("doi", e.DOI),
	}
	if e.Title != "" {
		fields = append(fields, zap.String("journal", e.Title))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	zap.L().Error(e.Message, fields...)
}

// Entries returns the recorded entries in order.
func (l *Log) Entries() []Entry {
	return l.entries
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Counts returns the number of entries per kind.
func (l *Log) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, e := range l.entries {
		counts[e.Kind]++
	}
	return counts
}

// Flush hands the entries to every sink. All sinks are tried even when one
// fails.
func (l *Log) Flush(sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if err := s.Write(l.entries); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
