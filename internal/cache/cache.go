// Package cache holds the two persistent lookup caches of the coverage
// collector: publication years by DOI and article counts by journal and year.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CoverageStats holds the article counts of one journal in one year. A nil
// field means the lookup has not succeeded yet.
type CoverageStats struct {
	NumJournalTotalArticles *int `json:"num_journal_total_articles,omitempty"`
	NumJournalOAArticles    *int `json:"num_journal_oa_articles,omitempty"`
}

// Bundle is the in-memory view of both cache files. It is not safe for
// concurrent use.
type Bundle struct {
	// PubDates maps ISSN -> DOI -> publication year.
	PubDates map[string]map[string]string
	// Coverage maps ISSN -> year -> counts.
	Coverage map[string]map[string]*CoverageStats

	pubDatesPath string
	coveragePath string
}

// New returns an empty bundle that persists to the given paths.
func New(pubDatesPath, coveragePath string) *Bundle {
	return &Bundle{
		PubDates:     make(map[string]map[string]string),
		Coverage:     make(map[string]map[string]*CoverageStats),
		pubDatesPath: pubDatesPath,
		coveragePath: coveragePath,
	}
}

// Load reads both cache files. A missing or unreadable file leaves the
// corresponding cache empty and is logged, never returned.
func Load(pubDatesPath, coveragePath string) *Bundle {
	b := New(pubDatesPath, coveragePath)
	loadJSON(pubDatesPath, "publication dates", &b.PubDates)
	loadJSON(coveragePath, "coverage stats", &b.Coverage)
	if b.PubDates == nil {
		b.PubDates = make(map[string]map[string]string)
	}
	if b.Coverage == nil {
		b.Coverage = make(map[string]map[string]*CoverageStats)
	}
	return b
}

func loadJSON[T any](path, what string, dst *T) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("cache file not found, starting empty",
				zap.String("cache", what), zap.String("path", path))
		} else {
			zap.L().Warn("cache file unreadable, starting empty",
				zap.String("cache", what), zap.String("path", path), zap.Error(err))
		}
		return
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		zap.L().Warn("cache file corrupt, starting empty",
			zap.String("cache", what), zap.String("path", path), zap.Error(err))
		return
	}
	*dst = v
}

// PubDate returns the cached publication year of doi within issn.
func (b *Bundle) PubDate(issn, doi string) (string, bool) {
	year, ok := b.PubDates[issn][doi]
	return year, ok
}

// SetPubDate records the publication year of doi within issn.
func (b *Bundle) SetPubDate(issn, doi, year string) {
	dois := b.PubDates[issn]
	if dois == nil {
		dois = make(map[string]string)
		b.PubDates[issn] = dois
	}
	dois[doi] = year
}

// Stats returns the counts for issn and year, or nil if nothing is cached.
func (b *Bundle) Stats(issn, year string) *CoverageStats {
	return b.Coverage[issn][year]
}

// HasTotal reports whether the total article count for issn and year is cached.
func (b *Bundle) HasTotal(issn, year string) bool {
	s := b.Stats(issn, year)
	return s != nil && s.NumJournalTotalArticles != nil
}

// HasOA reports whether the OA article count for issn and year is cached.
func (b *Bundle) HasOA(issn, year string) bool {
	s := b.Stats(issn, year)
	return s != nil && s.NumJournalOAArticles != nil
}

// SetTotal stores the total article count unless one is already present.
// It reports whether the value was stored.
func (b *Bundle) SetTotal(issn, year string, n int) bool {
	s := b.entry(issn, year)
	if s.NumJournalTotalArticles != nil {
		return false
	}
	s.NumJournalTotalArticles = &n
	return true
}

// SetOA stores the OA article count unless one is already present.
func (b *Bundle) SetOA(issn, year string, n int) bool {
	s := b.entry(issn, year)
	if s.NumJournalOAArticles != nil {
		return false
	}
	s.NumJournalOAArticles = &n
	return true
}

func (b *Bundle) entry(issn, year string) *CoverageStats {
	years := b.Coverage[issn]
	if years == nil {
		years = make(map[string]*CoverageStats)
		b.Coverage[issn] = years
	}
	s, ok := years[year]
	if !ok || s == nil {
		s = &CoverageStats{}
		years[year] = s
	}
	return s
}

// DOICount returns the number of DOIs with a cached publication year.
func (b *Bundle) DOICount() int {
	n := 0
	for _, dois := range b.PubDates {
		n += len(dois)
	}
	return n
}

// Persist writes both caches back to their files with sorted keys and a
// four-space indent. A failure on one file does not skip the other.
func (b *Bundle) Persist() error {
	return errors.Join(
		writeJSON(b.coveragePath, b.Coverage),
		writeJSON(b.pubDatesPath, b.PubDates),
	)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return eris.Wrapf(err, "cache: marshal %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "cache: create temp for %s", path)
	}
	tmpName := tmp.Name()
	_ = tmp.Chmod(0o644)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "cache: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "cache: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "cache: rename %s", path)
	}
	return nil
}
