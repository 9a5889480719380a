// Package springer resolves SpringerLink journal identifiers and scrapes
// article counts from SpringerLink search pages.
package springer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

var (
	// ErrUnsupportedDOI is returned for DOIs outside the Springer prefixes.
	ErrUnsupportedDOI = eris.New("not a supported Springer DOI")
	// ErrPatternNotFound is returned when a page lacks the expected markup.
	ErrPatternNotFound = eris.New("expected pattern not found in page")
	// ErrInvalidJournalID is returned for journal ids that are not all digits.
	ErrInvalidJournalID = eris.New("invalid journal id")
)

const journalScopeMessage = "You are now only searching within the Journal"

var journalHref = regexp.MustCompile(`^/journal/(\d+)$`)

// SearchStats is what a journal-scoped search page reports.
type SearchStats struct {
	Count int
	Title string
}

// ParseJournalID extracts the journal id from a DOI landing page. It uses the
// first titled anchor pointing at /journal/<digits>.
func ParseJournalID(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", eris.Wrap(err, "springer: parse landing page")
	}

	var id string
	doc.Find(`a[href^="/journal/"][title]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := journalHref.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id == "" {
		return "", eris.Wrap(ErrPatternNotFound, "springer: no journal link on landing page")
	}
	return id, nil
}

// ParseSearchStats extracts the result count and the journal title from a
// journal-scoped search page. Both must be present.
func ParseSearchStats(page string) (SearchStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return SearchStats{}, eris.Wrap(err, "springer: parse search page")
	}

	raw := strings.TrimSpace(doc.Find("h1.number-of-search-results-and-search-terms strong").First().Text())
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return SearchStats{}, eris.Wrap(ErrPatternNotFound, "springer: no results count")
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return SearchStats{}, eris.Wrapf(ErrPatternNotFound, "springer: results count %q", raw)
	}

	title := ""
	doc.Find("p.message").EachWithBreak(func(_ int, msg *goquery.Selection) bool {
		if strings.TrimSpace(msg.Text()) != journalScopeMessage {
			return true
		}
		link := msg.NextFiltered("p.title").Find(`a[href^="/journal/"]`).First()
		title = strings.TrimSpace(link.Text())
		return title == ""
	})
	if title == "" {
		return SearchStats{}, eris.Wrap(ErrPatternNotFound, "springer: no journal title")
	}

	return SearchStats{Count: count, Title: title}, nil
}

// ValidJournalID reports whether id is a non-empty string of ASCII digits.
func ValidJournalID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
