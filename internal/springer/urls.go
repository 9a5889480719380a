package springer

import (
	"fmt"
	"strings"
)

// SearchURL returns the journal search URL for a single publication year,
// restricted to open access articles when oa is set.
func SearchURL(base, journalID, year string, oa bool) string {
	base = strings.TrimRight(base, "/")
	if oa {
		return fmt.Sprintf("%s/search?facet-journal-id=%s&package=openaccessarticles&search-within=Journal&query=&date-facet-mode=in&facet-start-year=%s&facet-end-year=%s",
			base, journalID, year, year)
	}
	return fmt.Sprintf("%s/search?facet-journal-id=%s&query=&date-facet-mode=in&facet-start-year=%s&facet-end-year=%s",
		base, journalID, year, year)
}

// CSVExportURL returns the article CSV export URL of a journal's open access
// articles between startYear and endYear. SpringerLink caps these exports at
// 1000 rows.
func CSVExportURL(base, journalID string, startYear, endYear int) string {
	return fmt.Sprintf("%s/search/csv?date-facet-mode=between&search-within=Journal&package=openaccessarticles&facet-journal-id=%s&facet-end-year=%d&query=&facet-start-year=%d",
		strings.TrimRight(base, "/"), journalID, endYear, startYear)
}

// DOIURL returns the resolver URL of doi.
func DOIURL(resolver, doi string) string {
	return strings.TrimRight(resolver, "/") + "/" + doi
}
