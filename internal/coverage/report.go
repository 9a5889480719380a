package coverage

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/openapc/openapc-cli/internal/cache"
)

// ReportSheet is the sheet name of the xlsx report.
const ReportSheet = "coverage"

// ReportRow is the coverage of one journal in one year. Nil counts have not
// been collected yet.
type ReportRow struct {
	ISSN  string
	Year  string
	Total *int
	OA    *int
}

// OAShare returns the OA share in percent, or false when the total is
// missing or zero.
func (r ReportRow) OAShare() (float64, bool) {
	if r.Total == nil || *r.Total == 0 || r.OA == nil {
		return 0, false
	}
	return float64(*r.OA) * 100 / float64(*r.Total), true
}

// BuildReport flattens the coverage cache into rows sorted by ISSN and year.
func BuildReport(b *cache.Bundle) []ReportRow {
	var rows []ReportRow
	for issn, years := range b.Coverage {
		for year, s := range years {
			row := ReportRow{ISSN: issn, Year: year}
			if s != nil {
				row.Total = s.NumJournalTotalArticles
				row.OA = s.NumJournalOAArticles
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ISSN != rows[j].ISSN {
			return rows[i].ISSN < rows[j].ISSN
		}
		return rows[i].Year < rows[j].Year
	})
	return rows
}

func countText(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprint(*n)
}

func shareText(r ReportRow) string {
	share, ok := r.OAShare()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", share)
}

// RenderReport prints rows as a table.
func RenderReport(w io.Writer, rows []ReportRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ISSN", "Year", "Total", "OA", "OA %"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.ISSN, r.Year, countText(r.Total), countText(r.OA), shareText(r)})
	}
	t.AppendFooter(table.Row{"", "", "", "journal years", len(rows)})
	t.Render()
}

// WriteReportXLSX writes rows to sheet "coverage" of a new workbook at path.
func WriteReportXLSX(path string, rows []ReportRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ReportSheet)
	if err != nil {
		return eris.Wrap(err, "coverage: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"issn", "year", "num_journal_total_articles", "num_journal_oa_articles", "oa_share"} {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ISSN)
		row.AddCell().SetString(r.Year)
		for _, n := range []*int{r.Total, r.OA} {
			cell := row.AddCell()
			if n != nil {
				cell.SetInt(*n)
			}
		}
		cell := row.AddCell()
		if share, ok := r.OAShare(); ok {
			cell.SetFloatWithFormat(share, "0.0")
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "coverage: save %s", path)
	}
	return nil
}
