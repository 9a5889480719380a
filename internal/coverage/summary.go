package coverage

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary describes one collector run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Records      int // rows read from the input
	Skipped      int // rows of other publishers
	Processed    int // rows fully handled
	YearStates   map[YearState]int
	StatsFetched int
	Lookups      int
	MaxLookups   int // -1 when unlimited
	Errors       int
	DOIsCached   int

	BudgetExhausted bool
	Cancelled       bool
}

// Duration returns the wall time of the run.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Render prints the summary as a table followed by the cache size line.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("coverage run " + s.RunID)

	maxLookups := "unlimited"
	if s.MaxLookups >= 0 {
		maxLookups = fmt.Sprint(s.MaxLookups)
	}
	t.AppendRows([]table.Row{
		{"records read", s.Records},
		{"other publishers", s.Skipped},
		{"records processed", s.Processed},
		{"year from cache", s.YearStates[YearCacheHit]},
		{"year from journal csv", s.YearStates[YearCSVHit]},
		{"year after csv refetch", s.YearStates[YearCSVRefetch]},
		{"year unresolved", s.YearStates[YearUnresolved]},
		{"article counts fetched", s.StatsFetched},
		{"lookups", fmt.Sprintf("%d / %s", s.Lookups, maxLookups)},
		{"errors", s.Errors},
		{"duration", s.Duration().Round(time.Millisecond)},
	})
	switch {
	case s.BudgetExhausted:
		t.AppendFooter(table.Row{"stopped", "lookup budget exhausted"})
	case s.Cancelled:
		t.AppendFooter(table.Row{"stopped", "interrupted"})
	}
	t.Render()

	fmt.Fprintf(w, "The article cache now contains publication dates for %d DOIs\n", s.DOIsCached)
}
