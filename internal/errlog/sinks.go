package errlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
)

// ConsoleSink prints a colored table of entries. Nothing is printed when
// there are no entries.
type ConsoleSink struct {
	Out     io.Writer
	NoColor bool
}

func (s ConsoleSink) Write(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	heading := "There were errors during the lookup process:"
	kindColor := text.Colors{text.FgRed}
	if s.NoColor {
		kindColor = nil
	} else {
		heading = text.Colors{text.FgYellow, text.Bold}.Sprint(heading)
	}
	if _, err := fmt.Fprintln(out, heading); err != nil {
		return eris.Wrap(err, "errlog: write console")
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Kind", "ISSN", "DOI", "Message"})
	for _, e := range entries {
		t.AppendRow(table.Row{kindColor.Sprint(string(e.Kind)), e.ISSN, e.DOI, e.Text()})
	}
	t.Render()
	return nil
}

// FileSink appends entries as tab separated lines to Path, one block per
// run headed by RunID.
type FileSink struct {
	Path  string
	RunID string
}

func (s FileSink) Write(entries []Entry) error {
	if s.Path == "" || len(entries) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "errlog: open %s", s.Path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# run %s: %d errors\n", s.RunID, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s\n",
			e.At.UTC().Format(time.RFC3339), e.Kind, e.ISSN, e.DOI, oneLine(e.Text()))
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return eris.Wrapf(err, "errlog: write %s", s.Path)
	}
	return eris.Wrapf(f.Close(), "errlog: close %s", s.Path)
}

func oneLine(s string) string {
	return strings.NewReplacer("\n", " ", "\t", " ").Replace(s)
}
